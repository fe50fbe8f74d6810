package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/insightdeck/insightdeck/internal/auth"
	"github.com/insightdeck/insightdeck/internal/nl2sql"
)

type translateRequest struct {
	Prompt string `json:"prompt"`
}

func handleUISchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Catalog == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "CATALOG_NOT_CONFIGURED", "catalog dependency is not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleQueryReader); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	contexts, err := buildDatasetContexts(r.Context(), deps, schemaSampleRows(deps))
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "SCHEMA_FETCH_FAILED", "failed to load schema context", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"datasets": contexts})
}

func handleTranslateQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	result, ok := translatePrompt(deps, w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sql":      result.SQL,
		"provider": result.Provider,
		"model":    result.Model,
	})
}

// handlePrompt translates a natural language question and immediately
// executes the resulting statement through the read-only gateway.
func handlePrompt(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Query == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "QUERY_NOT_CONFIGURED", "query dependencies are not configured", false, nil)
		return
	}
	translated, ok := translatePrompt(deps, w, r)
	if !ok {
		return
	}

	result, err := deps.Query.Execute(r.Context(), translated.SQL)
	if err != nil {
		writeQueryError(deps, w, r, err)
		return
	}
	response := queryResponse(result)
	response["provider"] = translated.Provider
	response["model"] = translated.Model
	writeJSON(w, http.StatusOK, response)
}

func translatePrompt(deps Dependencies, w http.ResponseWriter, r *http.Request) (nl2sql.Result, bool) {
	if deps.Translator == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "TRANSLATE_NOT_CONFIGURED", "query translation is not configured", false, nil)
		return nl2sql.Result{}, false
	}
	if deps.Catalog == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "CATALOG_NOT_CONFIGURED", "catalog dependency is not configured", false, nil)
		return nl2sql.Result{}, false
	}
	if err := requireRole(r, auth.RoleQueryReader); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return nl2sql.Result{}, false
	}

	var req translateRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid translation request body", false, map[string]any{"details": err.Error()})
		return nl2sql.Result{}, false
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "PROMPT_REQUIRED", "prompt is required", false, nil)
		return nl2sql.Result{}, false
	}

	contexts, err := buildDatasetContexts(r.Context(), deps, schemaSampleRows(deps))
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "SCHEMA_FETCH_FAILED", "failed to load schema context", true, map[string]any{"details": err.Error()})
		return nl2sql.Result{}, false
	}

	result, err := deps.Translator.Translate(r.Context(), nl2sql.Request{
		NaturalLanguage: req.Prompt,
		Datasets:        contexts,
	})
	if err != nil {
		writeError(r.Context(), w, http.StatusBadGateway, "TRANSLATE_FAILED", "failed to translate query", true, map[string]any{"details": err.Error()})
		return nl2sql.Result{}, false
	}
	return result, true
}

func buildDatasetContexts(ctx context.Context, deps Dependencies, sampleRows int) ([]nl2sql.DatasetContext, error) {
	entries, err := deps.Catalog.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}

	contexts := make([]nl2sql.DatasetContext, 0, len(entries))
	for _, entry := range entries {
		dataset := nl2sql.DatasetContext{
			TableName:   entry.TableName,
			Business:    entry.Business,
			DatasetName: entry.DatasetName,
			Columns:     entry.Columns,
		}
		if deps.Query != nil && sampleRows > 0 {
			dataset.SampleRows = fetchSampleRows(ctx, deps, entry.TableName, entry.Columns, sampleRows)
		}
		contexts = append(contexts, dataset)
	}
	return contexts, nil
}

// fetchSampleRows is best effort schema context. A table that cannot
// be sampled still appears with its column list.
func fetchSampleRows(ctx context.Context, deps Dependencies, tableName string, columns []string, limit int) [][]any {
	result, err := deps.Query.Execute(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", tableName, limit))
	if err != nil {
		return nil
	}
	ordered := columns
	if len(result.Columns) > 0 {
		ordered = result.Columns
	}
	rows := make([][]any, 0, len(result.Rows))
	for _, row := range result.Rows {
		values := make([]any, 0, len(ordered))
		for _, column := range ordered {
			values = append(values, row[column])
		}
		rows = append(rows, values)
	}
	return rows
}

func schemaSampleRows(deps Dependencies) int {
	if deps.SchemaSampleRows > 0 {
		return deps.SchemaSampleRows
	}
	return 5
}
