package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/insightdeck/insightdeck/internal/auth"
	"github.com/insightdeck/insightdeck/internal/querygw"
)

type queryRequest struct {
	SQL string `json:"sql"`
}

func handleQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Query == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "QUERY_NOT_CONFIGURED", "query dependencies are not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleQueryReader); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var request queryRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid query request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.SQL) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REQUIRED", "sql is required", false, nil)
		return
	}

	result, err := deps.Query.Execute(r.Context(), request.SQL)
	if err != nil {
		writeQueryError(deps, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, queryResponse(result))
}

// queryResponse flattens the attributed catalog entry into the
// top-level payload alongside the executed statement and its rows.
func queryResponse(result querygw.Result) map[string]any {
	response := map[string]any{
		"table_name":   "",
		"business":     "",
		"dataset_name": "",
		"sql":          result.SQL,
		"columns":      result.Columns,
		"rows":         result.Rows,
		"row_count":    result.RowCount,
	}
	if result.Dataset != nil {
		response["table_name"] = result.Dataset.TableName
		response["business"] = result.Dataset.Business
		response["dataset_name"] = result.Dataset.DatasetName
	}
	return response
}

func writeQueryError(deps Dependencies, w http.ResponseWriter, r *http.Request, err error) {
	var unsafeErr *querygw.UnsafeStatementError
	if errors.As(err, &unsafeErr) {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_NOT_ALLOWED", unsafeErr.Error(), false, nil)
		return
	}
	var execErr *querygw.QueryExecutionError
	if errors.As(err, &execErr) {
		writeError(r.Context(), w, http.StatusBadRequest, "QUERY_FAILED", execErr.Error(), false, map[string]any{"details": execErr.Unwrap().Error()})
		return
	}
	writeError(r.Context(), w, http.StatusInternalServerError, "QUERY_ERROR", "query could not be executed", true, map[string]any{"details": err.Error()})
}
