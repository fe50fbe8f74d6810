package querygw

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/insightdeck/insightdeck/internal/catalog"
	"github.com/insightdeck/insightdeck/internal/observability"
)

const DefaultRowCap = 50

// UnsafeStatementError rejects statements outside the read-only
// surface before they ever reach the warehouse.
type UnsafeStatementError struct {
	Reason string
}

func (e *UnsafeStatementError) Error() string {
	return "unsafe statement: " + e.Reason
}

// QueryExecutionError wraps warehouse failures for statements that
// passed the safety gate.
type QueryExecutionError struct {
	Err error
}

func (e *QueryExecutionError) Error() string {
	return "query execution failed: " + e.Err.Error()
}

func (e *QueryExecutionError) Unwrap() error {
	return e.Err
}

// Result carries the resolved rows plus the catalog entry the
// statement most plausibly read from, when one can be attributed.
type Result struct {
	SQL      string           `json:"sql"`
	Columns  []string         `json:"columns"`
	Rows     []map[string]any `json:"rows"`
	RowCount int              `json:"row_count"`
	Dataset  *catalog.Entry   `json:"dataset,omitempty"`
	Duration time.Duration    `json:"-"`
}

// Gateway executes read-only statements against the warehouse with an
// implicit row cap applied to uncapped queries.
type Gateway struct {
	DB      *sql.DB
	Catalog catalog.Repository
	RowCap  int
	Logger  *slog.Logger
}

func NewGateway(db *sql.DB, repo catalog.Repository, rowCap int) *Gateway {
	if rowCap <= 0 {
		rowCap = DefaultRowCap
	}
	return &Gateway{DB: db, Catalog: repo, RowCap: rowCap}
}

func (g *Gateway) Execute(ctx context.Context, sqlText string) (Result, error) {
	statement, err := PrepareReadOnly(sqlText)
	if err != nil {
		observability.IncrementQueryRejected()
		return Result{}, err
	}
	if !hasExplicitLimit(statement) {
		statement = fmt.Sprintf("SELECT * FROM (%s) AS q LIMIT %d", statement, g.RowCap)
	}

	start := time.Now()
	rows, err := g.DB.QueryContext(ctx, statement)
	if err != nil {
		return Result{}, &QueryExecutionError{Err: err}
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return Result{}, &QueryExecutionError{Err: err}
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return Result{}, &QueryExecutionError{Err: err}
		}
		row := make(map[string]any, len(columns))
		for i, column := range columns {
			row[column] = normalizeValue(values[i])
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		return Result{}, &QueryExecutionError{Err: err}
	}

	elapsed := time.Since(start)
	observability.ObserveQueryExecuted(elapsed)
	if g.Logger != nil {
		g.Logger.InfoContext(ctx, "query executed",
			slog.Int("rows", len(resultRows)),
			slog.Duration("elapsed", elapsed),
		)
	}

	return Result{
		SQL:      statement,
		Columns:  columns,
		Rows:     resultRows,
		RowCount: len(resultRows),
		Dataset:  g.attribute(ctx, sqlText),
		Duration: elapsed,
	}, nil
}

// attribute matches registered table names against the statement text.
// When nothing matches, Find with an empty hint supplies the most
// recently ingested dataset so prompt answers always carry some context.
func (g *Gateway) attribute(ctx context.Context, sqlText string) *catalog.Entry {
	if g.Catalog == nil {
		return nil
	}
	entries, err := g.Catalog.List(ctx)
	if err != nil || len(entries) == 0 {
		return nil
	}
	lowered := strings.ToLower(sqlText)
	best := -1
	for i, entry := range entries {
		if !strings.Contains(lowered, strings.ToLower(entry.TableName)) {
			continue
		}
		if best == -1 || len(entry.TableName) > len(entries[best].TableName) {
			best = i
		}
	}
	if best >= 0 {
		entry := entries[best]
		return &entry
	}
	fallback, err := g.Catalog.Find(ctx, "")
	if err != nil {
		return nil
	}
	return &fallback
}

var statementWords = regexp.MustCompile(`[a-z_]+`)

var forbiddenKeywords = map[string]struct{}{
	"insert": {}, "update": {}, "delete": {}, "merge": {},
	"drop": {}, "alter": {}, "create": {}, "truncate": {},
	"grant": {}, "revoke": {}, "attach": {}, "detach": {},
	"copy": {}, "pragma": {}, "call": {}, "install": {}, "load": {},
	"vacuum": {}, "checkpoint": {},
}

// PrepareReadOnly validates that the statement is a single read-only
// query and returns it with trailing semicolons stripped.
func PrepareReadOnly(sqlText string) (string, error) {
	statement := stripTrailingSemicolons(sqlText)
	if statement == "" {
		return "", &UnsafeStatementError{Reason: "statement is empty"}
	}
	if strings.Contains(statement, ";") {
		return "", &UnsafeStatementError{Reason: "multiple statements are not allowed"}
	}

	lowered := strings.ToLower(statement)
	if !strings.HasPrefix(lowered, "select") && !strings.HasPrefix(lowered, "with") {
		return "", &UnsafeStatementError{Reason: "only SELECT statements are allowed"}
	}
	for _, word := range statementWords.FindAllString(lowered, -1) {
		if _, forbidden := forbiddenKeywords[word]; forbidden {
			return "", &UnsafeStatementError{Reason: fmt.Sprintf("keyword %q is not allowed", word)}
		}
	}
	return statement, nil
}

var limitClausePattern = regexp.MustCompile(`(?i)\blimit\s+\d+`)

// hasExplicitLimit reports whether the statement already carries a
// LIMIT clause anywhere, including inside a subquery. Over-matching is
// fine here: a query capped in a subquery still runs bounded.
func hasExplicitLimit(statement string) bool {
	return limitClausePattern.MatchString(statement)
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}

func normalizeValue(value any) any {
	switch typed := value.(type) {
	case []byte:
		return string(typed)
	default:
		return typed
	}
}
