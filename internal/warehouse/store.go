package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/insightdeck/insightdeck/internal/schema"
)

// StorageWriteError marks a failed warehouse write. Ingestion records
// it as a per-file warning without rolling back sibling files.
type StorageWriteError struct {
	Table string
	Err   error
}

func (e *StorageWriteError) Error() string {
	return fmt.Sprintf("write table %s: %v", e.Table, e.Err)
}

func (e *StorageWriteError) Unwrap() error { return e.Err }

// Store issues DDL and row inserts for dataset tables.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

func NewStore(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// Columns reports the physical columns of a table in ordinal order, or
// ok=false when the table does not exist. SQL type names are mapped
// back to inferred kinds for reconciliation.
func (s *Store) Columns(ctx context.Context, table string) ([]schema.Column, bool, error) {
	query := `
SELECT column_name, data_type, is_nullable
FROM information_schema.columns
WHERE table_name = $1
ORDER BY ordinal_position`

	rows, err := s.db.QueryContext(ctx, query, table)
	if err != nil {
		return nil, false, fmt.Errorf("describe table %q: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	columns := make([]schema.Column, 0)
	for rows.Next() {
		var name, dataType, nullable string
		if err := rows.Scan(&name, &dataType, &nullable); err != nil {
			return nil, false, fmt.Errorf("scan column of %q: %w", table, err)
		}
		columns = append(columns, schema.Column{
			Name:     name,
			Kind:     kindFromSQLType(dataType),
			Nullable: strings.EqualFold(nullable, "YES"),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate columns of %q: %w", table, err)
	}
	return columns, len(columns) > 0, nil
}

// EnsureTable creates the table when missing and otherwise reconciles
// the physical columns against the merged descriptor set: missing
// columns are added nullable, narrower columns are widened in place.
func (s *Store) EnsureTable(ctx context.Context, table string, existing, merged []schema.Column) error {
	if len(existing) == 0 {
		return s.createTable(ctx, table, merged)
	}

	stored := make(map[string]schema.Kind, len(existing))
	for _, column := range existing {
		stored[column.Name] = column.Kind
	}
	for _, column := range merged {
		kind, ok := stored[column.Name]
		if !ok {
			ddl := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s",
				QuoteIdent(table), QuoteIdent(column.Name), s.dialect.TypeName(column.Kind))
			if _, err := s.db.ExecContext(ctx, ddl); err != nil {
				return fmt.Errorf("add column %q to %q: %w", column.Name, table, err)
			}
			continue
		}
		if schema.Widens(kind, column.Kind) {
			ddl := s.dialect.AlterColumnTypeSQL(table, column.Name, s.dialect.TypeName(column.Kind))
			if _, err := s.db.ExecContext(ctx, ddl); err != nil {
				return fmt.Errorf("widen column %q of %q: %w", column.Name, table, err)
			}
		}
	}
	return nil
}

func (s *Store) createTable(ctx context.Context, table string, columns []schema.Column) error {
	defs := make([]string, 0, len(columns))
	for _, column := range columns {
		defs = append(defs, QuoteIdent(column.Name)+" "+s.dialect.TypeName(column.Kind))
	}
	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", QuoteIdent(table), strings.Join(defs, ", "))
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create table %q: %w", table, err)
	}
	return nil
}

// InsertRows loads raw string rows into the table. Values are converted
// per the merged column kinds; empty cells and cells for columns the
// source file lacks become NULL. The whole load runs in one
// transaction so a storage fault never leaves a partial file behind.
func (s *Store) InsertRows(ctx context.Context, table string, merged []schema.Column, header []schema.Column, rows [][]string) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	position := make(map[string]int, len(header))
	for i, column := range header {
		position[column.Name] = i
	}

	names := make([]string, 0, len(merged))
	placeholders := make([]string, 0, len(merged))
	for i, column := range merged {
		names = append(names, QuoteIdent(column.Name))
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
	}
	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		QuoteIdent(table), strings.Join(names, ", "), strings.Join(placeholders, ", "))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &StorageWriteError{Table: table, Err: fmt.Errorf("begin tx: %w", err)}
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return 0, &StorageWriteError{Table: table, Err: fmt.Errorf("prepare insert: %w", err)}
	}
	defer func() { _ = stmt.Close() }()

	var inserted int64
	for _, row := range rows {
		args := make([]any, len(merged))
		for i, column := range merged {
			at, ok := position[column.Name]
			if !ok || at >= len(row) {
				args[i] = nil
				continue
			}
			value, err := convertValue(row[at], column.Kind)
			if err != nil {
				return 0, &StorageWriteError{Table: table, Err: err}
			}
			args[i] = value
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, &StorageWriteError{Table: table, Err: err}
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, &StorageWriteError{Table: table, Err: fmt.Errorf("commit: %w", err)}
	}
	return inserted, nil
}

func convertValue(raw string, kind schema.Kind) (any, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}
	switch kind {
	case schema.KindInteger:
		parsed, err := parseInt(value)
		if err != nil {
			return nil, fmt.Errorf("value %q does not fit integer column: %w", value, err)
		}
		return parsed, nil
	case schema.KindReal:
		parsed, err := parseFloat(value)
		if err != nil {
			return nil, fmt.Errorf("value %q does not fit real column: %w", value, err)
		}
		return parsed, nil
	case schema.KindBoolean:
		switch strings.ToLower(value) {
		case "true", "yes":
			return true, nil
		case "false", "no":
			return false, nil
		}
		return nil, fmt.Errorf("value %q does not fit boolean column", value)
	case schema.KindTimestamp:
		ts, ok := schema.ParseTimestamp(value)
		if !ok {
			return nil, fmt.Errorf("value %q does not fit timestamp column", value)
		}
		return ts.UTC(), nil
	default:
		return value, nil
	}
}

func parseInt(value string) (int64, error) {
	return strconv.ParseInt(value, 10, 64)
}

func parseFloat(value string) (float64, error) {
	return strconv.ParseFloat(value, 64)
}

func kindFromSQLType(dataType string) schema.Kind {
	normalized := strings.ToUpper(strings.TrimSpace(dataType))
	switch {
	case strings.Contains(normalized, "INT"):
		return schema.KindInteger
	case strings.Contains(normalized, "DOUBLE"),
		strings.Contains(normalized, "REAL"),
		strings.Contains(normalized, "FLOAT"),
		strings.Contains(normalized, "NUMERIC"),
		strings.Contains(normalized, "DECIMAL"):
		return schema.KindReal
	case strings.Contains(normalized, "BOOL"):
		return schema.KindBoolean
	case strings.Contains(normalized, "TIMESTAMP"), normalized == "DATE":
		return schema.KindTimestamp
	default:
		return schema.KindText
	}
}
