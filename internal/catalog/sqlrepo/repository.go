package sqlrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/insightdeck/insightdeck/internal/catalog"
)

const registryTable = "dataset_registry"

// Repository persists catalog entries in the warehouse's
// dataset_registry table. The SQL sticks to the dialect shared by
// DuckDB and PostgreSQL ($N placeholders, ON CONFLICT ... RETURNING).
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

func (r *Repository) HealthCheck(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping warehouse db: %w", err)
	}
	return nil
}

func (r *Repository) UpsertEntry(ctx context.Context, in catalog.UpsertEntryInput) (catalog.Entry, error) {
	columnsJSON, err := json.Marshal(in.Columns)
	if err != nil {
		return catalog.Entry{}, fmt.Errorf("marshal column list: %w", err)
	}
	ingestedAt := r.now().UTC()

	query := `
INSERT INTO ` + registryTable + ` (table_name, business, category, dataset_name, source_file, row_count, columns, ingested_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (table_name) DO UPDATE SET
	business = excluded.business,
	category = excluded.category,
	dataset_name = excluded.dataset_name,
	source_file = excluded.source_file,
	row_count = ` + registryTable + `.row_count + excluded.row_count,
	columns = excluded.columns,
	ingested_at = excluded.ingested_at
RETURNING row_count`

	entry := catalog.Entry{
		TableName:   in.TableName,
		Business:    in.Business,
		Category:    in.Category,
		DatasetName: in.DatasetName,
		SourceFile:  in.SourceFile,
		Columns:     in.Columns,
		IngestedAt:  ingestedAt,
	}
	if err := r.db.QueryRowContext(ctx, query,
		in.TableName, in.Business, in.Category, in.DatasetName,
		in.SourceFile, in.RowsAdded, string(columnsJSON), ingestedAt,
	).Scan(&entry.RowCount); err != nil {
		return catalog.Entry{}, fmt.Errorf("upsert catalog entry: %w", err)
	}
	return entry, nil
}

func (r *Repository) GetByTableName(ctx context.Context, tableName string) (catalog.Entry, error) {
	query := `
SELECT table_name, business, category, dataset_name, source_file, row_count, columns, ingested_at
FROM ` + registryTable + `
WHERE table_name = $1`

	entry, err := scanEntry(r.db.QueryRowContext(ctx, query, tableName))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.Entry{}, catalog.ErrNotFound
		}
		return catalog.Entry{}, fmt.Errorf("get catalog entry: %w", err)
	}
	return entry, nil
}

func (r *Repository) List(ctx context.Context) ([]catalog.Entry, error) {
	query := `
SELECT table_name, business, category, dataset_name, source_file, row_count, columns, ingested_at
FROM ` + registryTable + `
ORDER BY ingested_at DESC, table_name ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list catalog entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]catalog.Entry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan catalog entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catalog entries: %w", err)
	}
	return entries, nil
}

// Find resolves a loose name hint to the best-matching entry:
// case-insensitive substring over dataset name, business, and table
// name, most recent ingest first. An empty hint returns the most
// recently updated entry.
func (r *Repository) Find(ctx context.Context, hint string) (catalog.Entry, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(hint)) + "%"
	query := `
SELECT table_name, business, category, dataset_name, source_file, row_count, columns, ingested_at
FROM ` + registryTable + `
WHERE lower(dataset_name) LIKE $1 OR lower(business) LIKE $1 OR lower(table_name) LIKE $1
ORDER BY ingested_at DESC, table_name ASC
LIMIT 1`

	entry, err := scanEntry(r.db.QueryRowContext(ctx, query, pattern))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.Entry{}, catalog.ErrNotFound
		}
		return catalog.Entry{}, fmt.Errorf("find catalog entry: %w", err)
	}
	return entry, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (catalog.Entry, error) {
	var entry catalog.Entry
	var columnsJSON string
	if err := row.Scan(
		&entry.TableName,
		&entry.Business,
		&entry.Category,
		&entry.DatasetName,
		&entry.SourceFile,
		&entry.RowCount,
		&columnsJSON,
		&entry.IngestedAt,
	); err != nil {
		return catalog.Entry{}, err
	}
	if err := json.Unmarshal([]byte(columnsJSON), &entry.Columns); err != nil {
		return catalog.Entry{}, fmt.Errorf("decode column list for %q: %w", entry.TableName, err)
	}
	return entry, nil
}
