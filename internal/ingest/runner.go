package ingest

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/insightdeck/insightdeck/internal/catalog"
	"github.com/insightdeck/insightdeck/internal/observability"
	"github.com/insightdeck/insightdeck/internal/schema"
	"github.com/insightdeck/insightdeck/internal/tabular"
)

type Status string

const (
	StatusCompleted             Status = "completed"
	StatusCompletedWithWarnings Status = "completed_with_warnings"
	StatusFailed                Status = "failed"
)

// FilePayload is one uploaded tabular file.
type FilePayload struct {
	Name string
	Data []byte
}

// Overrides apply to every file in a batch.
type Overrides struct {
	DatasetName string
	Business    string
	Category    string
}

// JobSummary is the synchronous result of one ingestion request. The
// job record lives only for the request/response cycle; there is no
// background completion to poll for.
type JobSummary struct {
	JobID         string          `json:"job_id"`
	Status        Status          `json:"status"`
	SubmittedAt   time.Time       `json:"submitted_at"`
	IngestedCount int             `json:"ingested_count"`
	RowsInserted  int64           `json:"rows_inserted"`
	Warnings      []string        `json:"warnings"`
	Datasets      []catalog.Entry `json:"datasets"`
}

// TableStore is the warehouse surface the runner needs.
type TableStore interface {
	Columns(ctx context.Context, table string) ([]schema.Column, bool, error)
	EnsureTable(ctx context.Context, table string, existing, merged []schema.Column) error
	InsertRows(ctx context.Context, table string, merged, header []schema.Column, rows [][]string) (int64, error)
}

// Archiver stores the raw source file after a successful load.
type Archiver interface {
	Put(ctx context.Context, key string, data []byte) error
}

// Runner orchestrates one ingestion request end to end: decode each
// file, infer its schema, reconcile it against the live table, load the
// rows, and upsert the catalog entry. Per-file failures become
// warnings; the job fails only when every file fails.
type Runner struct {
	Catalog catalog.Repository
	Tables  TableStore
	Archive Archiver
	Logger  *slog.Logger
	now     func() time.Time
}

func NewRunner(repo catalog.Repository, tables TableStore) *Runner {
	return &Runner{Catalog: repo, Tables: tables, now: time.Now}
}

func (r *Runner) Run(ctx context.Context, files []FilePayload, overrides Overrides) (JobSummary, error) {
	if len(files) == 0 {
		return JobSummary{}, fmt.Errorf("at least one file is required")
	}

	now := time.Now
	if r.now != nil {
		now = r.now
	}
	start := now().UTC()
	summary := JobSummary{
		JobID:       newJobID(),
		SubmittedAt: start,
		Warnings:    []string{},
		Datasets:    []catalog.Entry{},
	}

	for _, file := range files {
		entry, inserted, err := r.ingestFile(ctx, file, overrides)
		if err != nil {
			summary.Warnings = append(summary.Warnings, fmt.Sprintf("%s: %v", file.Name, err))
			r.logWarn(ctx, "file ingestion failed", file.Name, err)
			continue
		}
		summary.Datasets = append(summary.Datasets, entry)
		summary.RowsInserted += inserted
		r.logInfo(ctx, file.Name, entry, inserted)

		if r.Archive != nil {
			key := archiveKey(entry, file.Name, start)
			if err := r.Archive.Put(ctx, key, file.Data); err != nil {
				summary.Warnings = append(summary.Warnings, fmt.Sprintf("%s: archive failed: %v", file.Name, err))
				r.logWarn(ctx, "source archive failed", file.Name, err)
			}
		}
	}

	summary.IngestedCount = len(summary.Datasets)
	switch {
	case summary.IngestedCount == 0:
		summary.Status = StatusFailed
	case len(summary.Warnings) > 0:
		summary.Status = StatusCompletedWithWarnings
	default:
		summary.Status = StatusCompleted
	}
	observability.ObserveIngestJob(string(summary.Status), len(files), summary.RowsInserted, len(summary.Warnings), time.Since(start))
	return summary, nil
}

func (r *Runner) ingestFile(ctx context.Context, file FilePayload, overrides Overrides) (catalog.Entry, int64, error) {
	table, err := tabular.Decode(file.Name, file.Data)
	if err != nil {
		return catalog.Entry{}, 0, err
	}

	datasetName := overrides.DatasetName
	if datasetName == "" {
		datasetName = baseName(file.Name)
	}
	category := schema.NormalizeName(overrides.Category)
	if category == "" {
		category = "custom"
	}

	inferred := schema.Infer(table.Header, table.Rows)
	tableName := schema.ResolveTableName(datasetName, overrides.Business)

	existing, exists, err := r.Tables.Columns(ctx, tableName)
	if err != nil {
		return catalog.Entry{}, 0, err
	}
	merged := inferred
	if exists {
		merged = schema.Reconcile(existing, inferred)
	} else {
		existing = nil
	}

	if err := r.Tables.EnsureTable(ctx, tableName, existing, merged); err != nil {
		return catalog.Entry{}, 0, err
	}
	inserted, err := r.Tables.InsertRows(ctx, tableName, merged, inferred, table.Rows)
	if err != nil {
		return catalog.Entry{}, 0, err
	}

	entry, err := r.Catalog.UpsertEntry(ctx, catalog.UpsertEntryInput{
		TableName:   tableName,
		Business:    overrides.Business,
		Category:    category,
		DatasetName: datasetName,
		SourceFile:  file.Name,
		RowsAdded:   inserted,
		Columns:     columnNames(merged),
	})
	if err != nil {
		return catalog.Entry{}, 0, fmt.Errorf("record catalog entry: %w", err)
	}
	return entry, inserted, nil
}

func (r *Runner) logInfo(ctx context.Context, file string, entry catalog.Entry, inserted int64) {
	if r.Logger == nil {
		return
	}
	r.Logger.InfoContext(ctx, "file ingested",
		slog.String("file", file),
		slog.String("table", entry.TableName),
		slog.Int64("rows_inserted", inserted),
		slog.Int64("row_count", entry.RowCount),
	)
}

func (r *Runner) logWarn(ctx context.Context, message, file string, err error) {
	if r.Logger == nil {
		return
	}
	r.Logger.WarnContext(ctx, message, slog.String("file", file), slog.Any("error", err))
}

func columnNames(columns []schema.Column) []string {
	names := make([]string, 0, len(columns))
	for _, column := range columns {
		names = append(names, column.Name)
	}
	return names
}

func newJobID() string {
	id := uuid.New()
	return "job_" + hex.EncodeToString(id[:4])
}

func baseName(filename string) string {
	name := path.Base(filename)
	return strings.TrimSuffix(name, path.Ext(name))
}

func archiveKey(entry catalog.Entry, filename string, at time.Time) string {
	business := schema.NormalizeName(entry.Business)
	if business == "" {
		business = "custom_business"
	}
	dataset := schema.NormalizeName(entry.DatasetName)
	if dataset == "" {
		dataset = "dataset"
	}
	return fmt.Sprintf("%s/%s/%s_%s", business, dataset, at.Format("20060102T150405Z"), path.Base(filename))
}
