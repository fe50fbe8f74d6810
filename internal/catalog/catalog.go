package catalog

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("catalog: not found")

// Entry is the durable record of one ingested dataset and the physical
// table backing it. table_name is the unique key: re-ingesting the same
// (dataset name, business label) pair updates the entry in place.
type Entry struct {
	TableName   string    `json:"table_name"`
	Business    string    `json:"business"`
	Category    string    `json:"category"`
	DatasetName string    `json:"dataset_name"`
	SourceFile  string    `json:"source_file"`
	RowCount    int64     `json:"row_count"`
	Columns     []string  `json:"columns"`
	IngestedAt  time.Time `json:"ingested_at"`
}

type UpsertEntryInput struct {
	TableName   string
	Business    string
	Category    string
	DatasetName string
	SourceFile  string
	RowsAdded   int64
	Columns     []string
}

type Repository interface {
	HealthCheck(ctx context.Context) error
	UpsertEntry(ctx context.Context, in UpsertEntryInput) (Entry, error)
	GetByTableName(ctx context.Context, tableName string) (Entry, error)
	List(ctx context.Context) ([]Entry, error)
	Find(ctx context.Context, hint string) (Entry, error)
}
