package nl2sql

import "context"

type DatasetContext struct {
	TableName   string   `json:"table_name"`
	Business    string   `json:"business,omitempty"`
	DatasetName string   `json:"dataset_name,omitempty"`
	Columns     []string `json:"columns"`
	SampleRows  [][]any  `json:"sample_rows,omitempty"`
}

type Request struct {
	NaturalLanguage string           `json:"natural_language"`
	Datasets        []DatasetContext `json:"datasets"`
	RowCap          int              `json:"row_cap"`
}

type Result struct {
	SQL      string `json:"sql"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

type Translator interface {
	Translate(ctx context.Context, req Request) (Result, error)
}
