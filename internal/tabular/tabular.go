package tabular

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Table is decoded tabular content: a header row plus data rows aligned
// to header positions.
type Table struct {
	Header []string
	Rows   [][]string
}

// ParseError marks a file that could not be decoded as tabular input.
// Ingestion records it as a per-file warning instead of failing the
// whole batch.
type ParseError struct {
	File   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %s", e.File, e.Reason)
}

// Decode picks a decoder from the file extension. Anything that is not
// Parquet is treated as delimited text.
func Decode(filename string, data []byte) (Table, error) {
	if strings.EqualFold(filepath.Ext(filename), ".parquet") {
		return DecodeParquet(filename, data)
	}
	return DecodeCSV(filename, data)
}
