package tabular

import (
	"bytes"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"
)

// DecodeParquet reads a Parquet payload into the same header+rows shape
// as CSV input. Values are rendered to strings so that both formats
// flow through one inference pipeline.
func DecodeParquet(filename string, data []byte) (Table, error) {
	file, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Table{}, &ParseError{File: filename, Reason: "invalid parquet file: " + err.Error()}
	}

	columns := file.Schema().Columns()
	if len(columns) == 0 {
		return Table{}, &ParseError{File: filename, Reason: "parquet file has no columns"}
	}
	header := make([]string, len(columns))
	for i, path := range columns {
		header[i] = strings.Join(path, ".")
	}

	rows := make([][]string, 0, file.NumRows())
	buffer := make([]parquet.Row, 64)
	for _, group := range file.RowGroups() {
		reader := group.Rows()
		for {
			n, err := reader.ReadRows(buffer)
			for _, row := range buffer[:n] {
				rows = append(rows, renderRow(row, len(header)))
			}
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				_ = reader.Close()
				return Table{}, &ParseError{File: filename, Reason: "read parquet rows: " + err.Error()}
			}
		}
		if err := reader.Close(); err != nil {
			return Table{}, &ParseError{File: filename, Reason: "close parquet reader: " + err.Error()}
		}
	}
	return Table{Header: header, Rows: rows}, nil
}

func renderRow(row parquet.Row, width int) []string {
	cells := make([]string, width)
	for _, value := range row {
		index := int(value.Column())
		if index < 0 || index >= width {
			continue
		}
		cells[index] = renderValue(value)
	}
	return cells
}

func renderValue(value parquet.Value) string {
	if value.IsNull() {
		return ""
	}
	switch value.Kind() {
	case parquet.Boolean:
		return strconv.FormatBool(value.Boolean())
	case parquet.Int32:
		return strconv.FormatInt(int64(value.Int32()), 10)
	case parquet.Int64:
		return strconv.FormatInt(value.Int64(), 10)
	case parquet.Float:
		return strconv.FormatFloat(float64(value.Float()), 'g', -1, 32)
	case parquet.Double:
		return strconv.FormatFloat(value.Double(), 'g', -1, 64)
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(value.ByteArray())
	default:
		return value.String()
	}
}
