package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// DecodeCSV parses delimited text into a header plus data rows. Field
// counts may vary per record; short rows are padded to the header width
// and long rows truncated. Missing or empty headers fail with a
// ParseError.
func DecodeCSV(filename string, data []byte) (Table, error) {
	decoded, err := toUTF8(data)
	if err != nil {
		return Table{}, &ParseError{File: filename, Reason: err.Error()}
	}

	reader := csv.NewReader(bytes.NewReader(decoded))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Table{}, &ParseError{File: filename, Reason: "empty file: no header row"}
		}
		return Table{}, &ParseError{File: filename, Reason: "invalid header row: " + err.Error()}
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	if len(header) == 0 || (len(header) == 1 && header[0] == "") {
		return Table{}, &ParseError{File: filename, Reason: "empty file: no header row"}
	}

	rows := make([][]string, 0)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, &ParseError{File: filename, Reason: "invalid record: " + err.Error()}
		}
		rows = append(rows, alignRow(record, len(header)))
	}
	return Table{Header: header, Rows: rows}, nil
}

func alignRow(record []string, width int) []string {
	if len(record) == width {
		return record
	}
	aligned := make([]string, width)
	copy(aligned, record)
	return aligned
}

// toUTF8 strips a BOM and converts UTF-16 input; bytes that are not
// valid UTF-8 are assumed Latin-1, which never fails.
func toUTF8(data []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}):
		return data[3:], nil
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}):
		decoder := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder()
		return decoder.Bytes(data)
	case bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		decoder := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder()
		return decoder.Bytes(data)
	case utf8.Valid(data):
		return data, nil
	default:
		return charmap.ISO8859_1.NewDecoder().Bytes(data)
	}
}
