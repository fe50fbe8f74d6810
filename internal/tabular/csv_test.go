package tabular

import (
	"errors"
	"testing"
)

func TestDecodeCSVAlignsRaggedRows(t *testing.T) {
	data := []byte("a,b,c\n1,2,3\n4,5\n6,7,8,9\n")

	table, err := DecodeCSV("spend.csv", data)
	if err != nil {
		t.Fatalf("DecodeCSV() error = %v", err)
	}
	if len(table.Header) != 3 {
		t.Fatalf("header = %v", table.Header)
	}
	if len(table.Rows) != 3 {
		t.Fatalf("rows = %d", len(table.Rows))
	}
	if table.Rows[1][2] != "" {
		t.Fatalf("short row not padded: %v", table.Rows[1])
	}
	if len(table.Rows[2]) != 3 {
		t.Fatalf("long row not truncated: %v", table.Rows[2])
	}
}

func TestDecodeCSVEmptyFileIsParseError(t *testing.T) {
	_, err := DecodeCSV("empty.csv", nil)
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("error = %v, want ParseError", err)
	}
	if parseErr.File != "empty.csv" {
		t.Fatalf("File = %q", parseErr.File)
	}
}

func TestDecodeCSVStripsUTF8BOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("name\nvalue\n")...)

	table, err := DecodeCSV("bom.csv", data)
	if err != nil {
		t.Fatalf("DecodeCSV() error = %v", err)
	}
	if table.Header[0] != "name" {
		t.Fatalf("header = %q", table.Header[0])
	}
}

func TestDecodeCSVFallsBackToLatin1(t *testing.T) {
	// "café" in Latin-1: 0xE9 is not valid UTF-8 on its own.
	data := []byte{'n', 'a', 'm', 'e', '\n', 'c', 'a', 'f', 0xE9, '\n'}

	table, err := DecodeCSV("latin1.csv", data)
	if err != nil {
		t.Fatalf("DecodeCSV() error = %v", err)
	}
	if table.Rows[0][0] != "café" {
		t.Fatalf("value = %q", table.Rows[0][0])
	}
}

func TestDecodeRoutesByExtension(t *testing.T) {
	if _, err := Decode("report.parquet", []byte("not parquet")); err == nil {
		t.Fatal("expected parquet decode error")
	}
	table, err := Decode("report.csv", []byte("a\n1\n"))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(table.Rows) != 1 {
		t.Fatalf("rows = %d", len(table.Rows))
	}
}
