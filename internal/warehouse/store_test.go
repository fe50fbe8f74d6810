package warehouse

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/insightdeck/insightdeck/internal/schema"
)

func newStoreMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db, duckdbDialect{}), mock
}

func TestColumnsMapsSQLTypesToKinds(t *testing.T) {
	store, mock := newStoreMock(t)

	mock.ExpectQuery("FROM information_schema.columns").
		WithArgs("spend").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable"}).
			AddRow("campaign", "VARCHAR", "YES").
			AddRow("clicks", "BIGINT", "NO").
			AddRow("cost", "DOUBLE", "YES").
			AddRow("day", "TIMESTAMP", "YES"))

	columns, ok, err := store.Columns(context.Background(), "spend")
	if err != nil {
		t.Fatalf("Columns() error = %v", err)
	}
	if !ok {
		t.Fatal("table should exist")
	}
	want := []schema.Kind{schema.KindText, schema.KindInteger, schema.KindReal, schema.KindTimestamp}
	for i, kind := range want {
		if columns[i].Kind != kind {
			t.Fatalf("column %d kind = %q, want %q", i, columns[i].Kind, kind)
		}
	}
	if columns[1].Nullable {
		t.Fatal("clicks should not be nullable")
	}
}

func TestColumnsReportsMissingTable(t *testing.T) {
	store, mock := newStoreMock(t)

	mock.ExpectQuery("FROM information_schema.columns").
		WithArgs("absent").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable"}))

	_, ok, err := store.Columns(context.Background(), "absent")
	if err != nil {
		t.Fatalf("Columns() error = %v", err)
	}
	if ok {
		t.Fatal("missing table reported as present")
	}
}

func TestEnsureTableCreatesWhenMissing(t *testing.T) {
	store, mock := newStoreMock(t)

	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "spend" ("campaign" VARCHAR, "clicks" BIGINT)`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.EnsureTable(context.Background(), "spend", nil, []schema.Column{
		{Name: "campaign", Kind: schema.KindText},
		{Name: "clicks", Kind: schema.KindInteger},
	})
	if err != nil {
		t.Fatalf("EnsureTable() error = %v", err)
	}
}

func TestEnsureTableAddsAndWidensColumns(t *testing.T) {
	store, mock := newStoreMock(t)

	mock.ExpectExec(regexp.QuoteMeta(`ALTER TABLE "spend" ALTER "clicks" SET DATA TYPE DOUBLE`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`ALTER TABLE "spend" ADD COLUMN "region" VARCHAR`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	existing := []schema.Column{
		{Name: "campaign", Kind: schema.KindText},
		{Name: "clicks", Kind: schema.KindInteger},
	}
	merged := []schema.Column{
		{Name: "campaign", Kind: schema.KindText},
		{Name: "clicks", Kind: schema.KindReal},
		{Name: "region", Kind: schema.KindText, Nullable: true},
	}
	if err := store.EnsureTable(context.Background(), "spend", existing, merged); err != nil {
		t.Fatalf("EnsureTable() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInsertRowsPadsMissingColumnsWithNull(t *testing.T) {
	store, mock := newStoreMock(t)

	merged := []schema.Column{
		{Name: "campaign", Kind: schema.KindText},
		{Name: "clicks", Kind: schema.KindInteger},
		{Name: "region", Kind: schema.KindText, Nullable: true},
	}
	// the incoming file only carries campaign and clicks
	header := merged[:2]

	mock.ExpectBegin()
	mock.ExpectPrepare(regexp.QuoteMeta(`INSERT INTO "spend" ("campaign", "clicks", "region") VALUES ($1, $2, $3)`)).
		ExpectExec().
		WithArgs("brand", int64(10), nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	inserted, err := store.InsertRows(context.Background(), "spend", merged, header, [][]string{{"brand", "10"}})
	if err != nil {
		t.Fatalf("InsertRows() error = %v", err)
	}
	if inserted != 1 {
		t.Fatalf("inserted = %d", inserted)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInsertRowsWrapsStorageWriteError(t *testing.T) {
	store, mock := newStoreMock(t)

	merged := []schema.Column{{Name: "v", Kind: schema.KindInteger}}

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO").
		ExpectExec().
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := store.InsertRows(context.Background(), "t", merged, merged, [][]string{{"1"}})
	var writeErr *StorageWriteError
	if !errors.As(err, &writeErr) {
		t.Fatalf("error = %v, want StorageWriteError", err)
	}
	if writeErr.Table != "t" {
		t.Fatalf("Table = %q", writeErr.Table)
	}
}

func TestConvertValue(t *testing.T) {
	ts := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		raw  string
		kind schema.Kind
		want any
	}{
		{"42", schema.KindInteger, int64(42)},
		{"2.5", schema.KindReal, 2.5},
		{"YES", schema.KindBoolean, true},
		{"no", schema.KindBoolean, false},
		{"2024-01-02", schema.KindTimestamp, ts},
		{"hello", schema.KindText, "hello"},
		{"", schema.KindInteger, nil},
		{"  ", schema.KindText, nil},
	}
	for _, tc := range tests {
		got, err := convertValue(tc.raw, tc.kind)
		if err != nil {
			t.Fatalf("convertValue(%q, %q) error = %v", tc.raw, tc.kind, err)
		}
		if gotTime, ok := got.(time.Time); ok {
			if !gotTime.Equal(tc.want.(time.Time)) {
				t.Fatalf("convertValue(%q) = %v", tc.raw, got)
			}
			continue
		}
		if got != tc.want {
			t.Fatalf("convertValue(%q, %q) = %#v, want %#v", tc.raw, tc.kind, got, tc.want)
		}
	}
}

func TestDialectFor(t *testing.T) {
	if _, err := DialectFor("sqlite"); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
	dialect, err := DialectFor("")
	if err != nil {
		t.Fatalf("DialectFor() error = %v", err)
	}
	if dialect.DriverName() != "duckdb" {
		t.Fatalf("default driver = %q", dialect.DriverName())
	}
	pg, err := DialectFor("postgres")
	if err != nil {
		t.Fatalf("DialectFor(postgres) error = %v", err)
	}
	if pg.TypeName(schema.KindReal) != "DOUBLE PRECISION" {
		t.Fatalf("postgres real type = %q", pg.TypeName(schema.KindReal))
	}
}
