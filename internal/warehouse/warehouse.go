package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/insightdeck/insightdeck/internal/schema"
)

const (
	DriverDuckDB   = "duckdb"
	DriverPostgres = "postgres"
)

type Config struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

// Open connects to the warehouse. DuckDB is file-backed (the DSN is a
// database path, empty for in-memory); PostgreSQL uses a pgx DSN.
func Open(ctx context.Context, cfg Config) (*sql.DB, Dialect, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, nil, err
	}

	db, err := sql.Open(dialect.DriverName(), cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open warehouse db: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping warehouse db: %w", err)
	}
	return db, dialect, nil
}

// Dialect covers the SQL differences between the supported warehouse
// engines: type names per inferred kind and column type changes.
type Dialect interface {
	DriverName() string
	TypeName(kind schema.Kind) string
	AlterColumnTypeSQL(table, column, typeName string) string
}

func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverDuckDB, "":
		return duckdbDialect{}, nil
	case DriverPostgres, "pgx":
		return postgresDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported warehouse driver %q", driver)
	}
}

type duckdbDialect struct{}

func (duckdbDialect) DriverName() string { return "duckdb" }

func (duckdbDialect) TypeName(kind schema.Kind) string {
	switch kind {
	case schema.KindInteger:
		return "BIGINT"
	case schema.KindReal:
		return "DOUBLE"
	case schema.KindBoolean:
		return "BOOLEAN"
	case schema.KindTimestamp:
		return "TIMESTAMP"
	default:
		return "VARCHAR"
	}
}

func (duckdbDialect) AlterColumnTypeSQL(table, column, typeName string) string {
	return fmt.Sprintf("ALTER TABLE %s ALTER %s SET DATA TYPE %s", QuoteIdent(table), QuoteIdent(column), typeName)
}

type postgresDialect struct{}

func (postgresDialect) DriverName() string { return "pgx" }

func (postgresDialect) TypeName(kind schema.Kind) string {
	switch kind {
	case schema.KindInteger:
		return "BIGINT"
	case schema.KindReal:
		return "DOUBLE PRECISION"
	case schema.KindBoolean:
		return "BOOLEAN"
	case schema.KindTimestamp:
		return "TIMESTAMPTZ"
	default:
		return "TEXT"
	}
}

func (postgresDialect) AlterColumnTypeSQL(table, column, typeName string) string {
	quotedColumn := QuoteIdent(column)
	return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s USING %s::%s",
		QuoteIdent(table), quotedColumn, typeName, quotedColumn, typeName)
}

func QuoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}
