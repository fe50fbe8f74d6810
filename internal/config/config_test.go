package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaultsForDevProfile(t *testing.T) {
	lookup := mapLookup(map[string]string{})
	cfg, err := Load("insightdeck-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Auth.Required {
		t.Fatal("Auth.Required should default to false in dev")
	}
	if cfg.Warehouse.Driver != "duckdb" {
		t.Fatalf("Warehouse.Driver = %q", cfg.Warehouse.Driver)
	}
	if cfg.Warehouse.DSN != "insightdeck.duckdb" {
		t.Fatalf("Warehouse.DSN = %q", cfg.Warehouse.DSN)
	}
	if cfg.Archive.Enabled {
		t.Fatal("Archive.Enabled should default to false")
	}
	if cfg.Query.RowCap != 50 {
		t.Fatalf("Query.RowCap = %d", cfg.Query.RowCap)
	}
	if cfg.UI.SchemaSampleRows != 5 {
		t.Fatalf("UI.SchemaSampleRows = %d", cfg.UI.SchemaSampleRows)
	}
	if cfg.AI.TranslateEnabled {
		t.Fatal("AI.TranslateEnabled should default to false")
	}
	if cfg.AI.Model != "gpt-5" {
		t.Fatalf("AI.Model = %q", cfg.AI.Model)
	}
}

func TestLoadProdProfileDefaults(t *testing.T) {
	lookup := mapLookup(map[string]string{"INSIGHTDECK_PROFILE": "prod"})
	cfg, err := Load("insightdeck-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileProd {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileProd)
	}
	if !cfg.Auth.Required {
		t.Fatal("Auth.Required should default to true in prod")
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.Archive.UseSSL {
		t.Fatal("Archive.UseSSL should default to true in prod")
	}
	if cfg.Archive.AutoCreateBucket {
		t.Fatal("Archive.AutoCreateBucket should default to false in prod")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	lookup := mapLookup(map[string]string{
		"INSIGHTDECK_PROFILE":                  "test",
		"INSIGHTDECK_SERVICE_NAME":             "insightdeck-custom",
		"INSIGHTDECK_HTTP_ADDR":                ":9999",
		"INSIGHTDECK_HTTP_READ_TIMEOUT":        "2s",
		"INSIGHTDECK_HTTP_WRITE_TIMEOUT":       "3s",
		"INSIGHTDECK_LOG_LEVEL":                "error",
		"INSIGHTDECK_AUTH_REQUIRED":            "true",
		"INSIGHTDECK_AUTH_STATIC_KEYS":         "k1:query_reader",
		"INSIGHTDECK_WAREHOUSE_DRIVER":         "pgx",
		"INSIGHTDECK_WAREHOUSE_DSN":            "postgres://example",
		"INSIGHTDECK_WAREHOUSE_MAX_OPEN_CONNS": "42",
		"INSIGHTDECK_WAREHOUSE_MAX_IDLE_CONNS": "17",
		"INSIGHTDECK_ARCHIVE_ENABLED":          "true",
		"INSIGHTDECK_ARCHIVE_ENDPOINT":         "s3.example.com",
		"INSIGHTDECK_ARCHIVE_BUCKET":           "insightdeck-prod",
		"INSIGHTDECK_ARCHIVE_REGION":           "us-west-2",
		"INSIGHTDECK_ARCHIVE_ACCESS_KEY":       "abc",
		"INSIGHTDECK_ARCHIVE_SECRET_KEY":       "def",
		"INSIGHTDECK_ARCHIVE_USE_SSL":          "true",
		"INSIGHTDECK_ARCHIVE_PREFIX":           "raw",
		"INSIGHTDECK_ARCHIVE_AUTO_CREATE_BUCKET": "false",
		"INSIGHTDECK_QUERY_ROW_CAP":            "200",
		"INSIGHTDECK_QUERY_TIMEOUT":            "12s",
		"INSIGHTDECK_UI_SCHEMA_SAMPLE_ROWS":    "11",
		"INSIGHTDECK_AI_TRANSLATE_ENABLED":     "true",
		"INSIGHTDECK_AI_BASE_URL":              "https://api.example.com",
		"INSIGHTDECK_AI_API_KEY":               "secret-key",
		"INSIGHTDECK_AI_MODEL":                 "gpt-5.2",
		"INSIGHTDECK_AI_TEMPERATURE":           "0.3",
		"INSIGHTDECK_AI_TIMEOUT":               "21s",
	})
	cfg, err := Load("insightdeck-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Service.Name != "insightdeck-custom" {
		t.Fatalf("Service.Name = %q", cfg.Service.Name)
	}
	if cfg.HTTP.Address != ":9999" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.HTTP.ReadTimeout != 2*time.Second {
		t.Fatalf("HTTP.ReadTimeout = %s", cfg.HTTP.ReadTimeout)
	}
	if cfg.HTTP.WriteTimeout != 3*time.Second {
		t.Fatalf("HTTP.WriteTimeout = %s", cfg.HTTP.WriteTimeout)
	}
	if cfg.Observability.LogLevel != slog.LevelError {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.Auth.Required {
		t.Fatal("Auth.Required = false, want true")
	}
	if cfg.Auth.StaticKeys != "k1:query_reader" {
		t.Fatalf("StaticKeys = %q", cfg.Auth.StaticKeys)
	}
	if cfg.Warehouse.Driver != "pgx" {
		t.Fatalf("Warehouse.Driver = %q", cfg.Warehouse.Driver)
	}
	if cfg.Warehouse.DSN != "postgres://example" {
		t.Fatalf("Warehouse.DSN = %q", cfg.Warehouse.DSN)
	}
	if cfg.Warehouse.MaxOpenConns != 42 {
		t.Fatalf("Warehouse.MaxOpenConns = %d", cfg.Warehouse.MaxOpenConns)
	}
	if cfg.Warehouse.MaxIdleConns != 17 {
		t.Fatalf("Warehouse.MaxIdleConns = %d", cfg.Warehouse.MaxIdleConns)
	}
	if !cfg.Archive.Enabled {
		t.Fatal("Archive.Enabled = false, want true")
	}
	if cfg.Archive.Endpoint != "s3.example.com" {
		t.Fatalf("Archive.Endpoint = %q", cfg.Archive.Endpoint)
	}
	if cfg.Archive.Bucket != "insightdeck-prod" {
		t.Fatalf("Archive.Bucket = %q", cfg.Archive.Bucket)
	}
	if !cfg.Archive.UseSSL {
		t.Fatal("Archive.UseSSL = false, want true")
	}
	if cfg.Archive.AutoCreateBucket {
		t.Fatal("Archive.AutoCreateBucket = true, want false")
	}
	if cfg.Archive.Prefix != "raw" {
		t.Fatalf("Archive.Prefix = %q", cfg.Archive.Prefix)
	}
	if cfg.Query.RowCap != 200 {
		t.Fatalf("Query.RowCap = %d", cfg.Query.RowCap)
	}
	if cfg.Query.Timeout != 12*time.Second {
		t.Fatalf("Query.Timeout = %s", cfg.Query.Timeout)
	}
	if cfg.UI.SchemaSampleRows != 11 {
		t.Fatalf("UI.SchemaSampleRows = %d", cfg.UI.SchemaSampleRows)
	}
	if !cfg.AI.TranslateEnabled {
		t.Fatal("AI.TranslateEnabled = false, want true")
	}
	if cfg.AI.BaseURL != "https://api.example.com" {
		t.Fatalf("AI.BaseURL = %q", cfg.AI.BaseURL)
	}
	if cfg.AI.APIKey != "secret-key" {
		t.Fatalf("AI.APIKey = %q", cfg.AI.APIKey)
	}
	if cfg.AI.Model != "gpt-5.2" {
		t.Fatalf("AI.Model = %q", cfg.AI.Model)
	}
	if cfg.AI.Temperature != 0.3 {
		t.Fatalf("AI.Temperature = %f", cfg.AI.Temperature)
	}
	if cfg.AI.Timeout != 21*time.Second {
		t.Fatalf("AI.Timeout = %s", cfg.AI.Timeout)
	}
}

func TestLoadErrorsOnInvalidValues(t *testing.T) {
	tests := []map[string]string{
		{"INSIGHTDECK_PROFILE": "oops"},
		{"INSIGHTDECK_HTTP_READ_TIMEOUT": "NaN"},
		{"INSIGHTDECK_WAREHOUSE_DRIVER": "sqlite"},
		{"INSIGHTDECK_WAREHOUSE_MAX_OPEN_CONNS": "oops"},
		{"INSIGHTDECK_QUERY_ROW_CAP": "0"},
		{"INSIGHTDECK_AI_TEMPERATURE": "bad"},
		{"INSIGHTDECK_AUTH_REQUIRED": "not-bool"},
		{"INSIGHTDECK_LOG_LEVEL": "verbose"},
	}
	for _, env := range tests {
		_, err := Load("insightdeck-api", mapLookup(env))
		if err == nil {
			t.Fatalf("Load() expected error for env %#v", env)
		}
	}
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
