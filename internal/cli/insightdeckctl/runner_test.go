package insightdeckctl

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRunCatalogCommand(t *testing.T) {
	var gotMethod, gotPath, gotAPIKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAPIKey = r.Header.Get("X-API-Key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"datasets":[],"count":0}`))
	}))
	defer srv.Close()

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	code := Run(context.Background(), []string{
		"-base-url", srv.URL,
		"-api-key", "k1",
		"catalog",
	}, Options{
		Stdout:  &stdout,
		Stderr:  &stderr,
		Timeout: 2 * time.Second,
	})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
	if gotMethod != http.MethodGet || gotPath != "/v1/catalog" {
		t.Fatalf("request = %s %s", gotMethod, gotPath)
	}
	if gotAPIKey != "k1" {
		t.Fatalf("api key header = %q", gotAPIKey)
	}
	if stdout.Len() == 0 {
		t.Fatal("expected command output")
	}
}

func TestRunQueryCommandPostsSQL(t *testing.T) {
	var gotMethod, gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		_, _ = w.Write([]byte(`{"rows":[]}`))
	}))
	defer srv.Close()

	code := Run(context.Background(), []string{"-base-url", srv.URL, "query", "SELECT", "1"}, Options{})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if gotMethod != http.MethodPost || gotPath != "/v1/query" {
		t.Fatalf("request = %s %s", gotMethod, gotPath)
	}
	var payload map[string]string
	if err := json.Unmarshal([]byte(gotBody), &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if payload["sql"] != "SELECT 1" {
		t.Fatalf("sql = %q", payload["sql"])
	}
}

func TestRunIngestCommandUploadsFiles(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "spend.csv")
	if err := os.WriteFile(file, []byte("a,b\n1,2\n"), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	var gotPath, gotDataset, gotFileName, gotContent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			return
		}
		gotDataset = r.FormValue("dataset_name")
		headers := r.MultipartForm.File["files"]
		if len(headers) == 1 {
			gotFileName = headers[0].Filename
			f, err := headers[0].Open()
			if err == nil {
				content, _ := io.ReadAll(f)
				gotContent = string(content)
				_ = f.Close()
			}
		}
		_, _ = w.Write([]byte(`{"status":"completed"}`))
	}))
	defer srv.Close()

	code := Run(context.Background(), []string{
		"-base-url", srv.URL,
		"-dataset-name", "Spend",
		"ingest", file,
	}, Options{})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if gotPath != "/v1/ingest" {
		t.Fatalf("path = %s", gotPath)
	}
	if gotDataset != "Spend" {
		t.Fatalf("dataset_name = %q", gotDataset)
	}
	if gotFileName != "spend.csv" || !strings.Contains(gotContent, "a,b") {
		t.Fatalf("file = %q content = %q", gotFileName, gotContent)
	}
}

func TestRunIngestWalksDirectories(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "2026", "q1")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeTestFile := func(path, content string) {
		t.Helper()
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	writeTestFile(filepath.Join(dir, "spend.csv"), "a\n1\n")
	writeTestFile(filepath.Join(sub, "clicks.CSV"), "b\n2\n")
	writeTestFile(filepath.Join(sub, "notes.txt"), "skip me")

	var gotNames []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			return
		}
		for _, header := range r.MultipartForm.File["files"] {
			gotNames = append(gotNames, header.Filename)
		}
		_, _ = w.Write([]byte(`{"status":"completed"}`))
	}))
	defer srv.Close()

	code := Run(context.Background(), []string{"-base-url", srv.URL, "ingest", dir}, Options{})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if len(gotNames) != 2 {
		t.Fatalf("uploaded files = %v, want spend.csv and clicks.CSV", gotNames)
	}
	for _, name := range gotNames {
		if name != "spend.csv" && name != "clicks.CSV" {
			t.Fatalf("unexpected upload %q", name)
		}
	}
}

func TestRunIngestRejectsDirectoryWithoutTabularFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "readme.md"), []byte("x"), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"ingest", dir}, Options{Stderr: &stderr})
	if code != 1 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stderr.String(), "no .csv or .parquet files") {
		t.Fatalf("stderr = %q", stderr.String())
	}
}

func TestRunReturnsErrorOnHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error_code":"FORBIDDEN"}`))
	}))
	defer srv.Close()

	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"-base-url", srv.URL, "catalog"}, Options{Stderr: &stderr})
	if code != 1 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
}

func TestRunUnknownCommand(t *testing.T) {
	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"unknown"}, Options{Stderr: &stderr})
	if code != 2 {
		t.Fatalf("exit code = %d", code)
	}
	if stderr.Len() == 0 {
		t.Fatal("expected usage output")
	}
}

func TestRunIngestRequiresFileArgument(t *testing.T) {
	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"ingest"}, Options{Stderr: &stderr})
	if code != 2 {
		t.Fatalf("exit code = %d", code)
	}
}
