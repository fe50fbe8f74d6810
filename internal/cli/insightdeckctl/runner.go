package insightdeckctl

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("insightdeckctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "InsightDeck API base URL")
	apiKey := fs.String("api-key", defaults.APIKey, "API key for authenticated requests")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 30*time.Second), "HTTP timeout (e.g. 30s)")
	datasetName := fs.String("dataset-name", "", "dataset name override for ingest")
	business := fs.String("business", "", "business label for ingest")
	category := fs.String("category", "", "category label for ingest")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	client := defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: *timeout}
	}

	base := strings.TrimRight(*baseURL, "/")
	command := strings.TrimSpace(fs.Arg(0))

	var (
		method      string
		path        string
		body        io.Reader
		contentType string
	)
	switch command {
	case "health":
		method, path = http.MethodGet, "/v1/health"
	case "ready":
		method, path = http.MethodGet, "/v1/ready"
	case "catalog":
		method, path = http.MethodGet, "/v1/catalog"
	case "dataset":
		if fs.NArg() < 2 {
			_, _ = fmt.Fprintln(stderr, "usage: insightdeckctl dataset <table_name>")
			return 2
		}
		method, path = http.MethodGet, "/v1/catalog/"+strings.TrimSpace(fs.Arg(1))
	case "query":
		if fs.NArg() < 2 {
			_, _ = fmt.Fprintln(stderr, "usage: insightdeckctl query <sql>")
			return 2
		}
		payload, err := json.Marshal(map[string]string{"sql": strings.Join(fs.Args()[1:], " ")})
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "encode query body: %v\n", err)
			return 1
		}
		method, path = http.MethodPost, "/v1/query"
		body = bytes.NewReader(payload)
		contentType = "application/json"
	case "prompt":
		if fs.NArg() < 2 {
			_, _ = fmt.Fprintln(stderr, "usage: insightdeckctl prompt <question>")
			return 2
		}
		payload, err := json.Marshal(map[string]string{"prompt": strings.Join(fs.Args()[1:], " ")})
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "encode prompt body: %v\n", err)
			return 1
		}
		method, path = http.MethodPost, "/v1/prompt"
		body = bytes.NewReader(payload)
		contentType = "application/json"
	case "ingest":
		if fs.NArg() < 2 {
			_, _ = fmt.Fprintln(stderr, "usage: insightdeckctl ingest <path> [path...]")
			return 2
		}
		multipartBody, multipartType, err := buildIngestBody(fs.Args()[1:], *datasetName, *business, *category)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "prepare ingest upload: %v\n", err)
			return 1
		}
		method, path = http.MethodPost, "/v1/ingest"
		body = multipartBody
		contentType = multipartType
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		writeUsage(stderr)
		return 2
	}

	code, responseBody, err := doRequest(ctx, client, method, base+path, *apiKey, body, contentType)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}

	if code >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(responseBody)))
		return 1
	}

	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(stdout, pretty)
		return 0
	}
	if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(stdout, string(responseBody))
	}
	return 0
}

func buildIngestBody(paths []string, datasetName, business, category string) (io.Reader, string, error) {
	buffer := &bytes.Buffer{}
	writer := multipart.NewWriter(buffer)

	fields := map[string]string{
		"dataset_name": datasetName,
		"business":     business,
		"category":     category,
	}
	for field, value := range fields {
		if strings.TrimSpace(value) == "" {
			continue
		}
		if err := writer.WriteField(field, value); err != nil {
			return nil, "", err
		}
	}

	expanded, err := expandIngestPaths(paths)
	if err != nil {
		return nil, "", err
	}
	for _, path := range expanded {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, "", err
		}
		part, err := writer.CreateFormFile("files", filepath.Base(path))
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(data); err != nil {
			return nil, "", err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return buffer, writer.FormDataContentType(), nil
}

// expandIngestPaths resolves each argument to files to upload. A
// directory is walked for .csv and .parquet files; a plain file is
// taken as-is regardless of extension.
func expandIngestPaths(paths []string) ([]string, error) {
	files := make([]string, 0, len(paths))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		err = filepath.WalkDir(path, func(entry string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			switch strings.ToLower(filepath.Ext(entry)) {
			case ".csv", ".parquet":
				files = append(files, entry)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .csv or .parquet files found under %s", strings.Join(paths, ", "))
	}
	return files, nil
}

func doRequest(ctx context.Context, client *http.Client, method, url, apiKey string, body io.Reader, contentType string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if strings.TrimSpace(apiKey) != "" {
		req.Header.Set("X-API-Key", strings.TrimSpace(apiKey))
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, responseBody, nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: insightdeckctl [flags] <command>")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health                     GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready                      GET /v1/ready")
	_, _ = fmt.Fprintln(w, "  catalog                    GET /v1/catalog")
	_, _ = fmt.Fprintln(w, "  dataset <table_name>       GET /v1/catalog/{table}")
	_, _ = fmt.Fprintln(w, "  query <sql>                POST /v1/query")
	_, _ = fmt.Fprintln(w, "  prompt <question>          POST /v1/prompt")
	_, _ = fmt.Fprintln(w, "  ingest <path> [path...]    POST /v1/ingest (files or directories of .csv/.parquet)")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
