package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/insightdeck/insightdeck/internal/auth"
	"github.com/insightdeck/insightdeck/internal/ingest"
)

const defaultMaxUploadBytes = 256 << 20

func handleIngest(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Ingest == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "INGEST_NOT_CONFIGURED", "ingest dependencies are not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleIngestWriter); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	maxBytes := deps.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_MULTIPART", "invalid multipart request body", false, map[string]any{"details": err.Error()})
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	overrides := ingest.Overrides{
		DatasetName: strings.TrimSpace(r.FormValue("dataset_name")),
		Business:    strings.TrimSpace(r.FormValue("business")),
		Category:    strings.TrimSpace(r.FormValue("category")),
	}

	fileHeaders := r.MultipartForm.File["files"]
	if len(fileHeaders) == 0 {
		fileHeaders = r.MultipartForm.File["file"]
	}
	if len(fileHeaders) == 0 {
		writeError(r.Context(), w, http.StatusBadRequest, "FILES_REQUIRED", "at least one file is required", false, nil)
		return
	}

	files := make([]ingest.FilePayload, 0, len(fileHeaders))
	for _, header := range fileHeaders {
		data, err := readUploadedFile(header)
		if err != nil {
			writeError(r.Context(), w, http.StatusBadRequest, "FILE_READ_FAILED", fmt.Sprintf("failed to read uploaded file %q", header.Filename), false, map[string]any{"details": err.Error()})
			return
		}
		files = append(files, ingest.FilePayload{Name: header.Filename, Data: data})
	}

	summary, err := deps.Ingest.Run(r.Context(), files, overrides)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "INGEST_FAILED", "ingestion job could not run", true, map[string]any{"details": err.Error()})
		return
	}

	status := http.StatusOK
	if summary.Status == ingest.StatusFailed {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, summary)
}

func readUploadedFile(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()
	return io.ReadAll(file)
}

func requireRole(r *http.Request, role string) error {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return nil
	}
	if identity.HasRole(role) {
		return nil
	}
	return fmt.Errorf("missing required role %q", role)
}
