package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/EijunnN/flash-route-sub001/internal/ingest"
)

// Sentinel errors for upload extraction; statusForError and MapError both
// key off these.
var (
	errNoFile          = errors.New("no file provided")
	errEmptyFile       = errors.New("empty file")
	errMalformedUpload = errors.New("malformed upload")
	errBadCapabilities = errors.New("invalid capabilities payload")
)

// handleImport processes POST /api/imports: a multipart form with the
// order file under "file" and an optional "capabilities" JSON field
// overriding the tenant profile. The response is the import report; any
// failure returns the mapped error and nothing is partially applied on
// this side.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	fileName, data, profile, ok := s.readImportRequest(w, r)
	if !ok {
		return
	}

	report, err := s.service.Import(r.Context(), fileName, data, profile)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, report)
}

// handleImportPreview processes POST /api/imports/preview: same request
// shape as an import, but only analyzes the file. Nothing is submitted.
func (s *Server) handleImportPreview(w http.ResponseWriter, r *http.Request) {
	fileName, data, profile, ok := s.readImportRequest(w, r)
	if !ok {
		return
	}

	analysis, err := s.service.Analyze(r.Context(), fileName, data, profile)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, analysis)
}

// readImportRequest extracts the uploaded file and capability profile
// from a multipart request. On failure it writes the error response
// itself and returns ok=false.
func (s *Server) readImportRequest(w http.ResponseWriter, r *http.Request) (fileName string, data []byte, profile ingest.CapabilityProfile, ok bool) {
	// Cap the request body to prevent memory exhaustion
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxFileSize)

	if err := r.ParseMultipartForm(s.cfg.Import.MaxFileSize); err != nil {
		// Keep the original chain so the size-cap error stays detectable.
		s.respondError(w, r, fmt.Errorf("%w: %w", errMalformedUpload, err))
		return "", nil, profile, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, errNoFile)
		return "", nil, profile, false
	}
	defer file.Close()

	data, err = io.ReadAll(file)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %w", errMalformedUpload, err))
		return "", nil, profile, false
	}
	if len(data) == 0 {
		s.respondError(w, r, errEmptyFile)
		return "", nil, profile, false
	}

	if raw := r.FormValue("capabilities"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &profile); err != nil {
			s.respondError(w, r, fmt.Errorf("%w: %w", errBadCapabilities, err))
			return "", nil, profile, false
		}
	}

	return header.Filename, data, profile, true
}

// handleImportHistory processes GET /api/imports with an optional limit
// query parameter.
func (s *Server) handleImportHistory(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", 50)

	records, err := s.service.ImportHistory(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{
		"data":  records,
		"count": len(records),
	})
}

// handleImportDetail processes GET /api/imports/{importID}.
func (s *Server) handleImportDetail(w http.ResponseWriter, r *http.Request) {
	importID := chi.URLParam(r, "importID")

	record, err := s.service.ImportDetail(r.Context(), importID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, record)
}

// parseIntParam parses an integer query parameter with a fallback default.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return defaultVal
	}
	return n
}
