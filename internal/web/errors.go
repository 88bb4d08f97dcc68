package web

// errors.go provides unified error response handling for the web layer.
//
// It ensures all errors are:
//   - Logged with full technical details for debugging (server-side)
//   - Returned to clients as user-friendly messages with action suggestions
//   - Mapped to the right HTTP status from the error's type
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls respondError(w, r, err)
//  3. statusForError picks the HTTP status from the error chain
//  4. Error is mapped via importer.MapError to get user-friendly message
//  5. Technical error + context is logged with request ID for correlation

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/EijunnN/flash-route-sub001/internal/fleet"
	"github.com/EijunnN/flash-route-sub001/internal/importer"
	"github.com/EijunnN/flash-route-sub001/internal/ingest"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError handles error responses with user-friendly messages.
// It logs the technical error server-side and returns the mapped message
// with a status derived from the error's type.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	statusCode := statusForError(err)
	userMsg := importer.MapError(err)

	// Get request ID for correlation
	requestID := middleware.GetReqID(r.Context())

	// Log the technical error with context
	slog.Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
		"request_id", requestID,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	})
}

// statusForError maps an error chain to an HTTP status code.
//
// File and validation problems are the client's fault (400/413), fleet API
// trouble is an upstream fault (502), and concurrency pressure maps to 429
// so clients know to back off and retry.
func statusForError(err error) int {
	var maxBytes *http.MaxBytesError
	var apiErr *fleet.APIError
	var missing *ingest.MissingColumnsError
	var empty *importer.EmptyBatchError

	switch {
	// The multipart reader sometimes flattens the body-limit error into
	// plain text, so match it both ways.
	case errors.As(err, &maxBytes),
		strings.Contains(err.Error(), "request body too large"):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, importer.ErrTooManyImports):
		return http.StatusTooManyRequests
	case errors.Is(err, importer.ErrImportNotFound):
		return http.StatusNotFound
	case errors.Is(err, fleet.ErrUnreachable):
		return http.StatusBadGateway
	case errors.As(err, &apiErr):
		return http.StatusBadGateway
	case errors.Is(err, ingest.ErrInsufficientRows),
		errors.As(err, &missing),
		errors.As(err, &empty),
		errors.Is(err, errNoFile),
		errors.Is(err, errEmptyFile),
		errors.Is(err, errMalformedUpload),
		errors.Is(err, errBadCapabilities):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
