package shared

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/phrazzld/inkwell-api/internal/platform/logger"
	"github.com/phrazzld/inkwell-api/internal/redact"
)

// Error codes reported in ErrorResponse.Code. Clients branch on the code,
// never on the message.
const (
	CodeInvalidRequest      = "invalid_request"
	CodeUnauthorized        = "unauthorized"
	CodeInsufficientCredits = "insufficient_credits"
	CodeForbidden           = "forbidden"
	CodeNotFound            = "not_found"
	CodeConflict            = "conflict"
	CodeUnavailable         = "unavailable"
	CodeInternal            = "internal"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	TraceID string `json:"trace_id,omitempty"`
}

// CodeForStatus returns the error code reported with an HTTP status.
func CodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return CodeInvalidRequest
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusPaymentRequired:
		return CodeInsufficientCredits
	case http.StatusForbidden:
		return CodeForbidden
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeConflict
	case http.StatusServiceUnavailable:
		return CodeUnavailable
	}
	if status >= http.StatusInternalServerError {
		return CodeInternal
	}
	return CodeInvalidRequest
}

// WriteJSON writes data as the JSON body of a reply with the given status.
func WriteJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.FromContextOrDefault(r.Context(), slog.Default()).
			Error("failed to encode JSON response", "error", err)
	}
}

// WriteError replies with an ErrorResponse for status and message. err is
// only logged, redacted; the client sees message and the trace id.
//
// Server errors log at ERROR and an unavailable dependency at WARN. A
// rejected submission for lack of credits logs at INFO; other client errors
// at DEBUG.
func WriteError(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	traceID := GetTraceID(r.Context())
	body := ErrorResponse{
		Error:   message,
		Code:    CodeForStatus(status),
		TraceID: traceID,
	}

	attrs := []slog.Attr{
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status_code", status),
		slog.String("code", body.Code),
		slog.String("message", message),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", redact.Error(err)))
	}

	level := slog.LevelDebug
	switch {
	case status == http.StatusServiceUnavailable:
		level = slog.LevelWarn
	case status >= http.StatusInternalServerError:
		level = slog.LevelError
	case status == http.StatusPaymentRequired:
		level = slog.LevelInfo
	}
	logger.FromContextOrDefault(r.Context(), slog.Default()).
		LogAttrs(r.Context(), level, "API error response", attrs...)

	WriteJSON(w, r, status, body)
}
