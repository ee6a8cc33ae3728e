package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/inkwell-api/internal/api/shared"
	"github.com/phrazzld/inkwell-api/internal/domain"
	"github.com/phrazzld/inkwell-api/internal/platform/logger"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// HandleAPIError writes the status and safe message for err and logs the
// redacted details. fallback replaces the message of an internal error.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if fallback != "" && status == http.StatusInternalServerError {
		message = fallback
	}
	shared.WriteError(w, r, status, message, err)
}

// HandleValidationError writes a 400 response for a request that failed
// struct validation.
func HandleValidationError(w http.ResponseWriter, r *http.Request, err error) {
	shared.WriteError(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
}

// requireOwner extracts the authenticated owner. It writes a 401 and
// returns false when the request carries none.
func requireOwner(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	ownerID, ok := shared.OwnerID(r.Context())
	if !ok {
		logger.FromContextOrDefault(r.Context(), slog.Default()).
			Warn("owner ID not found or invalid in request context")
		HandleAPIError(w, r, domain.ErrUnauthorized, "")
		return uuid.Nil, false
	}
	return ownerID, true
}

// getPathUUID extracts a UUID from the URL path parameters.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	pathParam := chi.URLParam(r, paramName)
	if pathParam == "" {
		return uuid.Nil, domain.ErrInvalidID
	}

	id, err := uuid.Parse(pathParam)
	if err != nil {
		return uuid.Nil, domain.ErrInvalidID
	}

	return id, nil
}

// handleOwnerAndPathUUID is a composite helper that extracts both the owner
// from context and a UUID from the path parameters. It writes an error
// response if either extraction fails.
func handleOwnerAndPathUUID(w http.ResponseWriter, r *http.Request, paramName string) (uuid.UUID, uuid.UUID, bool) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}

	pathID, err := getPathUUID(r, paramName)
	if err != nil {
		logger.FromContextOrDefault(r.Context(), slog.Default()).Debug("invalid path parameter",
			slog.String("param_name", paramName),
			slog.String("value", chi.URLParam(r, paramName)))
		HandleAPIError(w, r, err, "")
		return uuid.Nil, uuid.Nil, false
	}

	return ownerID, pathID, true
}

// pagination reads limit and offset query parameters. Invalid or missing
// values fall back to the defaults and limit is capped.
func pagination(r *http.Request) (limit, offset int) {
	limit = defaultPageSize
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = min(v, maxPageSize)
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}
