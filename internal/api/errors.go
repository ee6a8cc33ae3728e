package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/inkwell-api/internal/domain"
	"github.com/phrazzld/inkwell-api/internal/ledger"
	"github.com/phrazzld/inkwell-api/internal/service"
	"github.com/phrazzld/inkwell-api/internal/service/auth"
	"github.com/phrazzld/inkwell-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrWrongTokenType),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized

	// Credits
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusPaymentRequired

	// Authorization errors
	case errors.Is(err, service.ErrNotOwned):
		return http.StatusForbidden

	// Not found errors
	case errors.Is(err, service.ErrJobNotFound),
		errors.Is(err, service.ErrArticleNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, service.ErrJobNotCancellable),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrJobTerminal),
		errors.Is(err, ledger.ErrAlreadySettled):
		return http.StatusConflict

	// Bad request errors
	case errors.Is(err, domain.ErrInvalidConfiguration),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrEmptyTitles),
		errors.Is(err, domain.ErrTooManyTitles),
		errors.Is(err, domain.ErrDuplicateTitle),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	// Infrastructure errors the client may retry
	case errors.Is(err, service.ErrQueueUnavailable):
		return http.StatusServiceUnavailable

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrWrongTokenType),
		errors.Is(err, auth.ErrMissingToken):
		return "Invalid token"
	case errors.Is(err, domain.ErrUnauthorized):
		return "Authentication required"

	case errors.Is(err, domain.ErrInsufficientFunds):
		return "Insufficient credits"

	case errors.Is(err, service.ErrNotOwned):
		return "You do not own this resource"

	case errors.Is(err, service.ErrJobNotFound):
		return "Job not found"
	case errors.Is(err, service.ErrArticleNotFound):
		return "Article not found"
	case errors.Is(err, store.ErrNotFound):
		return "Resource not found"

	case errors.Is(err, service.ErrJobNotCancellable),
		errors.Is(err, domain.ErrJobTerminal),
		errors.Is(err, domain.ErrInvalidTransition):
		return "Job can no longer be cancelled"
	case errors.Is(err, ledger.ErrAlreadySettled):
		return "Job credits already settled"

	case errors.Is(err, domain.ErrInvalidConfiguration):
		return "Invalid generation configuration"
	case errors.Is(err, domain.ErrEmptyTitles):
		return "At least one title is required"
	case errors.Is(err, domain.ErrTooManyTitles):
		return fmt.Sprintf("No more than %d titles per job", domain.MaxBulkTitles)
	case errors.Is(err, domain.ErrDuplicateTitle):
		return "Titles must be unique"
	case errors.Is(err, domain.ErrInvalidID):
		return "Invalid ID"
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, store.ErrInvalidEntity):
		return "Validation error"

	case errors.Is(err, service.ErrQueueUnavailable):
		return "Service temporarily unavailable, please try again"

	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError removes sensitive details from validation errors
// and returns a user-friendly message.
func SanitizeValidationError(err error) string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return "Validation error"
	}

	messages := make([]string, 0, len(validationErrs))
	for _, fe := range validationErrs {
		messages = append(messages, fmt.Sprintf("Invalid %s: %s", fe.Field(), getValidationTagMessage(fe.Tag())))
	}
	return strings.Join(messages, "; ")
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min", "gt", "gte":
		return "too small"
	case "max", "lt", "lte":
		return "too large"
	case "oneof":
		return "invalid value"
	case "unique":
		return "values must be unique"
	case "dive":
		return "invalid entry"
	default:
		return "validation failed"
	}
}
