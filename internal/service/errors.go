package service

import "errors"

// Common service errors - sentinel errors used across service implementations.
// These errors represent common conditions that callers may want to check for with errors.Is().
//
// Error handling principles:
// 1. Service methods return sentinel errors for expected error conditions
// 2. Unexpected errors are wrapped in service-specific error types
// 3. Callers use errors.Is/errors.As to check for specific error conditions
// 4. The API layer maps service errors to appropriate HTTP status codes
var (
	// ErrNotOwned indicates a resource is owned by a different user than the one making the request.
	// API layer should map this to HTTP 403 Forbidden.
	ErrNotOwned = errors.New("resource is owned by another user")

	// ErrJobNotFound indicates that the job does not exist.
	// API layer should map this to HTTP 404 Not Found.
	ErrJobNotFound = errors.New("job not found")

	// ErrArticleNotFound indicates that the article does not exist.
	// API layer should map this to HTTP 404 Not Found.
	ErrArticleNotFound = errors.New("article not found")

	// ErrJobNotCancellable indicates the job already reached a terminal state.
	// API layer should map this to HTTP 409 Conflict.
	ErrJobNotCancellable = errors.New("job can no longer be cancelled")

	// ErrQueueUnavailable indicates the job could not be handed to the
	// workers. The reservation has been returned and the client may retry.
	// API layer should map this to HTTP 503 Service Unavailable.
	ErrQueueUnavailable = errors.New("job queue unavailable")
)
