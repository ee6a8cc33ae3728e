// Package domain defines the core business entities and errors.
package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrEmptyContent is returned when required content is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidConfiguration is returned when a generation configuration is
	// rejected. Submissions carrying an invalid configuration never reserve credits.
	ErrInvalidConfiguration = errors.New("invalid generation configuration")

	// ErrInsufficientFunds is returned when an account does not have enough
	// available credits to cover a reservation.
	ErrInsufficientFunds = errors.New("insufficient credits")

	// ErrInvalidAmount is returned for zero or negative credit amounts.
	ErrInvalidAmount = errors.New("invalid credit amount")

	// ErrInvalidTransition is returned when a job is asked to move along an
	// edge the job state machine does not allow.
	ErrInvalidTransition = errors.New("invalid job status transition")

	// ErrJobTerminal is returned when a mutation is attempted on a job that
	// already reached a terminal state.
	ErrJobTerminal = errors.New("job is in a terminal state")

	// ErrUnauthorized is returned when an operation is not permitted.
	ErrUnauthorized = errors.New("unauthorized operation")
)
