package generation

import "errors"

// Common errors returned by the generation package
var (
	// ErrGenerationFailed is returned when article generation fails for any general reason
	ErrGenerationFailed = errors.New("failed to generate article")

	// ErrInvalidResponse is returned when the provider response cannot be parsed or is malformed
	ErrInvalidResponse = errors.New("invalid response from language model")

	// ErrContentBlocked is returned when the provider blocks the content due to safety filters
	ErrContentBlocked = errors.New("content blocked by language model safety filters")

	// ErrTransientFailure is returned for temporary errors that might resolve on retry
	ErrTransientFailure = errors.New("transient error during article generation")

	// ErrInvalidConfig is returned when a provider configuration is invalid
	ErrInvalidConfig = errors.New("invalid generator configuration")

	// ErrUnknownProvider is returned when no provider is registered under a name
	ErrUnknownProvider = errors.New("unknown content provider")
)

// IsPermanent reports whether retrying the same request cannot succeed.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrContentBlocked) ||
		errors.Is(err, ErrInvalidResponse) ||
		errors.Is(err, ErrInvalidConfig)
}
