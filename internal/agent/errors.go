package agent

import "errors"

// Common errors returned by agent implementations.
var (
	// ErrInvalidResponse is returned when the model's answer cannot be
	// parsed or does not match the requested structure.
	ErrInvalidResponse = errors.New("invalid response from language model")

	// ErrContentBlocked is returned when the model refuses the content due
	// to safety filters.
	ErrContentBlocked = errors.New("content blocked by language model safety filters")

	// ErrTransientFailure is returned for temporary errors that might
	// resolve on retry.
	ErrTransientFailure = errors.New("transient language model failure")

	// ErrInvalidConfig is returned when the agent configuration is invalid.
	ErrInvalidConfig = errors.New("invalid agent configuration")
)
