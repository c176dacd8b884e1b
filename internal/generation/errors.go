package generation

import "errors"

// Sentinel errors for generation operations.
var (
	ErrEmptyPrompt    = errors.New("prompt cannot be empty")
	ErrBusUnavailable = errors.New("event bus not initialized")
	ErrNotFound       = errors.New("generation not found")
)
