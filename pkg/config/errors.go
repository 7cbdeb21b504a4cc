package config

import "errors"

// Sentinel errors for configuration failures. Check with errors.Is.
var (
	// ErrInvalidConfig covers unreadable or malformed files and values
	// outside their accepted range.
	ErrInvalidConfig = errors.New("config: invalid configuration")

	// ErrMissingRequired indicates a required setting was not provided
	// by any layer.
	ErrMissingRequired = errors.New("config: missing required field")
)
