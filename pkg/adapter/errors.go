package adapter

import "errors"

var (
	// ErrInvalidConfiguration is returned when an option setter receives a value that can never be valid,
	// e.g. a negative TTL or a key pattern that doesn't compile.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrInvalidKey is returned by public operations when a key doesn't match the configured key pattern.
	ErrInvalidKey = errors.New("invalid key")
	// ErrNotSupported is returned for capability-gated operations (e.g. Flush) the backend doesn't provide.
	ErrNotSupported = errors.New("operation not supported by backend")
)
