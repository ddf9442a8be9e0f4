package registry

import "errors"

// Sentinel errors for the registry layer.
// These allow handlers to check error types with errors.Is() instead of string matching.
var (
	ErrInvalidDocument = errors.New("invalid document")
	ErrInvalidScope    = errors.New("invalid scope")
	ErrBuildFailed     = errors.New("diagram build failed")
)
