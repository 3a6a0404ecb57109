package domain

import "errors"

// Sentinel errors shared across stores and services. A not-found
// outcome is distinct from a validation error and callers are expected
// to branch on them with errors.Is.
var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)
