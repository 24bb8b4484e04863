package core

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned when a constructor or operation receives input it cannot accept.
	// It signals a programming error and must not be retried.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound is returned by helpers that require a projected reference.
	ErrNotFound = errors.New("reference not found")

	// ErrReadOnly is returned when attempting to write to a read-only store.
	ErrReadOnly = errors.New("store is in read-only mode")
)

// ParseError reports a stored line that is not valid JSON.
// A single ParseError fails the whole read.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse event at line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
