package core

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by LookupEvent and Remove when the backend
// has no event with the given ID.
var ErrNotFound = errors.New("event not found")

// Op names the provider operation that failed.
type Op string

const (
	OpRequestAccess Op = "request access"
	OpFetch         Op = "fetch events"
	OpLookup        Op = "look up event"
	OpSave          Op = "save event"
	OpUpdate        Op = "update event"
	OpRemove        Op = "remove event"
)

// ProviderError wraps a backend failure with the operation that caused
// it. Nothing in this layer is fatal: callers surface the message and
// carry on with their previous state.
type ProviderError struct {
	Op  Op
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError wraps err, preserving an existing ProviderError's op.
func NewProviderError(op Op, err error) *ProviderError {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	return &ProviderError{Op: op, Err: err}
}
