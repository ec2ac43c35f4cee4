// Package store holds the sentinel errors shared by storage implementations
// and the services that consume them through interfaces.
package store

import (
	"errors"

	"gatehouse/internal/apperr"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrDuplicate   = errors.New("duplicate entry")
	ErrUnavailable = errors.New("store unavailable")
)

// AsAppError converts an unexpected store failure into the error kind the
// HTTP boundary understands. Callers handle ErrNotFound and ErrDuplicate first.
func AsAppError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnavailable) {
		return apperr.Transient(err)
	}
	return apperr.Internal(err)
}
