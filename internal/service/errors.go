package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned for a malformed request, such as an empty source ID.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned for a source ID that is not configured.
	ErrNotFound = errors.New("not found")
	// ErrStoreUnavailable is returned when the chunk store cannot be read.
	ErrStoreUnavailable = errors.New("chunk store unavailable")
)

// storeError tags err as ErrStoreUnavailable and keeps its cause matchable.
func storeError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
