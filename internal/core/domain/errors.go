package domain

import (
	"errors"
	"fmt"
)

var (
	ErrFileNotFound      = errors.New("file not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrTemporary         = errors.New("temporary failure")
	ErrQueueClosed       = errors.New("queue closed")
	ErrConfigUnavailable = errors.New("configuration unavailable")
	ErrDuplicateEntry    = errors.New("duplicate ledger entry")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// IsRetryable reports whether a processing failure may succeed on a later
// attempt. Not-found, invalid-input and duplicate failures are terminal.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if IsKind(err, ErrFileNotFound) || IsKind(err, ErrInvalidInput) || IsKind(err, ErrQueueClosed) ||
		IsKind(err, ErrDuplicateEntry) {
		return false
	}
	return true
}
