package storage

import (
	"errors"
	"fmt"
)

var (
	ErrAuthFailed    = errors.New("authentication failed")
	ErrConnFailed    = errors.New("connection failed")
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrInvalidName   = errors.New("invalid destination name")
)

// IsCritical returns true if the error points at the backend setup rather
// than at a single transfer
func IsCritical(err error) bool {
	return errors.Is(err, ErrAuthFailed) || errors.Is(err, ErrInvalidConfig)
}

// WrapError adds context to an error
func WrapError(backend, operation string, err error) error {
	return fmt.Errorf("%s (%s): %w", operation, backend, err)
}
