// Package common defines shared constants and sentinel errors used across
// the storage, service and presentation layers of gophauth. Callers should
// use errors.Is / errors.As to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// ErrStorageUnavailable marks any failure to open or query the local store.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrDuplicateCredential is returned when a username or email is already taken.
	ErrDuplicateCredential = errors.New("username or email already exists")

	// ErrValidation is returned when required registration fields are missing.
	ErrValidation = errors.New("validation error")

	// Session token errors.
	ErrInvalidToken = errors.New("invalid token")
)

// Field names reported by DuplicateError.
const (
	FieldUsername = "username"
	FieldEmail    = "email"
	FieldUnknown  = "unknown"
)

// DuplicateError reports which uniqueness constraint rejected a write.
// It matches ErrDuplicateCredential with errors.Is.
type DuplicateError struct {
	Field string
	Err   error
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate %s: %v", e.Field, e.Err)
}

func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicateCredential
}

func (e *DuplicateError) Unwrap() error {
	return e.Err
}
