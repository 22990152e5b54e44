// Package common defines sentinel errors shared by the server layers of
// webshelf. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrEmailTaken = errors.New("email already registered")

	// Service-level errors.
	ErrorInternal          = errors.New("internal error")
	ErrorForbidden         = errors.New("forbidden")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrInvalidInput        = errors.New("invalid input")
	ErrOperationInProgress = errors.New("operation already in progress")
)
