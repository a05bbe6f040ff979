package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// GenericErrorMessage is surfaced when neither the server nor the transport
// supplied anything better.
const GenericErrorMessage = "An unknown error occurred"

var (
	ErrUnauthenticated    = errors.New("not authenticated")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidRole        = errors.New("invalid role")
	ErrRoleNotRegistrable = errors.New("role cannot be self-registered")
	ErrInvalidInput       = errors.New("invalid input")
	ErrSessionNotFound    = errors.New("session not found")
	ErrResetTokenInvalid  = errors.New("reset token is invalid or expired")
	ErrStorage            = errors.New("session storage failure")
)

// APIError is the single normalized failure shape of the HTTP transport.
// Status is zero when no response was received.
type APIError struct {
	Status  int
	Message string
	Timeout bool
	Err     error
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Is lets callers test for a rejected session with errors.Is(err, ErrUnauthenticated).
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthenticated && e.Status == http.StatusUnauthorized
}

// Transport reports whether the failure happened before any response arrived.
func (e *APIError) Transport() bool {
	return e.Status == 0
}

// StorageError wraps a Session Store failure with the operation that failed.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("session store %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}
