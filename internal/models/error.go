package models

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Account security errors
	ErrAccountLocked      = errors.New("account is temporarily locked")
	ErrRateLimitExceeded  = errors.New("rate limit exceeded")
	ErrVerificationFailed = errors.New("identity verification failed")
	ErrStorage            = errors.New("storage unavailable")
	ErrValidation         = errors.New("validation failed")
	ErrCredentialUpdate   = errors.New("credential update failed")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")
)

// ValidationError reports malformed input. Message is safe to show to the caller verbatim.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError creates a ValidationError for a single field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// LockedOutError is returned while an identity has an unexpired lockout record
type LockedOutError struct {
	UnlockAt         time.Time
	RemainingMinutes int
	LockoutCount     int
}

func (e *LockedOutError) Error() string {
	return fmt.Sprintf("account is temporarily locked (%d minutes remaining)", e.RemainingMinutes)
}

func (e *LockedOutError) Is(target error) bool {
	return target == ErrAccountLocked
}

// StorageError wraps a persistence failure. Callers should retry with backoff.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

// NewStorageError wraps err unless it is nil or already a domain error
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrStorage) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
