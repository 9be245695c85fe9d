package metadata

import (
	"errors"
	"fmt"
)

// StoreError represents a domain error from store or engine operations.
//
// These are business logic errors (node not found, permission denied, quota
// exceeded, etc.) as opposed to infrastructure errors (disk, network, driver).
// Infrastructure errors are wrapped with fmt.Errorf and never carry a code.
//
// Boundary handlers translate StoreError codes to their own status codes
// (HTTP status, CLI exit code).
type StoreError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Path identifies the entity related to the error (node ID, username, grant ID)
	Path string
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Path != "" {
		return e.Message + ": " + e.Path
	}
	return e.Message
}

// ErrorCode represents the category of a StoreError.
type ErrorCode int

const (
	// ErrNotFound indicates the requested user, node, grant or notification
	// doesn't exist (or is not visible to the caller)
	ErrNotFound ErrorCode = iota

	// ErrPermissionDenied indicates the actor lacks ownership, role or grant
	ErrPermissionDenied

	// ErrQuotaExceeded indicates a reservation would push usage above quota
	ErrQuotaExceeded

	// ErrInvalidOperation indicates a structurally invalid request
	// Examples: cyclic move, self-share, duplicate folder name
	ErrInvalidOperation

	// ErrCorruptState indicates a broken invariant was detected in stored data
	// Example: a cycle in the parent chain
	ErrCorruptState

	// ErrAlreadyExists indicates a uniqueness constraint was violated
	// Examples: duplicate username or email
	ErrAlreadyExists

	// ErrInvalidArgument indicates invalid parameters were provided
	// Examples: empty name, negative size, unknown permission
	ErrInvalidArgument
)

func (c ErrorCode) String() string {
	switch c {
	case ErrNotFound:
		return "NotFound"
	case ErrPermissionDenied:
		return "PermissionDenied"
	case ErrQuotaExceeded:
		return "QuotaExceeded"
	case ErrInvalidOperation:
		return "InvalidOperation"
	case ErrCorruptState:
		return "CorruptState"
	case ErrAlreadyExists:
		return "AlreadyExists"
	case ErrInvalidArgument:
		return "InvalidArgument"
	default:
		return fmt.Sprintf("ErrorCode(%d)", int(c))
	}
}

// CodeOf extracts the ErrorCode of err.
// The second return is false when err is not (and does not wrap) a StoreError.
func CodeOf(err error) (ErrorCode, bool) {
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeErr.Code, true
	}
	return 0, false
}

// IsCode reports whether err is a StoreError carrying code.
func IsCode(err error, code ErrorCode) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

// IsNotFound reports whether err is an ErrNotFound StoreError.
func IsNotFound(err error) bool {
	return IsCode(err, ErrNotFound)
}

func NewNotFoundError(kind, id string) *StoreError {
	return &StoreError{Code: ErrNotFound, Message: kind + " not found", Path: id}
}

func NewPermissionDeniedError(message, id string) *StoreError {
	return &StoreError{Code: ErrPermissionDenied, Message: message, Path: id}
}

func NewQuotaExceededError(userID string, used, requested, quota int64) *StoreError {
	return &StoreError{
		Code:    ErrQuotaExceeded,
		Message: fmt.Sprintf("storage quota exceeded (used %d + requested %d > quota %d)", used, requested, quota),
		Path:    userID,
	}
}

func NewInvalidOperationError(message, id string) *StoreError {
	return &StoreError{Code: ErrInvalidOperation, Message: message, Path: id}
}

func NewCorruptStateError(message, id string) *StoreError {
	return &StoreError{Code: ErrCorruptState, Message: message, Path: id}
}

func NewAlreadyExistsError(kind, key string) *StoreError {
	return &StoreError{Code: ErrAlreadyExists, Message: kind + " already exists", Path: key}
}

func NewInvalidArgumentError(message, value string) *StoreError {
	return &StoreError{Code: ErrInvalidArgument, Message: message, Path: value}
}
