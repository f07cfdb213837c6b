package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
type HTTPError interface {
	error
	StatusCode() int
}

// Caller-facing error types implementing HTTPError
type (
	// NotFoundError indicates a resource was not found
	NotFoundError struct {
		Message string
	}

	// ValidationError indicates invalid input
	ValidationError struct {
		Message string
	}

	// UnauthorizedError indicates authentication failure
	UnauthorizedError struct {
		Message string
	}

	// ForbiddenError indicates authorization failure
	ForbiddenError struct {
		Message string
	}
)

func (e *NotFoundError) Error() string     { return e.Message }
func (e *ValidationError) Error() string   { return e.Message }
func (e *UnauthorizedError) Error() string { return e.Message }
func (e *ForbiddenError) Error() string    { return e.Message }

func (e *NotFoundError) StatusCode() int     { return http.StatusNotFound }
func (e *ValidationError) StatusCode() int   { return http.StatusBadRequest }
func (e *UnauthorizedError) StatusCode() int { return http.StatusUnauthorized }
func (e *ForbiddenError) StatusCode() int    { return http.StatusForbidden }

// Is lets the typed errors match their sentinels with errors.Is()
func (e *NotFoundError) Is(target error) bool     { return target == ErrNotFound }
func (e *ValidationError) Is(target error) bool   { return target == ErrValidation }
func (e *UnauthorizedError) Is(target error) bool { return target == ErrUnauthorized }
func (e *ForbiddenError) Is(target error) bool    { return target == ErrForbidden }

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("already exists")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// ConflictError represents a resource conflict with details about the existing resource
type ConflictError struct {
	Message      string // Human-readable error message
	ResourceType string // Type of resource (folder, document, classification)
	ResourceID   string // ID of the existing/conflicting resource
}

func (e *ConflictError) Error() string {
	return e.Message
}

func (e *ConflictError) StatusCode() int {
	return http.StatusConflict
}

// Is allows errors.Is() to match against ErrConflict
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// Pipeline failures. These never carry an HTTP status of their own: the
// handlers answer them with a generic 500 and log the cause.
type (
	// ExtractionError means the archive is corrupt, unreadable or unsafe to unpack.
	ExtractionError struct {
		Archive string
		Err     error
	}

	// IOError wraps a disk failure while staging files.
	IOError struct {
		Op   string
		Path string
		Err  error
	}

	// UnsupportedFormatError means no converter is registered for a file extension.
	// Recovered per file; the file is left out of the tree.
	UnsupportedFormatError struct {
		Ext string
	}

	// ConversionError means a converter failed on a single file.
	// Recovered per file; the file is left out of the tree.
	ConversionError struct {
		Path string
		Err  error
	}

	// TransferError wraps any upload or download failure against the blob store.
	TransferError struct {
		Op  string
		Err error
	}

	// ClassificationError wraps an engine failure or an unusable engine response.
	ClassificationError struct {
		Err error
	}
)

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract archive %s: %v", e.Archive, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported file type: %s", e.Ext)
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("convert %s: %v", e.Path, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

func (e *TransferError) Error() string {
	return fmt.Sprintf("blob %s: %v", e.Op, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classification: %v", e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }
