// Package errors provides structured error types for the Sediment write
// path. All errors include a category, code, message, and retryable flag
// for consistent error handling across components.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by failure domain.
type ErrorCategory string

const (
	ErrCategoryConfiguration ErrorCategory = "CONFIGURATION"
	ErrCategoryDictionary    ErrorCategory = "DICTIONARY"
	ErrCategoryDataLoading   ErrorCategory = "DATA_LOADING"
	ErrCategoryInterrupted   ErrorCategory = "INTERRUPTED"
	ErrCategoryStorage       ErrorCategory = "STORAGE"
	ErrCategoryInternal      ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Configuration codes
	CodeInvalidPermits = "INVALID_PERMITS"
	CodeInvalidConfig  = "INVALID_CONFIG"
	CodeInvalidSchema  = "INVALID_SCHEMA"

	// Dictionary codes
	CodeDictionaryAppend   = "APPEND_FAILED"
	CodeSortIndexWrite     = "SORT_INDEX_WRITE_FAILED"
	CodeCorruptionDetected = "CORRUPTION_DETECTED"

	// Data loading codes
	CodeManifestWrite = "MANIFEST_WRITE_FAILED"
	CodeManifestRead  = "MANIFEST_READ_FAILED"
	CodeSegmentWrite  = "SEGMENT_WRITE_FAILED"
	CodeSourceRead    = "SOURCE_READ_FAILED"
	CodeLoadNotFound  = "LOAD_NOT_FOUND"
	CodeLoadNotActive = "LOAD_NOT_ACTIVE"

	// Interrupted codes
	CodeCommitWaitCancelled = "COMMIT_WAIT_CANCELLED"

	// Storage codes
	CodeUploadFailed   = "UPLOAD_FAILED"
	CodeDownloadFailed = "DOWNLOAD_FAILED"
	CodeDeleteFailed   = "DELETE_FAILED"
	CodeObjectNotFound = "OBJECT_NOT_FOUND"
	CodeMirrorConflict = "MIRROR_CONFLICT"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// SedimentError is the structured error type used throughout the system.
type SedimentError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *SedimentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *SedimentError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *SedimentError) Is(target error) bool {
	var t *SedimentError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new SedimentError.
func New(category ErrorCategory, code, message string) *SedimentError {
	return &SedimentError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new SedimentError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *SedimentError {
	return &SedimentError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *SedimentError) WithDetails(details map[string]interface{}) *SedimentError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var se *SedimentError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// IsInterrupted reports whether the error chain carries a cancelled
// commit wait.
func IsInterrupted(err error) bool {
	return GetCategory(err) == ErrCategoryInterrupted
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a SedimentError.
func GetCategory(err error) ErrorCategory {
	var se *SedimentError
	if errors.As(err, &se) {
		return se.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a SedimentError.
func GetCode(err error) string {
	var se *SedimentError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// isRetryable determines if an error code names a transient condition.
// Load-path failures are fatal to the enclosing load and never retried;
// only object-storage transfer hiccups qualify.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryStorage && code == CodeUploadFailed:
		return true
	case category == ErrCategoryStorage && code == CodeDownloadFailed:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewConfigurationError(code, message string) *SedimentError {
	return New(ErrCategoryConfiguration, code, message)
}

func NewDictionaryError(code, message string, cause error) *SedimentError {
	return Wrap(ErrCategoryDictionary, code, message, cause)
}

func NewDataLoadingError(code, message string, cause error) *SedimentError {
	return Wrap(ErrCategoryDataLoading, code, message, cause)
}

func NewCommitInterrupted(message string, cause error) *SedimentError {
	return Wrap(ErrCategoryInterrupted, CodeCommitWaitCancelled, message, cause)
}

func NewStorageError(code, message string, cause error) *SedimentError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewInternalError(message string, cause error) *SedimentError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
