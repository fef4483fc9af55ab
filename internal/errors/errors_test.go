package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestSedimentError_Error(t *testing.T) {
	err := New(ErrCategoryStorage, CodeUploadFailed, "upload failed")
	expected := "[STORAGE:UPLOAD_FAILED] upload failed"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestSedimentError_ErrorWithCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(ErrCategoryStorage, CodeUploadFailed, "upload failed", cause)
	expected := "[STORAGE:UPLOAD_FAILED] upload failed: connection refused"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestSedimentError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := Wrap(ErrCategoryDataLoading, CodeManifestWrite, "manifest write", cause)
	if !errors.Is(err, cause) {
		t.Error("Unwrap should allow errors.Is to find the cause")
	}
}

func TestSedimentError_Is(t *testing.T) {
	err1 := New(ErrCategoryStorage, CodeUploadFailed, "first")
	err2 := New(ErrCategoryStorage, CodeUploadFailed, "second")
	err3 := New(ErrCategoryStorage, CodeDownloadFailed, "different code")

	if !errors.Is(err1, err2) {
		t.Error("errors with same category+code should match via Is")
	}
	if errors.Is(err1, err3) {
		t.Error("errors with different codes should not match via Is")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		category  ErrorCategory
		code      string
		retryable bool
	}{
		{ErrCategoryStorage, CodeUploadFailed, true},
		{ErrCategoryStorage, CodeDownloadFailed, true},
		{ErrCategoryStorage, CodeObjectNotFound, false},
		{ErrCategoryConfiguration, CodeInvalidPermits, false},
		{ErrCategoryDictionary, CodeDictionaryAppend, false},
		{ErrCategoryDictionary, CodeSortIndexWrite, false},
		{ErrCategoryDataLoading, CodeManifestWrite, false},
		{ErrCategoryInterrupted, CodeCommitWaitCancelled, false},
		{ErrCategoryInternal, CodeUnexpected, false},
	}

	for _, tt := range tests {
		err := New(tt.category, tt.code, "test")
		if IsRetryable(err) != tt.retryable {
			t.Errorf("%s:%s retryable=%v, want %v", tt.category, tt.code, IsRetryable(err), tt.retryable)
		}
	}
}

func TestIsInterrupted(t *testing.T) {
	err := NewCommitInterrupted("wait cancelled", context.Canceled)
	if !IsInterrupted(err) {
		t.Error("NewCommitInterrupted should report as interrupted")
	}
	if IsInterrupted(fmt.Errorf("plain error")) {
		t.Error("plain error should not report as interrupted")
	}
	wrapped := fmt.Errorf("load failed: %w", err)
	if !IsInterrupted(wrapped) {
		t.Error("IsInterrupted should see through wrapping")
	}
}

func TestGetCategory(t *testing.T) {
	err := New(ErrCategoryDictionary, CodeSortIndexWrite, "short write")
	if GetCategory(err) != ErrCategoryDictionary {
		t.Errorf("got %q, want %q", GetCategory(err), ErrCategoryDictionary)
	}
	if GetCategory(fmt.Errorf("plain error")) != "" {
		t.Error("non-SedimentError should return empty category")
	}
}

func TestGetCode(t *testing.T) {
	err := New(ErrCategoryDictionary, CodeSortIndexWrite, "short write")
	if GetCode(err) != CodeSortIndexWrite {
		t.Errorf("got %q, want %q", GetCode(err), CodeSortIndexWrite)
	}
	if GetCode(fmt.Errorf("plain error")) != "" {
		t.Error("non-SedimentError should return empty code")
	}
}

func TestWithDetails(t *testing.T) {
	err := New(ErrCategoryConfiguration, CodeInvalidSchema, "bad schema")
	detailed := err.WithDetails(map[string]interface{}{"column": "country"})

	if detailed.Details["column"] != "country" {
		t.Error("WithDetails should set details")
	}
	// Original should be unmodified
	if err.Details != nil {
		t.Error("WithDetails should not modify original")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	cause := fmt.Errorf("io error")

	c := NewConfigurationError(CodeInvalidPermits, "permits < 1")
	if c.Category != ErrCategoryConfiguration || c.Code != CodeInvalidPermits {
		t.Error("NewConfigurationError mismatch")
	}

	d := NewDictionaryError(CodeDictionaryAppend, "append failed", cause)
	if d.Category != ErrCategoryDictionary || !errors.Is(d, cause) {
		t.Error("NewDictionaryError mismatch")
	}

	l := NewDataLoadingError(CodeManifestWrite, "rename failed", cause)
	if l.Category != ErrCategoryDataLoading {
		t.Error("NewDataLoadingError mismatch")
	}

	ci := NewCommitInterrupted("cancelled while waiting", cause)
	if ci.Category != ErrCategoryInterrupted || ci.Code != CodeCommitWaitCancelled {
		t.Error("NewCommitInterrupted mismatch")
	}

	s := NewStorageError(CodeUploadFailed, "s3 down", cause)
	if s.Category != ErrCategoryStorage || !errors.Is(s, cause) {
		t.Error("NewStorageError mismatch")
	}

	i := NewInternalError("unexpected", cause)
	if i.Category != ErrCategoryInternal || i.Code != CodeUnexpected {
		t.Error("NewInternalError mismatch")
	}
}
