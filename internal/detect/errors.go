package detect

import (
	"errors"
	"fmt"
)

// Common detection/recognition errors
var (
	// ErrDetectionFailed is returned when the backend fails to analyze a page.
	ErrDetectionFailed = errors.New("text region detection failed")

	// ErrRecognitionFailed is returned when the backend fails to recognize text.
	ErrRecognitionFailed = errors.New("text recognition failed")

	// ErrMissingCredentials is returned when the Cloud Vision backend has no
	// usable Google Cloud credentials configured.
	ErrMissingCredentials = errors.New("missing Google Cloud credentials: set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS environment variable")

	// ErrBackendClosed is returned when a page is submitted after Close.
	ErrBackendClosed = errors.New("OCR backend is closed")
)

// BackendError wraps errors with additional context about the OCR backend failure.
type BackendError struct {
	// Op is the operation that failed (e.g., "DetectRegions", "ReadBlocks").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("detect: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("detect: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *BackendError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *BackendError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// WrapBackendError wraps an error as a BackendError if it isn't already one.
func WrapBackendError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var berr *BackendError
	if errors.As(err, &berr) {
		return err
	}

	return &BackendError{Op: op, Err: err, Details: details}
}
