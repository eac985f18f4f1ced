package raster

import (
	"errors"
	"fmt"
)

// Common rasterization errors
var (
	// ErrInvalidPDF is returned when the provided data is not a valid PDF document.
	ErrInvalidPDF = errors.New("invalid or corrupted PDF document")

	// ErrNoPages is returned when pdftoppm produces no page images for a document.
	ErrNoPages = errors.New("rasterizer produced no page images")

	// ErrRasterFailed is returned when the pdftoppm invocation fails.
	ErrRasterFailed = errors.New("PDF rasterization failed")
)

// RasterError wraps errors with additional context about the rasterization failure.
type RasterError struct {
	// Op is the operation that failed (e.g., "RenderPages").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *RasterError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("raster: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("raster: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *RasterError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *RasterError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// WrapRasterError wraps an error as a RasterError if it isn't already one.
func WrapRasterError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var rerr *RasterError
	if errors.As(err, &rerr) {
		return err
	}

	return &RasterError{Op: op, Err: err, Details: details}
}
