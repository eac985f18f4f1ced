package extract

import (
	"errors"
	"fmt"
)

// Common errors that can occur during feature extraction.
var (
	// ErrMissingAPIKey indicates the OpenAI API key is not configured.
	ErrMissingAPIKey = errors.New("missing OpenAI API key")

	// ErrEmptyText indicates there was no consolidated text to extract from.
	ErrEmptyText = errors.New("no text to extract from")

	// ErrCompletionFailed indicates the completion request failed.
	ErrCompletionFailed = errors.New("completion request failed")

	// ErrInvalidResponse indicates the model returned content that is not
	// valid JSON for the requested schema.
	ErrInvalidResponse = errors.New("invalid completion response")

	// ErrSchemaViolation indicates the parsed record does not satisfy the
	// record schema.
	ErrSchemaViolation = errors.New("record violates schema")
)

// ExtractError provides detailed error information for extraction operations.
type ExtractError struct {
	// Op is the operation that failed.
	Op string
	// Err is the underlying error.
	Err error
	// Details provides additional context.
	Details string
}

func (e *ExtractError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ExtractError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches the target error.
func (e *ExtractError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// WrapExtractError wraps an error with extraction operation context.
func WrapExtractError(op string, err error, details string) error {
	return &ExtractError{
		Op:      op,
		Err:     err,
		Details: details,
	}
}
