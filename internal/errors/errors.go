package errors

import (
	"errors"
	"fmt"
)

// RankError is the structured error type for rubricrank.
// It carries enough context for logging, retry decisions, and user-facing output.
type RankError struct {
	// Code is the unique error code (e.g., "ERR_406_NOT_READY").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is derived from the code range.
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error.
	Cause error

	// Retryable indicates the operation may succeed if repeated.
	Retryable bool

	// Suggestion is an actionable hint for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *RankError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *RankError) Unwrap() error {
	return e.Cause
}

// Is matches another RankError by code, so callers can compare against
// a template like &RankError{Code: ErrCodeNotReady}.
func (e *RankError) Is(target error) bool {
	if t, ok := target.(*RankError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail and returns the error for chaining.
func (e *RankError) WithDetail(key, value string) *RankError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion sets an actionable suggestion.
func (e *RankError) WithSuggestion(suggestion string) *RankError {
	e.Suggestion = suggestion
	return e
}

// New creates a RankError. Category, severity and retryability come from the code.
func New(code string, message string, cause error) *RankError {
	return &RankError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Newf is New with a formatted message and no cause.
func Newf(code string, format string, args ...any) *RankError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Wrap creates a RankError from an existing error, reusing its message.
func Wrap(code string, err error) *RankError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration error.
func ConfigError(message string, cause error) *RankError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ValidationError creates an input validation error.
func ValidationError(message string, cause error) *RankError {
	return New(ErrCodeInvalidInput, message, cause)
}

// NotReadyError reports that a corpus has no engine for the requested mode.
func NotReadyError(corpusID, engine string) *RankError {
	return New(ErrCodeNotReady, fmt.Sprintf("corpus %q has no %s index", corpusID, engine), nil).
		WithDetail("corpus_id", corpusID).
		WithDetail("engine", engine).
		WithSuggestion("Build the corpus indexes before searching")
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *RankError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable reports whether err, or any RankError in its chain, is retryable.
func IsRetryable(err error) bool {
	var re *RankError
	if errors.As(err, &re) {
		return re.Retryable
	}
	return false
}

// IsFatal reports whether err carries fatal severity.
func IsFatal(err error) bool {
	var re *RankError
	if errors.As(err, &re) {
		return re.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from the first RankError in the chain.
// Returns empty string if there is none.
func GetCode(err error) string {
	var re *RankError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code string) bool {
	return errors.Is(err, &RankError{Code: code})
}

// GetCategory extracts the category from the first RankError in the chain.
func GetCategory(err error) Category {
	var re *RankError
	if errors.As(err, &re) {
		return re.Category
	}
	return ""
}

// Is reports whether any error in err's chain matches target. A RankError
// target matches by code.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}
