package orderload

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Sentinel errors for common failure scenarios.
// These enable callers to distinguish error types using errors.Is().
//
// Example usage:
//
//	_, err := loader.Load(ctx, config)
//	if errors.Is(err, orderload.ErrInsertionFailed) {
//	    // a row was rejected by the store; nothing was committed
//	}
var (
	// ErrInvalidConfig indicates the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrConnectionFailed indicates the store could not be reached or rejected the credentials.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrInputFormat indicates the CSV file is unreadable, lacks a required column,
	// or contains a malformed row.
	ErrInputFormat = errors.New("invalid input format")

	// ErrInsertionFailed indicates the store rejected a row.
	ErrInsertionFailed = errors.New("insertion failed")

	// ErrCommitFailed indicates the transaction could not be finalized.
	ErrCommitFailed = errors.New("commit failed")

	// ErrApprovalDenied indicates the user denied approval for a destructive operation.
	ErrApprovalDenied = errors.New("approval denied")

	// ErrNotSupported indicates the selected driver does not support the requested operation.
	ErrNotSupported = errors.New("not supported")

	// ErrUnsupportedAuthMethod indicates the requested authentication method is not supported.
	ErrUnsupportedAuthMethod = errors.New("unsupported authentication method")
)

// InsertError describes a single rejected row.
// It unwraps to both ErrInsertionFailed and the driver error.
type InsertError struct {
	Line      int
	OrderID   string
	Duplicate bool
	Err       error
}

func (e *InsertError) Error() string {
	what := "insert"
	if e.Duplicate {
		what = "duplicate key"
	}
	return fmt.Sprintf("line %d (order_id %q): %s: %v", e.Line, Preview(e.OrderID), what, e.Err)
}

func (e *InsertError) Unwrap() []error {
	return []error{ErrInsertionFailed, e.Err}
}

// Preview shortens a value for inclusion in error messages.
func Preview(s string) string {
	if len(s) <= MaxErrorPreviewLength {
		return s
	}
	cut := MaxErrorPreviewLength
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// usageErrorPatterns match the messages cobra and pflag produce for bad invocations.
var usageErrorPatterns = []string{
	"unknown flag",
	"unknown shorthand flag",
	"unknown command",
	"accepts ",
	"requires at least",
	"required flag",
	"invalid argument",
	"flag needs an argument",
}

// ExitCodeForError returns the appropriate exit code for an error.
// Returns ExitSuccess (0) for nil errors, semantic codes for known errors,
// and ExitGeneralError (1) for unclassified errors.
func ExitCodeForError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	switch {
	case errors.Is(err, ErrInvalidConfig):
		return ExitConfigError
	case errors.Is(err, ErrUnsupportedAuthMethod):
		return ExitConfigError
	case errors.Is(err, ErrConnectionFailed):
		return ExitConnectionError
	case errors.Is(err, ErrApprovalDenied):
		return ExitApprovalDenied
	case errors.Is(err, ErrInputFormat):
		return ExitInputFormat
	case errors.Is(err, ErrInsertionFailed):
		return ExitInsertionFailed
	case errors.Is(err, ErrCommitFailed):
		return ExitCommitFailed
	case errors.Is(err, ErrNotSupported):
		return ExitUsageError
	}

	errStr := err.Error()
	for _, pattern := range usageErrorPatterns {
		if strings.Contains(errStr, pattern) {
			return ExitUsageError
		}
	}

	if strings.Contains(errStr, "failed to connect") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") {
		return ExitConnectionError
	}

	return ExitGeneralError
}
