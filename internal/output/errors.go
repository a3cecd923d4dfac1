package output

import (
	"errors"
	"fmt"

	"github.com/basecamp/stockstatus/internal/stock"
	"github.com/basecamp/stockstatus/internal/store"
)

// Error is a structured error with code, message, and optional hint.
type Error struct {
	Code      string
	Message   string
	Hint      string
	Retryable bool
	Cause     error
}

func (e *Error) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Hint)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// ExitCode returns the appropriate exit code for this error.
func (e *Error) ExitCode() int {
	return ExitCodeFor(e.Code)
}

// Error constructors for common cases.

func ErrUsage(msg string) *Error {
	return &Error{Code: CodeUsage, Message: msg}
}

func ErrUsageHint(msg, hint string) *Error {
	return &Error{Code: CodeUsage, Message: msg, Hint: hint}
}

func ErrConfig(msg, hint string) *Error {
	return &Error{Code: CodeConfig, Message: msg, Hint: hint}
}

func ErrNetwork(cause error) *Error {
	return &Error{
		Code:      CodeNetwork,
		Message:   "Network error",
		Hint:      cause.Error(),
		Retryable: true,
		Cause:     cause,
	}
}

// AsError attempts to convert an error to an *Error. Store errors keep
// their code and hint; anything else becomes a store error whose message
// is the display message the TUI would show.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}

	var se *store.Error
	if errors.As(err, &se) {
		return &Error{
			Code:      se.Code,
			Message:   se.Message,
			Hint:      se.Hint,
			Retryable: se.Code == store.CodeNetwork,
			Cause:     err,
		}
	}

	return &Error{
		Code:    CodeStore,
		Message: stock.MessageFor(err),
		Cause:   err,
	}
}
