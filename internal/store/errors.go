package store

import (
	"fmt"
	"net/http"
)

// Error codes.
const (
	CodeConfig  = "config"
	CodeNetwork = "network"
	CodeAuth    = "auth_required"
	CodeStore   = "store_error"
)

// Error is a structured store failure. Message is what the display shows;
// Error() adds the backend detail for logs.
type Error struct {
	Code       string
	Message    string
	Detail     string
	Hint       string
	HTTPStatus int
	Cause      error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Detail)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// DisplayMessage returns the message without backend detail.
func (e *Error) DisplayMessage() string {
	return e.Message
}

// ErrConfig reports a missing or invalid backend setting.
func ErrConfig(msg string) *Error {
	return &Error{Code: CodeConfig, Message: msg}
}

// ErrNetwork wraps a transport failure.
func ErrNetwork(cause error) *Error {
	return &Error{Code: CodeNetwork, Message: cause.Error(), Cause: cause}
}

// ErrStatus builds an error for a non-2xx response. msg may be empty.
func ErrStatus(status int, msg, detail, hint string) *Error {
	if msg == "" {
		msg = http.StatusText(status)
	}
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d", status)
	}
	code := CodeStore
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		code = CodeAuth
	}
	return &Error{
		Code:       code,
		Message:    msg,
		Detail:     detail,
		Hint:       hint,
		HTTPStatus: status,
	}
}
