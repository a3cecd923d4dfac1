package stock

import (
	"errors"
	"strings"
)

// DefaultFetchMessage is shown when a store error carries no message.
const DefaultFetchMessage = "Error fetching data"

// FetchError is the single failure kind surfaced to the display.
type FetchError struct {
	Message string
	Cause   error
}

func (e *FetchError) Error() string {
	return e.Message
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// displayMessager is implemented by store errors that carry a message
// distinct from their Error() text (for example a PostgREST error body).
type displayMessager interface {
	DisplayMessage() string
}

// NewFetchError wraps err with a human-readable message.
func NewFetchError(err error) *FetchError {
	if err == nil {
		return &FetchError{Message: DefaultFetchMessage}
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}
	return &FetchError{Message: MessageFor(err), Cause: err}
}

// MessageFor derives the display message for a fetch error.
func MessageFor(err error) string {
	if err == nil {
		return DefaultFetchMessage
	}
	var dm displayMessager
	if errors.As(err, &dm) {
		if msg := strings.TrimSpace(dm.DisplayMessage()); msg != "" {
			return msg
		}
	}
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return DefaultFetchMessage
}
