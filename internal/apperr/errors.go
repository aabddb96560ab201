// Package apperr defines the error taxonomy shared by the store, service and transports.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation error")
	ErrFormat             = errors.New("format error")
	ErrDuplicate          = errors.New("duplicate")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Error carries a user-facing message while still matching its kind with errors.Is.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

// New returns an *Error of kind with a formatted message.
func New(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
