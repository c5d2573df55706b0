package extjob

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is; the message of the returned error
// is the full diagnostic.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrNotLockOwner    = errors.New("not lock owner")
	ErrLockConflict    = errors.New("lock conflict")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

func newError(kind error, format string, args ...any) error {
	return &kindError{kind: kind, msg: fmt.Sprintf(format, args...)}
}

func invalid(format string, args ...any) error {
	return newError(ErrInvalidArgument, format, args...)
}

// Invalid marks err as an invalid argument for callers outside the engine.
func Invalid(err error) error {
	return invalid("%v", err)
}
