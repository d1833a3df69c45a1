package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a run failed.
type ErrorKind string

const (
	// KindConfiguration the request itself cannot be carried out, e.g. no binlogs or a bad source
	KindConfiguration ErrorKind = "configuration"
	// KindLaunch one of the external tools could not be started
	KindLaunch ErrorKind = "launch"
	// KindExecution a tool or hook ran and reported failure
	KindExecution ErrorKind = "execution"
	// KindConnection the database server could not be reached during the preflight check
	KindConnection ErrorKind = "connection"
	// KindUnexpected anything else, such as a failure to set up the pipe between the tools
	KindUnexpected ErrorKind = "unexpected"
)

// ErrRestoreFailed is wrapped by the error returned when the replay client exits non-zero.
var ErrRestoreFailed = errors.New("restore failed")

// Error is the error returned by the Executor; it always carries a kind.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err, KindUnexpected if it is not an *Error, or "" if err is nil.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

func newError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func errorf(kind ErrorKind, format string, a ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, a...)}
}
