package taskerrors

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind classifies engine errors so callers need a single handling path.
type Kind string

const (
	// Validation indicates malformed run options or a misconfigured task set:
	// missing dependency references, duplicate ids, circular dependencies, or
	// invalid feature names.
	Validation Kind = "validation"

	// NotFound indicates an absent context key, task, or compensation.
	NotFound Kind = "not_found"

	// Conflict indicates a feature flag conflict or duplicate registration.
	Conflict Kind = "conflict"

	// Failed indicates a task's execute or undo operation reported failure.
	Failed Kind = "failed"

	// Invalid indicates an operation requested on a task that does not
	// support it, such as undoing a non-undoable task.
	Invalid Kind = "invalid"
)

// Error is the engine's error value. It can be persisted to a run journal and
// restored without losing its classification or cause chain.
type Error struct {
	Kind    Kind   `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`

	Cause      error  `json:"cause,omitempty"`
	Stacktrace string `json:"stacktrace,omitempty"`
}

func (e *Error) UnmarshalJSON(b []byte) error {
	type Alias Error
	a := &struct {
		Cause *Error `json:"cause,omitempty"`
		*Alias
	}{}

	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}

	*e = *(*Error)(a.Alias)
	e.Cause = a.Cause

	return nil
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil || e.Cause == (*Error)(nil) {
		return nil
	}

	return e.Cause
}

func (e *Error) Stack() string {
	return e.Stacktrace
}

var _ error = (*Error)(nil)

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies the given error. If the error already carries a kind it is
// returned unchanged, so the original classification wins.
func Wrap(kind Kind, err error) *Error {
	if err == nil {
		return nil
	}

	if e, ok := err.(*Error); ok {
		return e
	}

	e := &Error{
		Kind:    kind,
		Message: err.Error(),
		Cause:   wrapCause(errors.Unwrap(err)),
	}

	if stackTracer, ok := err.(interface{ Stack() string }); ok {
		e.Stacktrace = stackTracer.Stack()
	} else {
		e.Stacktrace = stack(err)
	}

	return e
}

func wrapCause(err error) error {
	if err == nil {
		return nil
	}

	return Wrap(KindOf(err), err)
}

// KindOf returns the kind of the given error, or Failed when the error does
// not carry one.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return Failed
}

// IsKind reports whether any error in the chain carries the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}

	return false
}
