// Package apperr holds the error kinds shared by the FM3D services and the
// Outcome type mutations return instead of redirecting on their own.
package apperr

import (
	"fmt"

	"github.com/pkg/errors"
)

type Kind int

const (
	KindInternal Kind = iota
	KindUnauthorized
	KindForbidden
	KindValidation
	KindConflict
	KindNotFound
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not found"
	case KindStorage:
		return "storage"
	}
	return "internal"
}

// Error carries a user-facing Message next to the wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Cause lets github.com/pkg/errors walk through to the underlying error.
func (e *Error) Cause() error { return e.Err }

func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Message: msg}
}

func Wrap(kind Kind, err error, msg string) error {
	return &Error{Kind: kind, Message: msg, Err: errors.WithStack(err)}
}

func Unauthorized() error { return New(KindUnauthorized, "Morate biti prijavljeni.") }

func Forbidden() error { return New(KindForbidden, "Nemate dozvolu za ovu akciju.") }

func Validation(msg string) error { return New(KindValidation, msg) }

func NotFound(msg string) error { return New(KindNotFound, msg) }

func Conflict(msg string) error { return New(KindConflict, msg) }

// KindOf reports the kind of err, KindInternal for anything not produced here.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the text to show the user for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Došlo je do greške. Pokušajte ponovo."
}

// Outcome is what a successful mutation hands back to its handler: where to
// go next and what to tell the user there.
type Outcome struct {
	Redirect string
	Notice   string
}

func Ok(redirect, notice string) Outcome {
	return Outcome{Redirect: redirect, Notice: notice}
}
