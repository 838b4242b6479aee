// Package apperr classifies failures so transports can map them without inspecting
// messages.
package apperr

import (
	"errors"
	"fmt"

	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/storage"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_failed"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationErr keeps err's text as the client-facing message.
func ValidationErr(err error) error {
	return &Error{Kind: KindValidation, Message: err.Error(), Err: err}
}

func Unauthenticated() error {
	return &Error{Kind: KindUnauthenticated, Message: "authentication required"}
}

// Forbidden never names the resource.
func Forbidden() error {
	return &Error{Kind: KindForbidden, Message: "forbidden"}
}

func NotFound(what string) error {
	return &Error{Kind: KindNotFound, Message: what + " not found"}
}

func Conflict(err error) error {
	return &Error{Kind: KindConflict, Message: err.Error(), Err: err}
}

func Internal(op string, err error) error {
	return &Error{Kind: KindInternal, Message: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, KindInternal otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// PublicMessage is safe to show a client. Internal errors have no detail.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return "internal error"
}

func Is(err error, k Kind) bool { return err != nil && KindOf(err) == k }

// FromStore classifies an error coming back from the store or a model transition.
// Errors that already carry a kind pass through; what names the missing resource.
func FromStore(op, what string, err error) error {
	var e *Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &e):
		return err
	case storage.IsNotFound(err):
		return NotFound(what)
	case errors.Is(err, model.ErrInvalidTransition):
		return Conflict(err)
	case storage.IsConflict(err):
		return &Error{Kind: KindConflict, Message: what + " already exists", Err: err}
	}
	return Internal(op, err)
}
