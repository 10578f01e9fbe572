// Package apperr is the closed error taxonomy shared by message creation and
// the delivery worker. Every operation error that leaves a service carries
// exactly one Kind.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation   Kind = "validation_error"
	KindNoRecipients Kind = "no_recipients"
	KindDispatch     Kind = "dispatch_error"
	KindPersistence  Kind = "persistence_error"
)

var (
	ErrValidation   = &Error{Kind: KindValidation}
	ErrNoRecipients = &Error{Kind: KindNoRecipients}
	ErrDispatch     = &Error{Kind: KindDispatch}
	ErrPersistence  = &Error{Kind: KindPersistence}
)

type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %s: %v", e.Kind, e.Op, e.Msg, e.Err)
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	case e.Op != "" && e.Msg != "":
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, e.Msg)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, apperr.ErrValidation)
// works for every validation failure.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Msg == "" && t.Err == nil
}

func Validation(op, format string, args ...any) error {
	return &Error{Kind: KindValidation, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func NoRecipients(op, msg string) error {
	return &Error{Kind: KindNoRecipients, Op: op, Msg: msg}
}

func Dispatch(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindDispatch, Op: op, Err: err}
}

// Persistence wraps a store failure. Errors that already carry a kind pass
// through untouched so a rolled-back NoRecipients stays NoRecipients.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return &Error{Kind: KindPersistence, Op: op, Err: err}
}

// KindOf returns the kind carried by err, or "" when err is untyped.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
