// Package errs holds the error taxonomy shared by the booking core and the
// HTTP layer. Errors are built and marked with cockroachdb/errors so a kind
// survives wrapping; always test kinds with Is, not with the stdlib.
package errs

import (
	"errors"
	"fmt"
	"strings"

	cr "github.com/cockroachdb/errors"
)

// Kinds. Every error leaving the core is marked with exactly one of these.
var (
	ErrValidation         = errors.New("validation failed")
	ErrConflict           = errors.New("seats unavailable")
	ErrPayment            = errors.New("payment failed")
	ErrHoldExpired        = errors.New("hold expired")
	ErrHoldNotFound       = errors.New("hold not found")
	ErrTransient          = errors.New("collaborator unavailable")
	ErrNotFound           = errors.New("not found")
	ErrInvalidTransition  = errors.New("invalid order transition")
	ErrCancelWindowClosed = errors.New("cancellation window closed")
	ErrDuplicate          = errors.New("duplicate key")
)

func New(msg string) error {
	return cr.New(msg)
}

func Newf(format string, args ...any) error {
	return cr.Newf(format, args...)
}

func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return cr.Wrap(err, msg)
}

func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return cr.Wrapf(err, format, args...)
}

// Mark tags err with kind. A nil err yields the kind itself.
func Mark(err error, kind error) error {
	if err == nil {
		return kind
	}
	return cr.Mark(err, kind)
}

func Is(err, kind error) bool {
	return cr.Is(err, kind)
}

func As(err error, target any) bool {
	return cr.As(err, target)
}

// Validation builds a caller-facing validation error. The message is
// returned to the client verbatim.
func Validation(format string, args ...any) error {
	return cr.Mark(cr.Newf(format, args...), ErrValidation)
}

// Transient wraps a collaborator failure (database, redis, broker, gateway).
func Transient(err error, msg string) error {
	if err == nil {
		return nil
	}
	return cr.Mark(cr.Wrap(err, msg), ErrTransient)
}

// Payment builds a payment declined error carrying the gateway message.
func Payment(msg string) error {
	return cr.Mark(cr.New(msg), ErrPayment)
}

// Kind reports the taxonomy entry err belongs to, or nil when unmarked.
func Kind(err error) error {
	for _, k := range []error{
		ErrValidation, ErrConflict, ErrPayment, ErrHoldExpired, ErrHoldNotFound,
		ErrTransient, ErrNotFound, ErrInvalidTransition, ErrCancelWindowClosed, ErrDuplicate,
	} {
		if cr.Is(err, k) {
			return k
		}
	}
	return nil
}

// ExtractStackLines renders the first maxLines of err's verbose form, which
// includes the stack captured by cockroachdb/errors.
func ExtractStackLines(err error, maxLines int) []string {
	if err == nil {
		return nil
	}
	lines := strings.Split(fmt.Sprintf("%+v", err), "\n")
	if maxLines > 0 && len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	return lines
}
