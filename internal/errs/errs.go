// Package errs is the shared error taxonomy: each service method either
// returns a result or one of these kinds, and controllers map kinds to
// HTTP/WS responses.
package errs

import (
	"errors"
	"fmt"
)

// Kind is one of the abstract error categories.
type Kind int

const (
	Unexpected Kind = iota
	AuthErrorKind
	NotFoundKind
	ValidationErrorKind
	RateLimitedKind
	TransportErrorKind
	ResourceErrorKind
)

func (k Kind) String() string {
	switch k {
	case AuthErrorKind:
		return "AuthError"
	case NotFoundKind:
		return "NotFound"
	case ValidationErrorKind:
		return "ValidationError"
	case RateLimitedKind:
		return "RateLimited"
	case TransportErrorKind:
		return "TransportError"
	case ResourceErrorKind:
		return "ResourceError"
	default:
		return "Unexpected"
	}
}

// Error wraps an underlying cause with a taxonomy Kind and a
// human-readable message.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func newErr(k Kind, msg string, cause error) *Error {
	return &Error{Kind: k, Message: msg, Cause: cause}
}

func Auth(msg string, cause error) *Error       { return newErr(AuthErrorKind, msg, cause) }
func NotFound(msg string, cause error) *Error   { return newErr(NotFoundKind, msg, cause) }
func Validation(msg string, cause error) *Error { return newErr(ValidationErrorKind, msg, cause) }
func RateLimited(msg string) *Error             { return newErr(RateLimitedKind, msg, nil) }
func Transport(msg string, cause error) *Error  { return newErr(TransportErrorKind, msg, cause) }
func Resource(msg string, cause error) *Error   { return newErr(ResourceErrorKind, msg, cause) }
func Unexpectedf(msg string, cause error) *Error {
	return newErr(Unexpected, msg, cause)
}

// KindOf returns the taxonomy Kind of err, or Unexpected if err does not
// wrap an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unexpected
}

// Is reports whether err's Kind is k.
func Is(err error, k Kind) bool { return KindOf(err) == k }
