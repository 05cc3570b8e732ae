package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the HTTP boundary.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthRequired
	KindProviderUnavailable
	KindInvalidAssertion
	KindForbidden
	KindNotFound
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthRequired:
		return "auth_required"
	case KindProviderUnavailable:
		return "provider_unavailable"
	case KindInvalidAssertion:
		return "invalid_assertion"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "internal"
	}
}

var defaultCodes = map[Kind]string{
	KindInternal:            "server_error",
	KindValidation:          "bad_request",
	KindAuthRequired:        "unauthorized",
	KindProviderUnavailable: "google_unreachable",
	KindInvalidAssertion:    "invalid_id_token",
	KindForbidden:           "forbidden",
	KindNotFound:            "not_found",
	KindRateLimited:         "rate_limited",
}

var statuses = map[Kind]int{
	KindInternal:            http.StatusInternalServerError,
	KindValidation:          http.StatusBadRequest,
	KindAuthRequired:        http.StatusUnauthorized,
	KindProviderUnavailable: http.StatusServiceUnavailable,
	KindInvalidAssertion:    http.StatusBadRequest,
	KindForbidden:           http.StatusForbidden,
	KindNotFound:            http.StatusNotFound,
	KindRateLimited:         http.StatusTooManyRequests,
}

// Error is the result type carried from the core to the HTTP boundary.
// Code is the stable machine-readable identifier sent to clients.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
	Fields  map[string]string
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithCode overrides the client-facing code.
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

// WithField attaches a per-field detail, used for validation failures.
func (e *Error) WithField(name, msg string) *Error {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[name] = msg
	return e
}

func newError(kind Kind, msg string, err error) *Error {
	return &Error{
		Kind:    kind,
		Code:    defaultCodes[kind],
		Message: msg,
		Err:     err,
	}
}

func Validation(msg string) *Error { return newError(KindValidation, msg, nil) }

func AuthRequired(msg string) *Error { return newError(KindAuthRequired, msg, nil) }

func ProviderUnavailable(msg string, err error) *Error {
	return newError(KindProviderUnavailable, msg, err)
}

func InvalidAssertion(msg string, err error) *Error {
	return newError(KindInvalidAssertion, msg, err)
}

func Forbidden(msg string) *Error { return newError(KindForbidden, msg, nil) }

func NotFound(msg string) *Error { return newError(KindNotFound, msg, nil) }

func RateLimited(msg string) *Error { return newError(KindRateLimited, msg, nil) }

func Internal(msg string, err error) *Error { return newError(KindInternal, msg, err) }

// Sentinels for errors.Is checks by kind.
var (
	ErrValidation          = &Error{Kind: KindValidation}
	ErrAuthRequired        = &Error{Kind: KindAuthRequired}
	ErrProviderUnavailable = &Error{Kind: KindProviderUnavailable}
	ErrInvalidAssertion    = &Error{Kind: KindInvalidAssertion}
	ErrForbidden           = &Error{Kind: KindForbidden}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrRateLimited         = &Error{Kind: KindRateLimited}
	ErrInternal            = &Error{Kind: KindInternal}
)

// As extracts the *Error from err, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf reports the kind of err. Unclassified errors are internal.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

// Status maps an error kind to its HTTP status code.
func Status(kind Kind) int {
	if s, ok := statuses[kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}
