package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies where a failure originated
type Kind int

const (
	// KindInput is a malformed or missing request field
	KindInput Kind = iota + 1
	// KindDomain is an arithmetic failure inside the calculation
	KindDomain
	// KindUpstream is a price or difficulty feed failure
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindDomain:
		return "domain"
	case KindUpstream:
		return "upstream"
	default:
		return "unknown"
	}
}

// Code identifies a specific failure within a Kind
type Code string

const (
	CodeInvalidInput  Code = "INVALID_INPUT"
	CodeRequiredField Code = "REQUIRED_FIELD"
	CodeInvalidFormat Code = "INVALID_FORMAT"

	CodeDivisionByZero  Code = "DIVISION_BY_ZERO"
	CodeNonFiniteResult Code = "NON_FINITE_RESULT"
	CodeInvalidMarket   Code = "INVALID_MARKET_DATA"

	CodeUpstreamUnavailable Code = "UPSTREAM_UNAVAILABLE"
	CodeUpstreamTimeout     Code = "UPSTREAM_TIMEOUT"
	CodeUpstreamMalformed   Code = "UPSTREAM_MALFORMED"
)

// Error is a tagged application error
type Error struct {
	Kind    Kind
	Code    Code
	Message string
	cause   error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap exposes the underlying cause
func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches on Kind and Code so sentinel comparisons work with errors.Is
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && (t.Code == "" || e.Code == t.Code)
}

// StatusCode returns the HTTP status a client sees for this error.
// All kinds currently map to 400.
func (e *Error) StatusCode() int {
	return http.StatusBadRequest
}

// Input creates an input validation error
func Input(code Code, format string, args ...interface{}) *Error {
	return &Error{Kind: KindInput, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Domain creates a calculation error
func Domain(code Code, format string, args ...interface{}) *Error {
	return &Error{Kind: KindDomain, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Upstream wraps a feed failure
func Upstream(code Code, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: KindUpstream, Code: code, Message: fmt.Sprintf(format, args...), cause: cause}
}

// KindOf returns the Kind of the first *Error in err's chain, or 0
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// CodeOf returns the Code of the first *Error in err's chain, or ""
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsInput reports whether err is an input error
func IsInput(err error) bool { return KindOf(err) == KindInput }

// IsDomain reports whether err is a calculation error
func IsDomain(err error) bool { return KindOf(err) == KindDomain }

// IsUpstream reports whether err is a feed error
func IsUpstream(err error) bool { return KindOf(err) == KindUpstream }
