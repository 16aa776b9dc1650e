// Package apierr defines the error taxonomy shared by the backend client layers.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies why a backend operation failed.
type Kind string

const (
	// KindValidation: caller input was rejected before any I/O.
	KindValidation Kind = "validation"
	// KindRequest: the outbound request could not be constructed.
	KindRequest Kind = "request"
	// KindTransport: no reply was received (dial, TLS, timeout, cancellation).
	KindTransport Kind = "transport"
	// KindHTTPStatus: a reply was received with a non-2xx status.
	KindHTTPStatus Kind = "http_status"
	// KindProtocol: a 2xx reply did not carry what the operation needs.
	KindProtocol Kind = "protocol"
)

// Validation and protocol sentinels. Match with errors.Is.
var (
	ErrIdentityRequired   = errors.New("email required")
	ErrPropertyIDRequired = errors.New("property id required")
	ErrPhoneRequired      = errors.New("phone required")
	ErrTokenMissing       = errors.New("JWT token missing in response")
	ErrMessageIDRequired  = errors.New("message id required")
	ErrCityRequired       = errors.New("cityName is required")
	ErrAreasRequired      = errors.New("at least one area id is required")
)

// Error is a classified backend failure.
type Error struct {
	Kind    Kind
	Op      string
	Message string

	// Target is the request URL (transport and status failures).
	Target string

	// Reply details, set only for KindHTTPStatus.
	StatusCode int
	Status     string
	Body       []byte
	Header     http.Header

	Cause error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Kind == KindHTTPStatus {
		msg = fmt.Sprintf("%s: status %d", msg, e.StatusCode)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Cause != nil && e.Cause.Error() != e.Message {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Validation builds a KindValidation error wrapping one of the sentinels.
func Validation(op string, sentinel error) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: sentinel.Error(), Cause: sentinel}
}

// Protocol builds a KindProtocol error wrapping cause.
func Protocol(op string, cause error) *Error {
	return &Error{Kind: KindProtocol, Op: op, Message: cause.Error(), Cause: cause}
}

// As extracts a classified error from err's chain.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// KindOf returns the kind of the first classified error in err's chain, or "".
func KindOf(err error) Kind {
	if ae, ok := As(err); ok {
		return ae.Kind
	}
	return ""
}

// Is reports whether err carries a classified error of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// StatusCode returns the HTTP status of a KindHTTPStatus error, or 0.
func StatusCode(err error) int {
	if ae, ok := As(err); ok && ae.Kind == KindHTTPStatus {
		return ae.StatusCode
	}
	return 0
}
