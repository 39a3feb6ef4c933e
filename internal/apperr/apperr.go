package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the machine-readable error category returned to clients.
type Kind string

const (
	KindValidation         Kind = "validation_error"
	KindInvalidGeometry    Kind = "invalid_geometry"
	KindNotFound           Kind = "not_found"
	KindConflict           Kind = "conflict"
	KindStoreUnavailable   Kind = "store_unavailable"
	KindAdapterUnavailable Kind = "adapter_unavailable"
	KindUnauthorized       Kind = "unauthorized"
	KindInternal           Kind = "internal"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil && e.Message != "" {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, apperr.NotFound(""))
// style checks and the sentinels below work through wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// Sentinels for errors.Is checks.
var (
	ErrValidation         = &Error{Kind: KindValidation}
	ErrInvalidGeometry    = &Error{Kind: KindInvalidGeometry}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrConflict           = &Error{Kind: KindConflict}
	ErrStoreUnavailable   = &Error{Kind: KindStoreUnavailable}
	ErrAdapterUnavailable = &Error{Kind: KindAdapterUnavailable}
	ErrUnauthorized       = &Error{Kind: KindUnauthorized}
)

func New(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func InvalidGeometry(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidGeometry, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Conflict(msg string, err error) *Error {
	return &Error{Kind: KindConflict, Message: msg, Err: err}
}

func StoreUnavailable(msg string, err error) *Error {
	return &Error{Kind: KindStoreUnavailable, Message: msg, Err: err}
}

func AdapterUnavailable(adapter string, err error) *Error {
	return &Error{Kind: KindAdapterUnavailable, Message: adapter + " unavailable", Err: err}
}

func Unauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps a kind to the status code the HTTP layer responds with.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation, KindInvalidGeometry:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindStoreUnavailable, KindAdapterUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
