package forecast

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies transform failures so callers can tell them apart.
type ErrorKind string

const (
	KindModelUnavailable ErrorKind = "model_unavailable"
	KindInputShape       ErrorKind = "input_shape"
	KindModelInference   ErrorKind = "model_inference"
)

// Error is the structured failure returned by the transform.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// ErrModelUnavailable is returned for every call when assets never loaded.
var ErrModelUnavailable = &Error{Kind: KindModelUnavailable, Message: "model not loaded"}

// KindOf returns the kind of a transform error, or "" if err is not one.
func KindOf(err error) ErrorKind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// HTTPStatus maps an error kind to the status code used at the network boundary.
func HTTPStatus(kind ErrorKind) int {
	switch kind {
	case KindInputShape:
		return http.StatusBadRequest
	case KindModelUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
