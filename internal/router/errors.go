package router

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError is an error that carries the status code the dispatcher should
// respond with.
type HTTPError struct {
	Status  int
	Message string
	Err     error
}

// NewHTTPError creates an HTTPError with the given status and message
func NewHTTPError(status int, message string) *HTTPError {
	return &HTTPError{Status: status, Message: message}
}

// WrapHTTPError attaches a status to an existing error
func WrapHTTPError(status int, err error) *HTTPError {
	return &HTTPError{Status: status, Err: err}
}

func (e *HTTPError) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return e.Message + ": " + e.Err.Error()
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return http.StatusText(e.Status)
	}
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// StatusCode implements StatusCoder
func (e *HTTPError) StatusCode() int {
	return e.Status
}

// StatusCoder is implemented by errors that know which HTTP status they map
// to. Collaborator errors (e.g. remote API failures) implement it so the
// dispatcher can surface their status unchanged.
type StatusCoder interface {
	StatusCode() int
}

// StatusOf returns the status carried by err, or 500
func StatusOf(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		if code := sc.StatusCode(); code >= 400 && code <= 599 {
			return code
		}
	}
	return http.StatusInternalServerError
}

// RegistrationError reports an invalid route registration. It is raised at
// setup time and never reaches request handling.
type RegistrationError struct {
	Method  string
	Pattern string
	Message string
	Err     error
}

func (e *RegistrationError) Error() string {
	msg := fmt.Sprintf("route %s %q: %s", e.Method, e.Pattern, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}

// panicError wraps a recovered panic value
type panicError struct {
	value any
}

func (e *panicError) Error() string {
	if err, ok := e.value.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(e.value)
}

func (e *panicError) Unwrap() error {
	err, _ := e.value.(error)
	return err
}
