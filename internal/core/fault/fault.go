// Package fault classifies failures into the tiers the service treats
// differently: user-visible (not found, bad request), tolerated (degraded)
// and unrecoverable (fatal).
package fault

import (
	"errors"
	"fmt"
	"net/http"
)

type Class int

const (
	// zero value, used for errors nobody classified
	Unclassified Class = iota
	NotFound
	BadRequest
	// logged and replaced by a fallback value, never returned to callers
	Degraded
	Fatal
)

func (c Class) String() string {
	switch c {
	case NotFound:
		return "not_found"
	case BadRequest:
		return "bad_request"
	case Degraded:
		return "degraded"
	case Fatal:
		return "fatal"
	default:
		return "unclassified"
	}
}

type Error struct {
	Class Class
	Op    string
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func newf(c Class, op string, err error, format string, args ...any) *Error {
	return &Error{Class: c, Op: op, Msg: fmt.Sprintf(format, args...), Err: err}
}

func NotFoundf(op, format string, args ...any) *Error {
	return newf(NotFound, op, nil, format, args...)
}

func BadRequestf(op string, err error, format string, args ...any) *Error {
	return newf(BadRequest, op, err, format, args...)
}

func Degradedf(op string, err error, format string, args ...any) *Error {
	return newf(Degraded, op, err, format, args...)
}

func Fatalf(op string, err error, format string, args ...any) *Error {
	return newf(Fatal, op, err, format, args...)
}

// ClassOf returns the class of the outermost classified error in the chain.
func ClassOf(err error) Class {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Class
	}
	return Unclassified
}

func IsNotFound(err error) bool { return ClassOf(err) == NotFound }

// Escalate returns err unchanged when it already carries a class, otherwise
// wraps it as fatal.
func Escalate(op string, err error) error {
	if err == nil {
		return nil
	}
	if ClassOf(err) != Unclassified {
		return err
	}
	return Fatalf(op, err, "unexpected failure")
}

// HTTPStatus maps an error to the response status the transport layer uses.
func HTTPStatus(err error) int {
	switch ClassOf(err) {
	case NotFound:
		return http.StatusNotFound
	case BadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
