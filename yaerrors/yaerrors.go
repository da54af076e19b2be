// Package yaerrors provides a coded error type used across the module.
//
// Every fallible operation returns Error: it carries an HTTP-like status code,
// a human readable traceback built by successive Wrap calls, and the original
// cause reachable through errors.Is / errors.As.
//
// Example usage:
//
//	err := yaerrors.FromError(http.StatusInternalServerError, ErrStorage, "[MEMORY] failed to read state")
//	err = err.Wrap("failed to build fsm context")
//	fmt.Println(err) // 500 | failed to build fsm context -> [MEMORY] failed to read state: storage failure
package yaerrors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/YaCodeDev/GoYaBotKit/yalogger"
)

// Error is a coded, wrappable error.
type Error interface {
	error
	Wrap(msg string) Error
	WrapWithLog(msg string, log yalogger.Logger) Error
	Code() int
	Unwrap() error
	UnwrapLastError() string
}

const (
	codeSeparate  = " | "
	errorSeparate = " -> "
)

type yaError struct {
	code      int
	cause     error
	traceback string
}

// FromError builds an Error from an existing cause.
// The traceback starts with wrap followed by the cause message.
func FromError(code int, cause error, wrap string) Error {
	if cause == nil {
		return FromString(code, wrap)
	}

	return &yaError{
		code:      code,
		cause:     cause,
		traceback: fmt.Sprintf("%s: %v", wrap, cause),
	}
}

// FromErrorWithLog is FromError that also writes the message to log at error level.
func FromErrorWithLog(code int, cause error, wrap string, log yalogger.Logger) Error {
	err := FromError(code, cause, wrap)

	if log != nil {
		log.Error(err.Error())
	}

	return err
}

// FromString builds an Error without an underlying cause.
func FromString(code int, msg string) Error {
	return &yaError{
		code:      code,
		cause:     errors.New(msg), //nolint:err113
		traceback: msg,
	}
}

// FromStringWithLog is FromString that also writes the message to log at error level.
func FromStringWithLog(code int, msg string, log yalogger.Logger) Error {
	if log != nil {
		log.Error(msg)
	}

	return FromString(code, msg)
}

// As reports whether err (or anything in its chain) is an Error.
//
// Example usage:
//
//	if yaErr, ok := yaerrors.As(err); ok {
//	    status = yaErr.Code()
//	}
func As(err error) (Error, bool) {
	var target Error

	if errors.As(err, &target) {
		return target, true
	}

	return nil, false
}

// CodeOf returns the code carried by err, http.StatusInternalServerError for
// foreign errors and 0 for nil.
func CodeOf(err error) int {
	if err == nil {
		return 0
	}

	if yaErr, ok := As(err); ok {
		return yaErr.Code()
	}

	return http.StatusInternalServerError
}

// Error returns "<code> | <traceback>".
func (e *yaError) Error() string {
	safetyCheck(&e)

	return fmt.Sprintf("%d%s%s", e.code, codeSeparate, e.traceback)
}

// Unwrap returns the cause.
func (e *yaError) Unwrap() error {
	safetyCheck(&e)

	return e.cause
}

// UnwrapLastError returns the outermost traceback segment.
func (e *yaError) UnwrapLastError() string {
	safetyCheck(&e)

	head, _, _ := strings.Cut(e.traceback, errorSeparate)

	return head
}

// Wrap returns a copy of the error with msg prepended to the traceback.
// The receiver is left untouched, so package level errors can be wrapped safely.
func (e *yaError) Wrap(msg string) Error {
	safetyCheck(&e)

	return &yaError{
		code:      e.code,
		cause:     e.cause,
		traceback: msg + errorSeparate + e.traceback,
	}
}

// WrapWithLog is Wrap that also logs msg at error level.
func (e *yaError) WrapWithLog(msg string, log yalogger.Logger) Error {
	if log != nil {
		log.Error(msg)
	}

	return e.Wrap(msg)
}

// Code returns the status code.
func (e *yaError) Code() int {
	safetyCheck(&e)

	return e.code
}

// safetyCheck replaces a nil receiver with the teapot error instead of panicking.
func safetyCheck(err **yaError) {
	if *err == nil {
		*err = &yaError{
			code:      http.StatusTeapot,
			cause:     ErrTeapot,
			traceback: ErrTeapot.Error(),
		}
	}
}
