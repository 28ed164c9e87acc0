package jubatus

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Error is returned by all jubatus-go-client components. Use CodeOf to
// classify an error returned from a call.
type Error struct {
	// Code is the error code.
	Code ErrorCode `json:"code"`

	// Message is the description of the error.
	Message string `json:"message"`

	// Violations is the ordered list of schema violations. Only set for
	// ValidationError and ContractViolation.
	Violations []Violation `json:"violations,omitempty"`

	// MsgID is the correlation identifier of the call, 0 if the call never
	// reached the wire.
	MsgID uint32 `json:"msgid,omitempty"`

	cause error
}

// Violation is a single schema violation: where in the value and what.
type Violation struct {
	// Path is a JSON pointer into the validated value.
	Path string `json:"path"`

	// Message is a human readable description.
	Message string `json:"message"`
}

// Errorf creates a new Error.
func Errorf(code ErrorCode, msg string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(msg, args...),
	}
}

// WrapError creates a new Error with an underlying cause.
func WrapError(code ErrorCode, cause error, msg string, args ...interface{}) *Error {
	err := Errorf(code, msg, args...)
	err.cause = cause
	return err
}

// Error implements error interface.
func (err *Error) Error() string {
	b := &strings.Builder{}
	fmt.Fprintf(b, "jubatus.Error(%s", err.Code)
	if err.Message != "" {
		b.WriteString(": ")
		b.WriteString(err.Message)
	}
	if err.cause != nil {
		b.WriteString(": ")
		b.WriteString(err.cause.Error())
	}
	for _, v := range err.Violations {
		fmt.Fprintf(b, "; %s: %s", v.Path, v.Message)
	}
	b.WriteString(")")
	return b.String()
}

// Unwrap returns the underlying error if any.
func (err *Error) Unwrap() error {
	return err.cause
}

// CodeOf returns the ErrorCode of err, or UnknownError if err is not
// (wrapping) an *Error. Returns 0 for nil error.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return 0
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return UnknownError
}

// IsCode reports whether err has the given code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// Wrapf annotates err while keeping its code visible to CodeOf.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}
