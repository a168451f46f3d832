package equation

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrorCode classifies manager errors for programmatic handling.
type ErrorCode string

const (
	ErrCodeEquationAlreadyExists ErrorCode = "EQUATION_ALREADY_EXISTS"
	ErrCodeEquationNotFound      ErrorCode = "EQUATION_NOT_FOUND"
	ErrCodeGroupNotFound         ErrorCode = "GROUP_NOT_FOUND"
	ErrCodeParseFailed           ErrorCode = "PARSE_FAILED"
	ErrCodeDependencyCycle       ErrorCode = "DEPENDENCY_CYCLE"
	ErrCodeEngineUnavailable     ErrorCode = "ENGINE_UNAVAILABLE"
)

// Error represents a classified manager error with context.
type Error struct {
	// Code is the error classification.
	Code ErrorCode `json:"code"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Equation is the equation name involved, if any.
	Equation string `json:"equation,omitempty"`

	// Group is the group involved, if any.
	Group uuid.UUID `json:"group,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Equation != "" {
		msg += fmt.Sprintf(" (equation=%s)", e.Equation)
	} else if e.Group != uuid.Nil {
		msg += fmt.Sprintf(" (group=%s)", e.Group)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewError creates a classified error.
func NewError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// WithEquation adds the equation name to an error.
func (e *Error) WithEquation(name string) *Error {
	e.Equation = name
	return e
}

// WithGroup adds the group id to an error.
func (e *Error) WithGroup(id uuid.UUID) *Error {
	e.Group = id
	return e
}

// WithDetail adds a detail field to the error context.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func hasCode(err error, codes ...ErrorCode) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	for _, c := range codes {
		if e.Code == c {
			return true
		}
	}
	return false
}

// IsNotFound returns true for missing equations and groups.
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeEquationNotFound, ErrCodeGroupNotFound)
}

// IsAlreadyExists returns true when a name is already owned.
func IsAlreadyExists(err error) bool {
	return hasCode(err, ErrCodeEquationAlreadyExists)
}

// IsCycle returns true when a change was rejected for closing a cycle.
func IsCycle(err error) bool {
	return hasCode(err, ErrCodeDependencyCycle)
}

// IsParseFailed returns true when statement text could not be parsed.
func IsParseFailed(err error) bool {
	return hasCode(err, ErrCodeParseFailed)
}
