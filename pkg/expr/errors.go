package expr

import (
	"errors"
	"fmt"
)

// ParseErrorCode classifies why a statement was rejected.
type ParseErrorCode string

const (
	ParseErrEmpty         ParseErrorCode = "EMPTY"
	ParseErrSyntax        ParseErrorCode = "SYNTAX"
	ParseErrUnsupported   ParseErrorCode = "UNSUPPORTED_STATEMENT"
	ParseErrBuiltinName   ParseErrorCode = "BUILTIN_NAME"
	ParseErrSelfReference ParseErrorCode = "SELF_REFERENCE"
	ParseErrMultiple      ParseErrorCode = "MULTIPLE_STATEMENTS"
	ParseErrImport        ParseErrorCode = "IMPORT"
)

// ParseError reports a statement that cannot be analyzed into a supported
// declaration.
type ParseError struct {
	Code      ParseErrorCode
	Message   string
	Statement string
	// Line is the 1-based line of the statement within the parsed block.
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Line > 0 {
		return fmt.Sprintf("parse error at line %d: %s", e.Line, msg)
	}
	return "parse error: " + msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a ParseError.
func NewParseError(code ParseErrorCode, message string) *ParseError {
	return &ParseError{Code: code, Message: message}
}

// WithStatement records the offending statement and its line.
func (e *ParseError) WithStatement(statement string, line int) *ParseError {
	e.Statement = statement
	e.Line = line
	return e
}

// WithCause wraps the underlying error.
func (e *ParseError) WithCause(err error) *ParseError {
	e.Err = err
	return e
}

// IsParseError reports whether err is or wraps a ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
