package script

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.starlark.net/resolve"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/xequation/xequation/pkg/expr"
)

// kindError is a failure raised by the engine itself with an explicit kind.
type kindError struct {
	kind string
	msg  string
}

func (e *kindError) Error() string {
	return e.kind + ": " + e.msg
}

func kindErrorf(kind, format string, args ...any) error {
	return &kindError{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// messagePatterns maps fragments of Starlark runtime error messages to the
// kind they signal. Order matters: the first match wins.
var messagePatterns = []struct {
	fragment string
	kind     string
}{
	{"by zero", "ZeroDivisionError"},
	{"called recursively", "RecursionError"},
	{"stack overflow", "RecursionError"},
	{"too many steps", "OverflowError"},
	{"int too large", "OverflowError"},
	{"overflow", "OverflowError"},
	{"out of memory", "MemoryError"},
	{"not in dict", "KeyError"},
	{"index out of range", "IndexError"},
	{"has no .", "AttributeError"},
	{"undefined:", "NameError"},
	{"not defined", "NameError"},
	{"referenced before assignment", "NameError"},
	{"unknown binary op", "TypeError"},
	{"unknown unary op", "TypeError"},
	{"unsupported", "TypeError"},
	{"not callable", "TypeError"},
	{"invalid call of non-function", "TypeError"},
	{"missing argument", "TypeError"},
	{"unexpected keyword argument", "TypeError"},
	{"positional argument", "TypeError"},
	{"unhashable", "TypeError"},
	{"not iterable", "TypeError"},
	{"want ", "TypeError"},
}

// indexRange matches Starlark's sequence index failures, for example
// "index 5 out of range [-3:2]". Other range failures are value errors.
var indexRange = regexp.MustCompile(`\bindex -?\d+ out of range`)

// failKind matches messages raised as fail("KeyError: ...").
var failKind = regexp.MustCompile(`^(?:fail: )?([A-Z][A-Za-z]*Error): `)

// classify resolves err to a kind name and the message to show the user.
func classify(err error) (kind, message string) {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind, ke.msg
	}

	var se syntax.Error
	if errors.As(err, &se) {
		return "SyntaxError", se.Msg
	}

	var rl resolve.ErrorList
	if errors.As(err, &rl) && len(rl) > 0 {
		msg := rl[0].Msg
		if strings.HasPrefix(msg, "undefined:") {
			return "NameError", msg
		}
		return "SyntaxError", msg
	}

	msg := err.Error()
	var ee *starlark.EvalError
	if errors.As(err, &ee) {
		msg = ee.Msg
	}

	if m := failKind.FindStringSubmatch(msg); m != nil {
		if _, known := expr.KindTable[m[1]]; known {
			return m[1], strings.TrimPrefix(msg, m[0])
		}
	}
	if indexRange.MatchString(msg) {
		return "IndexError", msg
	}
	for _, p := range messagePatterns {
		if strings.Contains(msg, p.fragment) {
			return p.kind, msg
		}
	}
	return "ValueError", msg
}

// failure builds an ExecResult from err.
func failure(err error) expr.ExecResult {
	kind, msg := classify(err)
	return expr.ExecResult{Status: expr.StatusForKind(kind), Message: msg}
}
