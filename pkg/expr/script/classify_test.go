package script

import (
	"errors"
	"fmt"
	"testing"

	"go.starlark.net/syntax"

	"github.com/xequation/xequation/pkg/expr"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want expr.Status
	}{
		{errors.New("floating-point division by zero"), expr.StatusZeroDivisionError},
		{errors.New("function f called recursively"), expr.StatusRecursionError},
		{errors.New("Starlark computation cancelled: too many steps"), expr.StatusOverflowError},
		{errors.New(`key "a" not in dict`), expr.StatusKeyError},
		{errors.New("index 3 out of range: list has 1 elements"), expr.StatusIndexError},
		{errors.New("string has no .nope field or method"), expr.StatusAttributeError},
		{errors.New("global variable x referenced before assignment"), expr.StatusNameError},
		{errors.New("unknown binary op: int + string"), expr.StatusTypeError},
		{errors.New("fail: IndexError: custom"), expr.StatusIndexError},
		{errors.New("fail: NotARealError: custom"), expr.StatusValueError},
		{errors.New("something unexpected"), expr.StatusValueError},
		{syntax.Error{Msg: "got newline, want primary expression"}, expr.StatusSyntaxError},
		{fmt.Errorf("wrapped: %w", kindErrorf("MemoryError", "too big")), expr.StatusMemoryError},
		{kindErrorf("ModuleNotFoundError", "No module named 'x'"), expr.StatusValueError},
		{errors.New("index 5 out of range [-3:2]"), expr.StatusIndexError},
		{errors.New("chr: Unicode code point -1 out of range (<0)"), expr.StatusValueError},
		{errors.New("range: step argument must not be zero"), expr.StatusValueError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			got := failure(tt.err)
			if got.Status != tt.want {
				t.Errorf("Expected %v, got %v (%s)", tt.want, got.Status, got.Message)
			}
			if got.Message == "" {
				t.Error("Expected a message")
			}
		})
	}
}

func TestClassify_FailStripsKind(t *testing.T) {
	kind, msg := classify(errors.New("fail: KeyError: missing entry"))
	if kind != "KeyError" {
		t.Errorf("Expected KeyError, got %s", kind)
	}
	if msg != "missing entry" {
		t.Errorf("Expected message %q, got %q", "missing entry", msg)
	}
}
