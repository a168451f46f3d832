package expr

import (
	"fmt"

	"github.com/xequation/xequation/pkg/value"
)

// Type is the kind of declaration a statement produces.
type Type int

const (
	TypeVariable Type = iota
	TypeFunction
	TypeClass
	TypeImport
	TypeImportFrom
)

var typeNames = [...]string{
	TypeVariable:   "Variable",
	TypeFunction:   "Function",
	TypeClass:      "Class",
	TypeImport:     "Import",
	TypeImportFrom: "ImportFrom",
}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("Type(%d)", int(t))
	}
	return typeNames[t]
}

// ParseType is the inverse of Type.String.
func ParseType(s string) (Type, error) {
	for i, name := range typeNames {
		if name == s {
			return Type(i), nil
		}
	}
	return TypeVariable, fmt.Errorf("unknown equation type: %s", s)
}

// Declaration is one named equation extracted from a statement.
type Declaration struct {
	Name         string
	Content      string
	Dependencies []string
	Type         Type
}

// ParseResult holds the declarations of a parsed block, in source order.
type ParseResult struct {
	Declarations []Declaration

	// Statements is the number of source statements the block split into.
	Statements int
}

// Names returns the declared names in order.
func (r ParseResult) Names() []string {
	names := make([]string, len(r.Declarations))
	for i, d := range r.Declarations {
		names[i] = d.Name
	}
	return names
}

// Clone returns a copy that shares no slices with r.
func (r ParseResult) Clone() ParseResult {
	out := ParseResult{
		Declarations: make([]Declaration, len(r.Declarations)),
		Statements:   r.Statements,
	}
	for i, d := range r.Declarations {
		d.Dependencies = append([]string(nil), d.Dependencies...)
		out.Declarations[i] = d
	}
	return out
}

// ExecResult is the outcome of Engine.Exec.
type ExecResult struct {
	Status  Status
	Message string
}

// OK reports whether execution succeeded.
func (r ExecResult) OK() bool {
	return r.Status == StatusSuccess
}

// EvalResult is the outcome of Engine.Eval.
type EvalResult struct {
	Value   value.Value
	Status  Status
	Message string
}

// OK reports whether evaluation succeeded.
func (r EvalResult) OK() bool {
	return r.Status == StatusSuccess
}

// Engine parses and runs equation source text.
type Engine interface {
	// Parse splits code into statements and analyzes each one.
	Parse(code string) (ParseResult, error)

	// ParseSingleStatement is Parse restricted to exactly one statement.
	// One import statement may still yield several declarations.
	ParseSingleStatement(code string) (ParseResult, error)

	// Exec runs code for its side effects on ctx.
	Exec(code string, ctx *Context) ExecResult

	// Eval evaluates one expression against ctx without binding names.
	Eval(code string, ctx *Context) EvalResult

	// SetMaxCacheSize bounds the parse cache, evicting as needed.
	SetMaxCacheSize(size int)

	// ClearCache empties the parse cache.
	ClearCache()

	// CacheSize returns the number of cached parse results.
	CacheSize() int
}
