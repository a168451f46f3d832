// Package expr defines the boundary between equation source text and an
// embedded evaluation runtime.
//
// An Engine turns statements into Declarations (Parse) and runs code
// against a Context (Exec, Eval). Runtime failures never escape as Go
// errors; they are reported as a Status from the closed taxonomy in this
// package, resolved through KindTable.
//
// The concrete Starlark-backed engine lives in package script.
package expr
