package expr

import (
	"fmt"
)

// Status is the outcome of evaluating an equation.
type Status int

const (
	StatusPending Status = iota
	StatusSuccess
	StatusSyntaxError
	StatusNameError
	StatusTypeError
	StatusKeyError
	StatusValueError
	StatusZeroDivisionError
	StatusOverflowError
	StatusRecursionError
	StatusIndexError
	StatusAttributeError
	StatusMemoryError
	// StatusStale marks an equation whose dependency failed; its value is
	// the last one computed successfully.
	StatusStale
)

var statusNames = map[Status]string{
	StatusPending:           "Pending",
	StatusSuccess:           "Success",
	StatusSyntaxError:       "SyntaxError",
	StatusNameError:         "NameError",
	StatusTypeError:         "TypeError",
	StatusKeyError:          "KeyError",
	StatusValueError:        "ValueError",
	StatusZeroDivisionError: "ZeroDivisionError",
	StatusOverflowError:     "OverflowError",
	StatusRecursionError:    "RecursionError",
	StatusIndexError:        "IndexError",
	StatusAttributeError:    "AttributeError",
	StatusMemoryError:       "MemoryError",
	StatusStale:             "Stale",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// IsError reports whether s is one of the evaluation error statuses.
func (s Status) IsError() bool {
	return s != StatusPending && s != StatusSuccess && s != StatusStale
}

// ParseStatus is the inverse of Status.String.
func ParseStatus(s string) (Status, error) {
	for status, name := range statusNames {
		if name == s {
			return status, nil
		}
	}
	return StatusPending, fmt.Errorf("unknown status: %s", s)
}

// KindTable maps the declared kind of a runtime failure to its Status.
// Kinds absent from the table resolve to StatusValueError.
var KindTable = map[string]Status{
	"SyntaxError":       StatusSyntaxError,
	"IndentationError":  StatusSyntaxError,
	"NameError":         StatusNameError,
	"UnboundLocalError": StatusNameError,
	"TypeError":         StatusTypeError,
	"KeyError":          StatusKeyError,
	"ValueError":        StatusValueError,
	"ZeroDivisionError": StatusZeroDivisionError,
	"OverflowError":     StatusOverflowError,
	"RecursionError":    StatusRecursionError,
	"IndexError":        StatusIndexError,
	"AttributeError":    StatusAttributeError,
	"MemoryError":       StatusMemoryError,
}

// StatusForKind resolves a failure kind through KindTable.
func StatusForKind(kind string) Status {
	if status, ok := KindTable[kind]; ok {
		return status
	}
	return StatusValueError
}
