package graph

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrBatchInProgress is returned when a batch is started inside another.
	ErrBatchInProgress = errors.New("graph batch already in progress")
)

// CycleError reports a mutation rejected because it would close a cycle.
// Path starts and ends with the same node, following edge direction.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", formatCycle(e.Path))
}

// Members returns the distinct nodes on the cycle.
func (e *CycleError) Members() []string {
	if len(e.Path) <= 1 {
		return append([]string(nil), e.Path...)
	}
	return append([]string(nil), e.Path[:len(e.Path)-1]...)
}

// IsCycle reports whether err is or wraps a CycleError.
func IsCycle(err error) bool {
	var ce *CycleError
	return errors.As(err, &ce)
}

// formatCycle formats a cycle path for error messages.
func formatCycle(cycle []string) string {
	if len(cycle) == 0 {
		return ""
	}
	return strings.Join(cycle, " -> ")
}
