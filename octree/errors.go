package octree

import "fmt"

// PreconditionError is the panic value of queries made against a tree that
// cannot answer them, such as leaf queries before the leaves are listed.
// Legitimate absence is never reported this way.
type PreconditionError struct {
	Op     string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("octree: %s: %s", e.Op, e.Reason)
}

func precondition(op, format string, args ...interface{}) {
	panic(&PreconditionError{Op: op, Reason: fmt.Sprintf(format, args...)})
}
