package graph

import (
	"fmt"
	"strings"
)

type ErrDuplicateTask struct {
	TaskID string
}

func (e *ErrDuplicateTask) Error() string {
	return fmt.Sprintf("task with id %q already registered", e.TaskID)
}

// MissingDependency is one unresolved dependency reference.
type MissingDependency struct {
	TaskID       string
	DependencyID string
}

// ErrMissingDependencies reports every unresolved dependency reference in the
// task set, not just the first one found.
type ErrMissingDependencies struct {
	Missing []MissingDependency
}

func (e *ErrMissingDependencies) Error() string {
	refs := make([]string, len(e.Missing))
	for i, m := range e.Missing {
		refs[i] = fmt.Sprintf("%q -> %q", m.TaskID, m.DependencyID)
	}

	return fmt.Sprintf("missing dependencies: %s", strings.Join(refs, ", "))
}

// ErrCircularDependency names one cycle in the dependency graph as a witness,
// e.g. a -> b -> a.
type ErrCircularDependency struct {
	Cycle []string
}

func (e *ErrCircularDependency) Error() string {
	return fmt.Sprintf("circular dependency: %s", strings.Join(e.Cycle, " -> "))
}
