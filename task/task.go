package task

import (
	"github.com/relkit/go-release/core"
)

// Task is the unit of work the engine orchestrates. Implementations are
// supplied by producers before orchestration starts and must not be mutated
// once registered; the engine never mutates them.
//
// Optional capabilities (undo, runtime skip, dynamic routing, feature gating,
// lifecycle hooks) are modeled as separate interfaces and discovered via type
// assertion.
type Task interface {
	// ID returns the unique id of the task.
	ID() string

	// Name returns the human-readable name of the task.
	Name() string

	Description() string

	// Dependencies returns the ids of tasks that must complete before this
	// task becomes eligible.
	Dependencies() []string

	// Execute runs the task. It returns the context for downstream tasks;
	// returning nil leaves the current context in place.
	Execute(ctx *core.Context) (*core.Context, error)
}

// Undoable is implemented by tasks whose effects can be reversed during
// rollback.
type Undoable interface {
	// Undo reverses the task's effects.
	Undo(ctx *core.Context) error

	// CanUndo reports whether the task can currently be undone. A task
	// reporting false is skipped during rollback, it is counted neither as
	// rolled back nor as failed.
	CanUndo() bool
}

// Router is implemented by tasks that select their successors at runtime.
// A non-empty result takes precedence over the static dependency fan-out.
type Router interface {
	NextTasks(ctx *core.Context) ([]string, error)
}

// Conditional is implemented by tasks with a runtime skip condition.
type Conditional interface {
	// ShouldExecute reports whether the task should run. Returning false
	// skips the task without error.
	ShouldExecute(ctx *core.Context) (bool, error)
}

// Gated is implemented by tasks that require feature flags to be enabled.
type Gated interface {
	RequiredFeatures() []string
}

// ExecutionHooks are invoked around a task's Execute operation.
type ExecutionHooks interface {
	BeforeExecute(ctx *core.Context) error
	AfterExecute(ctx *core.Context) error
}

// ErrorHandler is notified when a task's Execute operation fails.
type ErrorHandler interface {
	OnError(ctx *core.Context, err error)
}

// RollbackHooks are invoked around a task's Undo operation when the "custom"
// rollback strategy is selected.
type RollbackHooks interface {
	BeforeRollback(ctx *core.Context) error
	AfterRollback(ctx *core.Context) error
	OnRollbackError(ctx *core.Context, err error)
}
