package task

import (
	"github.com/relkit/go-release/core"
)

// New creates a task from the given id and options. Optional capabilities are
// nullable function fields; a capability that was not configured behaves as
// absent (see the accessors below).
func New(id string, opts ...Option) Task {
	t := &funcTask{id: id, name: id}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

type Option func(*funcTask)

func WithName(name string) Option {
	return func(t *funcTask) {
		t.name = name
	}
}

func WithDescription(description string) Option {
	return func(t *funcTask) {
		t.description = description
	}
}

// WithDependencies declares the tasks that must complete before this one.
func WithDependencies(ids ...string) Option {
	return func(t *funcTask) {
		t.dependencies = append(t.dependencies, ids...)
	}
}

func WithExecute(fn func(ctx *core.Context) (*core.Context, error)) Option {
	return func(t *funcTask) {
		t.execute = fn
	}
}

func WithUndo(fn func(ctx *core.Context) error) Option {
	return func(t *funcTask) {
		t.undo = fn
	}
}

// WithCanUndo overrides the default undoability check. Without it, a task is
// undoable exactly when an undo function is configured.
func WithCanUndo(fn func() bool) Option {
	return func(t *funcTask) {
		t.canUndo = fn
	}
}

func WithShouldExecute(fn func(ctx *core.Context) (bool, error)) Option {
	return func(t *funcTask) {
		t.shouldExecute = fn
	}
}

// WithNextTasks configures dynamic successor routing. When the function
// returns a non-empty list, only those tasks are enqueued after this task
// completes, instead of every structural dependent.
func WithNextTasks(fn func(ctx *core.Context) ([]string, error)) Option {
	return func(t *funcTask) {
		t.nextTasks = fn
	}
}

// WithRequiredFeatures gates the task on the given feature flags. The task is
// skipped unless all of them are enabled.
func WithRequiredFeatures(names ...string) Option {
	return func(t *funcTask) {
		t.requiredFeatures = append(t.requiredFeatures, names...)
	}
}

func WithBeforeExecute(fn func(ctx *core.Context) error) Option {
	return func(t *funcTask) {
		t.beforeExecute = fn
	}
}

func WithAfterExecute(fn func(ctx *core.Context) error) Option {
	return func(t *funcTask) {
		t.afterExecute = fn
	}
}

func WithOnError(fn func(ctx *core.Context, err error)) Option {
	return func(t *funcTask) {
		t.onError = fn
	}
}

func WithBeforeRollback(fn func(ctx *core.Context) error) Option {
	return func(t *funcTask) {
		t.beforeRollback = fn
	}
}

func WithAfterRollback(fn func(ctx *core.Context) error) Option {
	return func(t *funcTask) {
		t.afterRollback = fn
	}
}

func WithOnRollbackError(fn func(ctx *core.Context, err error)) Option {
	return func(t *funcTask) {
		t.onRollbackError = fn
	}
}
