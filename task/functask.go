package task

import (
	"github.com/relkit/go-release/core"
	"github.com/relkit/go-release/taskerrors"
)

type funcTask struct {
	id           string
	name         string
	description  string
	dependencies []string

	execute func(ctx *core.Context) (*core.Context, error)

	undo    func(ctx *core.Context) error
	canUndo func() bool

	shouldExecute func(ctx *core.Context) (bool, error)
	nextTasks     func(ctx *core.Context) ([]string, error)

	requiredFeatures []string

	beforeExecute func(ctx *core.Context) error
	afterExecute  func(ctx *core.Context) error
	onError       func(ctx *core.Context, err error)

	beforeRollback  func(ctx *core.Context) error
	afterRollback   func(ctx *core.Context) error
	onRollbackError func(ctx *core.Context, err error)
}

var _ Task = (*funcTask)(nil)
var _ Undoable = (*funcTask)(nil)
var _ Router = (*funcTask)(nil)
var _ Conditional = (*funcTask)(nil)
var _ Gated = (*funcTask)(nil)
var _ ExecutionHooks = (*funcTask)(nil)
var _ ErrorHandler = (*funcTask)(nil)
var _ RollbackHooks = (*funcTask)(nil)

func (t *funcTask) ID() string {
	return t.id
}

func (t *funcTask) Name() string {
	return t.name
}

func (t *funcTask) Description() string {
	return t.description
}

func (t *funcTask) Dependencies() []string {
	return t.dependencies
}

func (t *funcTask) Execute(ctx *core.Context) (*core.Context, error) {
	if t.execute == nil {
		return nil, taskerrors.Newf(taskerrors.Invalid, "task %q has no execute operation", t.id)
	}

	return t.execute(ctx)
}

func (t *funcTask) Undo(ctx *core.Context) error {
	if t.undo == nil {
		return taskerrors.Newf(taskerrors.Invalid, "task %q does not support undo", t.id)
	}

	return t.undo(ctx)
}

func (t *funcTask) CanUndo() bool {
	if t.canUndo != nil {
		return t.canUndo()
	}

	return t.undo != nil
}

func (t *funcTask) ShouldExecute(ctx *core.Context) (bool, error) {
	if t.shouldExecute == nil {
		return true, nil
	}

	return t.shouldExecute(ctx)
}

func (t *funcTask) NextTasks(ctx *core.Context) ([]string, error) {
	if t.nextTasks == nil {
		return nil, nil
	}

	return t.nextTasks(ctx)
}

func (t *funcTask) RequiredFeatures() []string {
	return t.requiredFeatures
}

func (t *funcTask) BeforeExecute(ctx *core.Context) error {
	if t.beforeExecute == nil {
		return nil
	}

	return t.beforeExecute(ctx)
}

func (t *funcTask) AfterExecute(ctx *core.Context) error {
	if t.afterExecute == nil {
		return nil
	}

	return t.afterExecute(ctx)
}

func (t *funcTask) OnError(ctx *core.Context, err error) {
	if t.onError != nil {
		t.onError(ctx, err)
	}
}

func (t *funcTask) BeforeRollback(ctx *core.Context) error {
	if t.beforeRollback == nil {
		return nil
	}

	return t.beforeRollback(ctx)
}

func (t *funcTask) AfterRollback(ctx *core.Context) error {
	if t.afterRollback == nil {
		return nil
	}

	return t.afterRollback(ctx)
}

func (t *funcTask) OnRollbackError(ctx *core.Context, err error) {
	if t.onRollbackError != nil {
		t.onRollbackError(ctx, err)
	}
}
