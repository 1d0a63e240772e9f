package tester

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/relkit/go-release/core"
	"github.com/relkit/go-release/task"
	"github.com/relkit/go-release/taskerrors"
)

// Op identifies a recorded task operation.
type Op string

const (
	OpExecute Op = "execute"
	OpUndo    Op = "undo"
)

type Call struct {
	TaskID string
	Op     Op
}

// TaskTester drives individual tasks the way the engine would, with a mock
// clock and a recorded call sequence. It is meant for producer unit tests:
// assert what a task writes to the context, that undo reverses it, and in
// which order a set of tasks ran.
type TaskTester struct {
	clock *clock.Mock

	ctx   *core.Context
	calls []Call
}

type Option func(*options)

type options struct {
	runID  string
	name   string
	config map[string]any
	data   map[string]any
}

func WithRun(id, name string) Option {
	return func(o *options) {
		o.runID = id
		o.name = name
	}
}

// WithConfig seeds the read-only configuration of the test context.
func WithConfig(config map[string]any) Option {
	return func(o *options) {
		o.config = config
	}
}

// WithInitialData pre-populates the context data, as if upstream tasks had
// produced it.
func WithInitialData(data map[string]any) Option {
	return func(o *options) {
		o.data = data
	}
}

func NewTaskTester(opts ...Option) *TaskTester {
	o := &options{
		runID: uuid.NewString(),
		name:  "test",
	}

	for _, opt := range opts {
		opt(o)
	}

	mc := clock.NewMock()
	// Fixed start time to keep test output deterministic.
	mc.Set(time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC))

	ctx := core.NewContext(core.NewRun(o.runID, o.name), mc.Now(), o.config)
	if len(o.data) > 0 {
		ctx = ctx.ForkMultiple(o.data)
	}

	return &TaskTester{
		clock: mc,
		ctx:   ctx,
	}
}

// Clock returns the mock clock backing the tester.
func (tt *TaskTester) Clock() *clock.Mock {
	return tt.clock
}

// Context returns the current execution context.
func (tt *TaskTester) Context() *core.Context {
	return tt.ctx
}

// ExecuteTask runs the task the way the engine would: the runtime skip
// condition is evaluated first, then the execute hooks around the execute
// operation. It reports whether the task actually executed; a false return
// with a nil error means the skip condition excused it.
func (tt *TaskTester) ExecuteTask(t task.Task) (bool, error) {
	if cond, ok := t.(task.Conditional); ok {
		should, err := cond.ShouldExecute(tt.ctx)
		if err != nil {
			return false, err
		}
		if !should {
			return false, nil
		}
	}

	hooks, _ := t.(task.ExecutionHooks)

	if hooks != nil {
		if err := hooks.BeforeExecute(tt.ctx); err != nil {
			return false, err
		}
	}

	tt.calls = append(tt.calls, Call{TaskID: t.ID(), Op: OpExecute})

	newCtx, err := t.Execute(tt.ctx)
	if err != nil {
		return false, err
	}

	if newCtx != nil {
		tt.ctx = newCtx
	}

	if hooks != nil {
		if err := hooks.AfterExecute(tt.ctx); err != nil {
			return false, err
		}
	}

	return true, nil
}

// UndoTask undoes the task. It fails with an Invalid error when the task is
// not undoable, mirroring how the engine never undoes such tasks.
func (tt *TaskTester) UndoTask(t task.Task) error {
	u, ok := t.(task.Undoable)
	if !ok || !u.CanUndo() {
		return taskerrors.Newf(taskerrors.Invalid, "task %q cannot be undone", t.ID())
	}

	tt.calls = append(tt.calls, Call{TaskID: t.ID(), Op: OpUndo})

	return u.Undo(tt.ctx)
}

// Calls returns the recorded operations in order.
func (tt *TaskTester) Calls() []Call {
	return append([]Call(nil), tt.calls...)
}
