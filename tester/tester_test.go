package tester

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relkit/go-release/core"
	"github.com/relkit/go-release/task"
	"github.com/relkit/go-release/taskerrors"
)

func Test_ExecuteTask_UpdatesContext(t *testing.T) {
	tt := NewTaskTester()

	executed, err := tt.ExecuteTask(task.New("version",
		task.WithExecute(func(ctx *core.Context) (*core.Context, error) {
			return ctx.Fork("version", "1.2.0"), nil
		}),
	))
	require.NoError(t, err)
	require.True(t, executed)

	v, err := tt.Context().Get("version")
	require.NoError(t, err)
	require.Equal(t, "1.2.0", v)
}

func Test_ExecuteTask_SkipCondition(t *testing.T) {
	tt := NewTaskTester()

	executed, err := tt.ExecuteTask(task.New("sign",
		task.WithShouldExecute(func(ctx *core.Context) (bool, error) {
			return false, nil
		}),
		task.WithExecute(func(ctx *core.Context) (*core.Context, error) {
			return nil, errors.New("must not run")
		}),
	))
	require.NoError(t, err)
	require.False(t, executed)
	require.Empty(t, tt.Calls())
}

func Test_ExecuteTask_RunsHooks(t *testing.T) {
	var calls []string

	tt := NewTaskTester()

	executed, err := tt.ExecuteTask(task.New("build",
		task.WithBeforeExecute(func(ctx *core.Context) error {
			calls = append(calls, "before")
			return nil
		}),
		task.WithExecute(func(ctx *core.Context) (*core.Context, error) {
			calls = append(calls, "execute")
			return nil, nil
		}),
		task.WithAfterExecute(func(ctx *core.Context) error {
			calls = append(calls, "after")
			return nil
		}),
	))
	require.NoError(t, err)
	require.True(t, executed)
	require.Equal(t, []string{"before", "execute", "after"}, calls)
}

func Test_ExecuteTask_WithConfigAndInitialData(t *testing.T) {
	tt := NewTaskTester(
		WithRun("r1", "test run"),
		WithConfig(map[string]any{"channel": "stable"}),
		WithInitialData(map[string]any{"version": "1.2.0"}),
	)

	require.Equal(t, "r1", tt.Context().Run().ID)

	executed, err := tt.ExecuteTask(task.New("tag",
		task.WithExecute(func(ctx *core.Context) (*core.Context, error) {
			channel, ok := ctx.Config("channel")
			if !ok {
				return nil, errors.New("channel missing")
			}

			v, err := ctx.Get("version")
			if err != nil {
				return nil, err
			}

			return ctx.Fork("tag", channel.(string)+"-v"+v.(string)), nil
		}),
	))
	require.NoError(t, err)
	require.True(t, executed)

	tag, err := tt.Context().Get("tag")
	require.NoError(t, err)
	require.Equal(t, "stable-v1.2.0", tag)
}

func Test_UndoTask(t *testing.T) {
	tt := NewTaskTester(WithInitialData(map[string]any{"tag": "v1.2.0"}))

	var undone bool

	err := tt.UndoTask(task.New("tag",
		task.WithUndo(func(ctx *core.Context) error {
			undone = true
			return nil
		}),
	))
	require.NoError(t, err)
	require.True(t, undone)
}

func Test_UndoTask_NotUndoable(t *testing.T) {
	tt := NewTaskTester()

	err := tt.UndoTask(task.New("tag"))
	require.Error(t, err)
	require.True(t, taskerrors.IsKind(err, taskerrors.Invalid))
}

func Test_Calls_RecordedInOrder(t *testing.T) {
	tt := NewTaskTester()

	build := task.New("build",
		task.WithExecute(func(ctx *core.Context) (*core.Context, error) {
			return nil, nil
		}),
		task.WithUndo(func(ctx *core.Context) error {
			return nil
		}),
	)

	_, err := tt.ExecuteTask(build)
	require.NoError(t, err)
	require.NoError(t, tt.UndoTask(build))

	require.Equal(t, []Call{
		{TaskID: "build", Op: OpExecute},
		{TaskID: "build", Op: OpUndo},
	}, tt.Calls())
}

func Test_Clock_Deterministic(t *testing.T) {
	tt := NewTaskTester()

	require.Equal(t, time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC), tt.Clock().Now())
	require.Equal(t, tt.Clock().Now(), tt.Context().StartedAt())

	tt.Clock().Add(time.Hour)
	require.Equal(t, time.Date(2020, time.January, 1, 1, 0, 0, 0, time.UTC), tt.Clock().Now())
}
