package rollback

import (
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/relkit/go-release/core"
	"github.com/relkit/go-release/task"
	"github.com/relkit/go-release/taskerrors"
)

func testContext() *core.Context {
	return core.NewContext(core.NewRun("r1", "test"), time.Now(), nil)
}

func undoableTask(id string, undone *[]string) task.Task {
	return task.New(id,
		task.WithExecute(func(ctx *core.Context) (*core.Context, error) {
			return nil, nil
		}),
		task.WithUndo(func(ctx *core.Context) error {
			*undone = append(*undone, id)
			return nil
		}),
	)
}

func Test_ParseStrategy(t *testing.T) {
	for _, s := range []Strategy{StrategyReverse, StrategyCompensation, StrategyCustom, StrategyNone} {
		got, err := ParseStrategy(string(s))
		require.NoError(t, err)
		require.Equal(t, s, got)
	}

	_, err := ParseStrategy("undo-everything")
	require.Error(t, err)
	require.True(t, taskerrors.IsKind(err, taskerrors.Validation))
}

func Test_Rollback_ReverseCompletionOrder(t *testing.T) {
	var undone []string

	m := NewManager()
	m.Record(undoableTask("a", &undone))
	m.Record(undoableTask("b", &undone))
	m.Record(undoableTask("c", &undone))

	result := m.Rollback(testContext(), StrategyReverse)

	require.True(t, result.Success)
	require.Equal(t, []string{"c", "b", "a"}, undone)
	require.Equal(t, []string{"c", "b", "a"}, result.RolledBackTasks)
	require.Empty(t, result.FailedTasks)

	// The stack is consumed.
	require.Empty(t, m.Entries())
}

func Test_Rollback_SkipsNonUndoableTasks(t *testing.T) {
	var undone []string

	m := NewManager()
	m.Record(undoableTask("a", &undone))
	m.Record(task.New("b", task.WithExecute(func(ctx *core.Context) (*core.Context, error) {
		return nil, nil
	})))
	m.Record(undoableTask("c", &undone))

	result := m.Rollback(testContext(), StrategyReverse)

	require.True(t, result.Success)
	require.Equal(t, []string{"c", "a"}, result.RolledBackTasks)
	require.Empty(t, result.FailedTasks)
}

func Test_Rollback_SkipsWhenCanUndoReportsFalse(t *testing.T) {
	var undone []string

	m := NewManager()
	m.Record(task.New("a",
		task.WithUndo(func(ctx *core.Context) error {
			undone = append(undone, "a")
			return nil
		}),
		task.WithCanUndo(func() bool { return false }),
	))

	result := m.Rollback(testContext(), StrategyReverse)

	require.True(t, result.Success)
	require.Empty(t, result.RolledBackTasks)
	require.Empty(t, result.FailedTasks)
	require.Empty(t, undone)
}

func Test_Rollback_StopsAtFirstFailure(t *testing.T) {
	var undone []string

	m := NewManager()
	m.Record(undoableTask("a", &undone))
	m.Record(task.New("b", task.WithUndo(func(ctx *core.Context) error {
		return errors.New("undo failed")
	})))
	m.Record(undoableTask("c", &undone))

	result := m.Rollback(testContext(), StrategyReverse)

	require.False(t, result.Success)
	require.Equal(t, []string{"c"}, result.RolledBackTasks)
	require.Equal(t, []string{"b"}, result.FailedTasks)
	require.Len(t, result.Errors, 1)
	require.True(t, taskerrors.IsKind(result.Errors[0], taskerrors.Failed))

	// "a" was never reached.
	require.Equal(t, []string{"c"}, undone)
}

func Test_Rollback_ContinueOnError(t *testing.T) {
	var undone []string

	m := NewManager(WithContinueOnError(true))
	m.Record(undoableTask("a", &undone))
	m.Record(task.New("b", task.WithUndo(func(ctx *core.Context) error {
		return errors.New("undo failed")
	})))
	m.Record(undoableTask("c", &undone))

	result := m.Rollback(testContext(), StrategyReverse)

	require.False(t, result.Success)
	require.Equal(t, []string{"c", "a"}, result.RolledBackTasks)
	require.Equal(t, []string{"b"}, result.FailedTasks)
	require.Equal(t, []string{"c", "a"}, undone)
}

func Test_Rollback_StrategyNone(t *testing.T) {
	var undone []string

	m := NewManager()
	m.Record(undoableTask("a", &undone))

	result := m.Rollback(testContext(), StrategyNone)

	require.True(t, result.Success)
	require.Empty(t, result.RolledBackTasks)
	require.Empty(t, undone)
}

func Test_Rollback_CompensationPreferred(t *testing.T) {
	var calls []string

	m := NewManager()
	require.NoError(t, m.RegisterCompensation("a", task.New("compensate-a",
		task.WithExecute(func(ctx *core.Context) (*core.Context, error) {
			calls = append(calls, "compensate-a")
			return nil, nil
		}),
	)))

	m.Record(task.New("a", task.WithUndo(func(ctx *core.Context) error {
		calls = append(calls, "undo-a")
		return nil
	})))

	result := m.Rollback(testContext(), StrategyCompensation)

	require.True(t, result.Success)
	require.Equal(t, []string{"a"}, result.RolledBackTasks)
	require.Equal(t, []string{"a"}, result.CompensatedTasks)
	require.Equal(t, []string{"compensate-a"}, calls)
}

func Test_Rollback_CompensationFallsBackToUndo(t *testing.T) {
	var calls []string

	m := NewManager()
	m.Record(task.New("a", task.WithUndo(func(ctx *core.Context) error {
		calls = append(calls, "undo-a")
		return nil
	})))

	result := m.Rollback(testContext(), StrategyCompensation)

	require.True(t, result.Success)
	require.Equal(t, []string{"undo-a"}, calls)
	// The undo fallback counts as rolled back but not as compensated.
	require.Equal(t, []string{"a"}, result.RolledBackTasks)
	require.Empty(t, result.CompensatedTasks)
}

func Test_RegisterCompensation_Duplicate(t *testing.T) {
	m := NewManager()

	comp := task.New("compensate-a", task.WithExecute(func(ctx *core.Context) (*core.Context, error) {
		return nil, nil
	}))

	require.NoError(t, m.RegisterCompensation("a", comp))

	err := m.RegisterCompensation("a", comp)
	require.Error(t, err)
	require.True(t, taskerrors.IsKind(err, taskerrors.Conflict))
}

func Test_Record_MarksCompensation(t *testing.T) {
	mc := clock.NewMock()
	mc.Set(time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC))

	m := NewManager(WithClock(mc))
	require.NoError(t, m.RegisterCompensation("a", task.New("compensate-a",
		task.WithExecute(func(ctx *core.Context) (*core.Context, error) {
			return nil, nil
		}),
	)))

	m.Record(task.New("a", task.WithName("Task A")))
	m.Record(task.New("b"))

	entries := m.Entries()
	require.Len(t, entries, 2)
	require.Equal(t, "a", entries[0].TaskID)
	require.Equal(t, "Task A", entries[0].TaskName)
	require.Equal(t, "compensate-a", entries[0].CompensationID)
	require.Equal(t, mc.Now(), entries[0].ExecutedAt)
	require.Empty(t, entries[1].CompensationID)
}

func Test_Rollback_CustomRunsHooks(t *testing.T) {
	var calls []string

	m := NewManager()
	m.Record(task.New("a",
		task.WithUndo(func(ctx *core.Context) error {
			calls = append(calls, "undo")
			return nil
		}),
		task.WithBeforeRollback(func(ctx *core.Context) error {
			calls = append(calls, "before")
			return nil
		}),
		task.WithAfterRollback(func(ctx *core.Context) error {
			calls = append(calls, "after")
			return nil
		}),
	))

	result := m.Rollback(testContext(), StrategyCustom)

	require.True(t, result.Success)
	require.Equal(t, []string{"before", "undo", "after"}, calls)
}

func Test_Rollback_CustomReportsUndoError(t *testing.T) {
	var calls []string

	m := NewManager()
	m.Record(task.New("a",
		task.WithUndo(func(ctx *core.Context) error {
			return errors.New("undo failed")
		}),
		task.WithOnRollbackError(func(ctx *core.Context, err error) {
			calls = append(calls, "onError")
		}),
		task.WithAfterRollback(func(ctx *core.Context) error {
			calls = append(calls, "after")
			return nil
		}),
	))

	result := m.Rollback(testContext(), StrategyCustom)

	require.False(t, result.Success)
	require.Equal(t, []string{"a"}, result.FailedTasks)
	require.Equal(t, []string{"onError"}, calls)
}

func Test_Reset(t *testing.T) {
	var undone []string

	m := NewManager()
	m.Record(undoableTask("a", &undone))
	m.Reset()

	require.Empty(t, m.Entries())

	result := m.Rollback(testContext(), StrategyReverse)
	require.True(t, result.Success)
	require.Empty(t, undone)
}
