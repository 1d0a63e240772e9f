package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relkit/go-release/taskerrors"
)

func Test_Context_Get_NotFound(t *testing.T) {
	ctx := NewContext(NewRun("r1", "test"), time.Now(), nil)

	_, err := ctx.Get("missing")
	require.Error(t, err)
	require.True(t, taskerrors.IsKind(err, taskerrors.NotFound))
}

func Test_Context_Fork_LeavesOriginalUntouched(t *testing.T) {
	ctx := NewContext(NewRun("r1", "test"), time.Now(), nil)

	forked := ctx.Fork("version", "1.2.0")

	require.False(t, ctx.Has("version"))
	require.True(t, forked.Has("version"))

	v, err := forked.Get("version")
	require.NoError(t, err)
	require.Equal(t, "1.2.0", v)

	require.Equal(t, 0, ctx.Version())
	require.Equal(t, 1, forked.Version())
}

func Test_Context_ForkMultiple_SingleOverlay(t *testing.T) {
	ctx := NewContext(NewRun("r1", "test"), time.Now(), nil)
	ctx = ctx.Fork("a", 1)

	forked := ctx.ForkMultiple(map[string]any{
		"a": 2,
		"b": 3,
	})

	a, err := ctx.Get("a")
	require.NoError(t, err)
	require.Equal(t, 1, a)

	a, err = forked.Get("a")
	require.NoError(t, err)
	require.Equal(t, 2, a)

	b, err := forked.Get("b")
	require.NoError(t, err)
	require.Equal(t, 3, b)

	require.Equal(t, 2, forked.Version())
}

func Test_Context_Config_Copied(t *testing.T) {
	config := map[string]any{"channel": "stable"}

	ctx := NewContext(NewRun("r1", "test"), time.Now(), config)

	// Mutating the caller's map after construction must not leak through.
	config["channel"] = "beta"

	v, ok := ctx.Config("channel")
	require.True(t, ok)
	require.Equal(t, "stable", v)

	_, ok = ctx.Config("missing")
	require.False(t, ok)
}

func Test_Context_Config_SharedAcrossForks(t *testing.T) {
	ctx := NewContext(NewRun("r1", "test"), time.Now(), map[string]any{"channel": "stable"})

	forked := ctx.Fork("a", 1)

	v, ok := forked.Config("channel")
	require.True(t, ok)
	require.Equal(t, "stable", v)
}

func Test_Context_Snapshot_Copy(t *testing.T) {
	ctx := NewContext(NewRun("r1", "test"), time.Now(), nil)
	ctx = ctx.Fork("a", 1)

	snapshot := ctx.Snapshot()
	snapshot["a"] = 42
	snapshot["b"] = 2

	a, err := ctx.Get("a")
	require.NoError(t, err)
	require.Equal(t, 1, a)
	require.False(t, ctx.Has("b"))
}

func Test_Context_Run(t *testing.T) {
	startedAt := time.Now()
	run := NewRun("r1", "test")

	ctx := NewContext(run, startedAt, nil)

	require.Same(t, run, ctx.Run())
	require.Equal(t, startedAt, ctx.StartedAt())

	forked := ctx.Fork("a", 1)
	require.Same(t, run, forked.Run())
	require.Equal(t, startedAt, forked.StartedAt())
}
