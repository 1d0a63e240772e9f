package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relkit/go-release/core"
	"github.com/relkit/go-release/features"
	"github.com/relkit/go-release/graph/cache"
	"github.com/relkit/go-release/journal"
	"github.com/relkit/go-release/rollback"
	"github.com/relkit/go-release/task"
	"github.com/relkit/go-release/taskerrors"
)

type fakeStore struct {
	mu sync.Mutex

	runs    map[string]*journal.Run
	records map[string][]*journal.TaskRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		runs:    make(map[string]*journal.Run),
		records: make(map[string][]*journal.TaskRecord),
	}
}

func (s *fakeStore) CreateRun(ctx context.Context, run *journal.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[run.ID]; ok {
		return journal.ErrRunAlreadyExists
	}

	s.runs[run.ID] = run

	return nil
}

func (s *fakeStore) CompleteRun(ctx context.Context, run *journal.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[run.ID]; !ok {
		return journal.ErrRunNotFound
	}

	s.runs[run.ID] = run

	return nil
}

func (s *fakeStore) RecordTasks(ctx context.Context, runID string, records []*journal.TaskRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[runID] = append(s.records[runID], records...)

	return nil
}

func (s *fakeStore) GetRun(ctx context.Context, runID string) (*journal.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[runID]
	if !ok {
		return nil, journal.ErrRunNotFound
	}

	return run, nil
}

func (s *fakeStore) GetTaskRecords(ctx context.Context, runID string) ([]*journal.TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.records[runID], nil
}

var _ journal.Store = (*fakeStore)(nil)

func simpleTask(id string, executed *[]string, opts ...task.Option) task.Task {
	opts = append([]task.Option{
		task.WithExecute(func(ctx *core.Context) (*core.Context, error) {
			*executed = append(*executed, id)
			return nil, nil
		}),
	}, opts...)

	return task.New(id, opts...)
}

func Test_Run_Success(t *testing.T) {
	var executed []string

	o := New()

	result, err := o.Run(context.Background(), RunOptions{Name: "release"}, []task.Task{
		simpleTask("version", &executed),
		simpleTask("build", &executed, task.WithDependencies("version")),
	})

	require.NoError(t, err)
	require.True(t, result.Success)
	require.NotEmpty(t, result.RunID)
	require.Equal(t, []string{"version", "build"}, result.ExecutedTasks)
	require.Empty(t, result.FailedTasks)
	require.False(t, result.RollbackExecuted)
	require.False(t, result.EndTime.Before(result.StartTime))
	require.Equal(t, StateCompleted, o.State())
}

func Test_Run_NoTasks(t *testing.T) {
	o := New()

	result, err := o.Run(context.Background(), RunOptions{Name: "release"}, nil)

	require.Error(t, err)
	require.True(t, taskerrors.IsKind(err, taskerrors.Validation))
	require.NotNil(t, result)
	require.False(t, result.Success)
	require.Same(t, err, result.Err)
	require.Equal(t, StateFailed, o.State())
}

func Test_Run_InvalidStrategy(t *testing.T) {
	var executed []string

	o := New()

	_, err := o.Run(context.Background(), RunOptions{
		Name:             "release",
		RollbackStrategy: rollback.Strategy("undo-everything"),
	}, []task.Task{
		simpleTask("version", &executed),
	})

	require.Error(t, err)
	require.True(t, taskerrors.IsKind(err, taskerrors.Validation))
	require.Empty(t, executed)
}

func Test_Run_ValidationHappensBeforeExecution(t *testing.T) {
	var executed []string

	o := New()

	result, err := o.Run(context.Background(), RunOptions{Name: "release"}, []task.Task{
		simpleTask("a", &executed, task.WithDependencies("b")),
		simpleTask("b", &executed, task.WithDependencies("a")),
	})

	require.Error(t, err)
	require.True(t, taskerrors.IsKind(err, taskerrors.Validation))
	require.Contains(t, err.Error(), "circular dependency")

	// No task ran, and the failure shape matches an execution failure.
	require.Empty(t, executed)
	require.Empty(t, result.ExecutedTasks)
	require.Empty(t, result.FailedTasks)
	require.Empty(t, result.SkippedTasks)
}

func Test_Run_MissingDependencyReference(t *testing.T) {
	var executed []string

	o := New()

	_, err := o.Run(context.Background(), RunOptions{Name: "release"}, []task.Task{
		simpleTask("build", &executed, task.WithDependencies("missing")),
	})

	require.Error(t, err)
	require.True(t, taskerrors.IsKind(err, taskerrors.Validation))
	require.Empty(t, executed)
}

func Test_Run_UnknownEnabledFeature(t *testing.T) {
	var executed []string

	o := New()

	_, err := o.Run(context.Background(), RunOptions{
		Name:            "release",
		EnabledFeatures: []string{"missing"},
	}, []task.Task{
		simpleTask("build", &executed),
	})

	require.Error(t, err)
	require.True(t, taskerrors.IsKind(err, taskerrors.Validation))
	require.Empty(t, executed)
}

func Test_Run_FailureReturnsResultAndError(t *testing.T) {
	o := New()

	result, err := o.Run(context.Background(), RunOptions{Name: "release"}, []task.Task{
		task.New("build", task.WithExecute(func(ctx *core.Context) (*core.Context, error) {
			return nil, errors.New("boom")
		})),
	})

	require.Error(t, err)
	require.Same(t, err, result.Err)
	require.False(t, result.Success)
	require.Equal(t, []string{"build"}, result.FailedTasks)
	require.Equal(t, StateFailed, o.State())
}

func Test_Run_DryRun(t *testing.T) {
	var executed []string

	o := New()

	result, err := o.Run(context.Background(), RunOptions{
		Name:   "release",
		DryRun: true,
	}, []task.Task{
		simpleTask("version", &executed),
		simpleTask("build", &executed, task.WithDependencies("version")),
	})

	require.NoError(t, err)
	require.True(t, result.Success)
	require.Empty(t, executed)
	require.Equal(t, []string{"version", "build"}, result.SkippedTasks)
}

func Test_Run_FeatureFlags(t *testing.T) {
	var executed []string

	o := New()

	result, err := o.Run(context.Background(), RunOptions{
		Name: "release",
		Flags: []features.Flag{
			{Name: "publish"},
		},
		EnabledFeatures: []string{"publish"},
	}, []task.Task{
		simpleTask("build", &executed),
		simpleTask("publish", &executed,
			task.WithDependencies("build"),
			task.WithRequiredFeatures("publish"),
		),
	})

	require.NoError(t, err)
	require.Equal(t, []string{"build", "publish"}, result.ExecutedTasks)
}

func Test_Run_JournalsOutcome(t *testing.T) {
	store := newFakeStore()

	o := New(WithJournal(store))

	result, err := o.Run(context.Background(), RunOptions{
		RunID: "run-1",
		Name:  "release",
	}, []task.Task{
		task.New("build", task.WithExecute(func(ctx *core.Context) (*core.Context, error) {
			return nil, nil
		})),
	})
	require.NoError(t, err)

	run, err := store.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	require.Equal(t, journal.RunStatusCompleted, run.Status)
	require.Equal(t, "release", run.Name)
	require.Equal(t, string(rollback.StrategyReverse), run.RollbackStrategy)
	require.False(t, run.CompletedAt.IsZero())

	var persisted RunResult
	require.NoError(t, json.Unmarshal(run.Result, &persisted))
	require.Equal(t, result.RunID, persisted.RunID)
	require.True(t, persisted.Success)

	records, err := store.GetTaskRecords(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "build", records[0].TaskID)
	require.Equal(t, "executed", records[0].Status)
	require.Equal(t, 0, records[0].Sequence)
}

func Test_Run_JournalsFailure(t *testing.T) {
	store := newFakeStore()

	o := New(WithJournal(store))

	_, err := o.Run(context.Background(), RunOptions{
		RunID: "run-1",
		Name:  "release",
	}, []task.Task{
		task.New("build", task.WithExecute(func(ctx *core.Context) (*core.Context, error) {
			return nil, errors.New("boom")
		})),
	})
	require.Error(t, err)

	run, gerr := store.GetRun(context.Background(), "run-1")
	require.NoError(t, gerr)
	require.Equal(t, journal.RunStatusFailed, run.Status)
	require.Contains(t, run.Error, "boom")
	require.True(t, run.RollbackExecuted)
}

func Test_Run_DuplicateRunID(t *testing.T) {
	store := newFakeStore()

	tasks := []task.Task{
		task.New("build", task.WithExecute(func(ctx *core.Context) (*core.Context, error) {
			return nil, nil
		})),
	}

	opts := RunOptions{RunID: "run-1", Name: "release"}

	o := New(WithJournal(store))
	_, err := o.Run(context.Background(), opts, tasks)
	require.NoError(t, err)

	_, err = New(WithJournal(store)).Run(context.Background(), opts, tasks)
	require.Error(t, err)
	require.True(t, taskerrors.IsKind(err, taskerrors.Conflict))
}

type recordingCache struct {
	plans  map[string]*cache.Plan
	hits   int
	misses int
}

func newRecordingCache() *recordingCache {
	return &recordingCache{plans: make(map[string]*cache.Plan)}
}

func (c *recordingCache) Get(ctx context.Context, fingerprint string) (*cache.Plan, bool) {
	p, ok := c.plans[fingerprint]
	if ok {
		c.hits++
	} else {
		c.misses++
	}

	return p, ok
}

func (c *recordingCache) Store(ctx context.Context, fingerprint string, plan *cache.Plan) {
	c.plans[fingerprint] = plan
}

func (c *recordingCache) Evict(ctx context.Context, fingerprint string) {
	delete(c.plans, fingerprint)
}

func (c *recordingCache) StartEviction(ctx context.Context) {
	<-ctx.Done()
}

var _ cache.Cache = (*recordingCache)(nil)

func Test_Run_PlanCacheReused(t *testing.T) {
	pc := newRecordingCache()

	var executed []string
	tasks := []task.Task{
		simpleTask("version", &executed),
		simpleTask("build", &executed, task.WithDependencies("version")),
	}

	_, err := New(WithPlanCache(pc)).Run(context.Background(), RunOptions{Name: "dry"}, tasks)
	require.NoError(t, err)
	require.Equal(t, 1, pc.misses)
	require.Equal(t, 0, pc.hits)

	_, err = New(WithPlanCache(pc)).Run(context.Background(), RunOptions{Name: "real"}, tasks)
	require.NoError(t, err)
	require.Equal(t, 1, pc.hits)

	require.Equal(t, []string{"version", "build", "version", "build"}, executed)
}

func Test_Run_PlanCacheResolvesCurrentInstances(t *testing.T) {
	pc := newRecordingCache()

	var first []string
	_, err := New(WithPlanCache(pc)).Run(context.Background(), RunOptions{Name: "one"}, []task.Task{
		simpleTask("version", &first),
		simpleTask("build", &first, task.WithDependencies("version")),
	})
	require.NoError(t, err)

	require.Len(t, pc.plans, 1)
	for _, plan := range pc.plans {
		require.Equal(t, []string{"version", "build"}, plan.TaskIDs)
	}

	// An equivalent task set shares the fingerprint even with a different
	// registration order. The cached plan must execute this run's task
	// instances, not the ones that populated the cache.
	var second []string
	_, err = New(WithPlanCache(pc)).Run(context.Background(), RunOptions{Name: "two"}, []task.Task{
		simpleTask("build", &second, task.WithDependencies("version")),
		simpleTask("version", &second),
	})
	require.NoError(t, err)
	require.Equal(t, 1, pc.hits)
	require.Equal(t, []string{"version", "build"}, second)
	require.Equal(t, []string{"version", "build"}, first)
}

func Test_State_Transitions(t *testing.T) {
	o := New()
	require.Equal(t, StateCreated, o.State())

	_, err := o.Run(context.Background(), RunOptions{Name: "release"}, []task.Task{
		task.New("build", task.WithExecute(func(ctx *core.Context) (*core.Context, error) {
			return nil, nil
		})),
	})
	require.NoError(t, err)
	require.Equal(t, StateCompleted, o.State())
}
