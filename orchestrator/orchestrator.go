package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/relkit/go-release/core"
	"github.com/relkit/go-release/executor"
	"github.com/relkit/go-release/features"
	"github.com/relkit/go-release/graph"
	"github.com/relkit/go-release/graph/cache"
	"github.com/relkit/go-release/internal/metrickeys"
	"github.com/relkit/go-release/journal"
	"github.com/relkit/go-release/log"
	"github.com/relkit/go-release/metrics"
	"github.com/relkit/go-release/rollback"
	"github.com/relkit/go-release/task"
	"github.com/relkit/go-release/taskerrors"
)

const TracerName = "go-release"

// Orchestrator is the engine facade. It validates run options and the task
// set, resolves an execution order, delegates to the execution strategy and
// returns a structured result.
//
// Validation failures never invoke any task. Validation and execution
// failures surface in the same result shape.
type Orchestrator struct {
	options Options

	tracer trace.Tracer
	state  State
}

func New(opts ...Option) *Orchestrator {
	options := ApplyOptions(opts...)

	return &Orchestrator{
		options: options,
		tracer:  options.TracerProvider.Tracer(TracerName),
		state:   StateCreated,
	}
}

func (o *Orchestrator) State() State {
	return o.state
}

// Run orchestrates the given task set. The returned result is never nil; its
// Err field carries the terminal error, which is also returned for callers
// that only check the error.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions, tasks []task.Task) (*RunResult, error) {
	startTime := o.options.Clock.Now()

	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.RollbackStrategy == "" {
		opts.RollbackStrategy = rollback.StrategyReverse
	}

	logger := o.options.Logger.With(
		log.RunIDKey, opts.RunID,
		log.RunNameKey, opts.Name,
	)

	ctx, span := o.tracer.Start(ctx, fmt.Sprintf("Run: %s", opts.Name), trace.WithAttributes(
		attribute.String(log.RunIDKey, opts.RunID),
		attribute.Bool(log.DryRunKey, opts.DryRun),
		attribute.String(log.StrategyKey, string(opts.RollbackStrategy)),
	))
	defer span.End()

	fail := func(err error) (*RunResult, error) {
		o.state = StateFailed
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		logger.Error("Run failed", "error", err, log.StateKey, o.state.String())

		endTime := o.options.Clock.Now()
		result := &RunResult{
			RunID:         opts.RunID,
			Err:           err,
			StartTime:     startTime,
			EndTime:       endTime,
			ExecutionTime: endTime.Sub(startTime),
		}

		return result, err
	}

	// Validate options and the task set before any task runs.
	fm, rm, err := o.validate(opts, tasks)
	if err != nil {
		return fail(err)
	}

	g, err := graph.New(tasks)
	if err != nil {
		return fail(taskerrors.Wrap(taskerrors.Validation, err))
	}

	ordered, err := o.executionOrder(ctx, g)
	if err != nil {
		return fail(taskerrors.Wrap(taskerrors.Validation, err))
	}

	o.state = StateValidated

	logger.Debug("Validated task set",
		log.StateKey, o.state.String(),
		"tasks", len(ordered),
	)

	run := core.NewRun(opts.RunID, opts.Name)
	ec := core.NewContext(run, startTime, opts.Config)

	if err := o.journalStart(ctx, opts, startTime); err != nil {
		return fail(err)
	}

	o.state = StateRunning

	exec := executor.New(
		executor.WithLogger(logger),
		executor.WithMetrics(o.options.Metrics),
		executor.WithTracer(o.tracer),
		executor.WithClock(o.options.Clock),
		executor.WithFeatures(fm),
		executor.WithRollback(rm, opts.RollbackStrategy),
		executor.WithDryRun(opts.DryRun),
	)

	er, _ := exec.Run(ctx, g, ec)

	endTime := o.options.Clock.Now()

	result := &RunResult{
		Success:              er.Err == nil,
		RunID:                opts.RunID,
		ExecutedTasks:        er.ExecutedTasks,
		FailedTasks:          er.FailedTasks,
		SkippedTasks:         er.SkippedTasks,
		Err:                  er.Err,
		RollbackExecuted:     er.RollbackExecuted,
		CompensationExecuted: er.CompensationExecuted,
		RollbackResult:       er.RollbackResult,
		StartTime:            startTime,
		EndTime:              endTime,
		ExecutionTime:        endTime.Sub(startTime),
	}

	if result.Success {
		o.state = StateCompleted
	} else {
		o.state = StateFailed
		span.SetStatus(codes.Error, result.Err.Error())
		span.RecordError(result.Err)
	}

	o.options.Metrics.Counter(metrickeys.RunCompleted, metrics.Tags{
		metrickeys.Success: fmt.Sprintf("%v", result.Success),
	}, 1)

	o.journalComplete(ctx, opts, er, result)

	logger.Debug("Run finished",
		log.StateKey, o.state.String(),
		log.ExecutedCountKey, len(result.ExecutedTasks),
		log.FailedCountKey, len(result.FailedTasks),
		log.SkippedCountKey, len(result.SkippedTasks),
		log.DurationKey, result.ExecutionTime.Milliseconds(),
	)

	return result, result.Err
}

// validate checks run options and builds the run's feature and rollback
// managers.
func (o *Orchestrator) validate(opts RunOptions, tasks []task.Task) (*features.Manager, *rollback.Manager, error) {
	if len(tasks) == 0 {
		return nil, nil, taskerrors.New(taskerrors.Validation, "no tasks to run")
	}

	if _, err := rollback.ParseStrategy(string(opts.RollbackStrategy)); err != nil {
		return nil, nil, err
	}

	fm, err := features.NewManager(opts.Flags, features.WithClock(o.options.Clock))
	if err != nil {
		return nil, nil, taskerrors.Wrap(taskerrors.Validation, err)
	}

	for _, name := range opts.EnabledFeatures {
		fm, err = fm.Enable(name)
		if err != nil {
			return nil, nil, taskerrors.Wrap(taskerrors.Validation, err)
		}
	}

	rm := rollback.NewManager(
		rollback.WithLogger(o.options.Logger),
		rollback.WithMetrics(o.options.Metrics),
		rollback.WithClock(o.options.Clock),
		rollback.WithContinueOnError(opts.ContinueOnRollbackError),
	)

	for id, comp := range opts.Compensations {
		if err := rm.RegisterCompensation(id, comp); err != nil {
			return nil, nil, err
		}
	}

	return fm, rm, nil
}

// executionOrder resolves a deterministic order for the graph, using the
// configured plan cache when one is set.
func (o *Orchestrator) executionOrder(ctx context.Context, g *graph.Graph) ([]task.Task, error) {
	if o.options.PlanCache == nil {
		return g.ExecutionOrder()
	}

	fingerprint := g.Fingerprint()
	if plan, ok := o.options.PlanCache.Get(ctx, fingerprint); ok {
		// Resolve the cached ids against this run's graph so the returned
		// tasks are always the current instances.
		tasks := make([]task.Task, len(plan.TaskIDs))
		for i, id := range plan.TaskIDs {
			t, ok := g.Task(id)
			if !ok {
				return g.ExecutionOrder()
			}

			tasks[i] = t
		}

		return tasks, nil
	}

	ordered, err := g.ExecutionOrder()
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(ordered))
	for i, t := range ordered {
		ids[i] = t.ID()
	}

	o.options.PlanCache.Store(ctx, fingerprint, &cache.Plan{TaskIDs: ids})

	return ordered, nil
}

// journalStart records the run start. A duplicate run id fails the run; the
// journal is the authority on run identity when configured.
func (o *Orchestrator) journalStart(ctx context.Context, opts RunOptions, startTime time.Time) error {
	if o.options.Journal == nil {
		return nil
	}

	err := o.options.Journal.CreateRun(ctx, &journal.Run{
		ID:               opts.RunID,
		Name:             opts.Name,
		Status:           journal.RunStatusRunning,
		DryRun:           opts.DryRun,
		RollbackStrategy: string(opts.RollbackStrategy),
		CreatedAt:        startTime,
	})
	if err != nil {
		if errors.Is(err, journal.ErrRunAlreadyExists) {
			return taskerrors.Wrap(taskerrors.Conflict, err)
		}

		return fmt.Errorf("journaling run start: %w", err)
	}

	return nil
}

// journalComplete persists the run outcome and per-task records.
// Journal write failures are logged, they never mask the run result.
func (o *Orchestrator) journalComplete(ctx context.Context, opts RunOptions, er *executor.Result, result *RunResult) {
	if o.options.Journal == nil {
		return
	}

	logger := o.options.Logger

	records := make([]*journal.TaskRecord, len(er.Records))
	for i, r := range er.Records {
		records[i] = &journal.TaskRecord{
			RunID:     opts.RunID,
			Sequence:  i,
			TaskID:    r.TaskID,
			TaskName:  r.TaskName,
			Status:    string(r.Status),
			Reason:    r.Reason,
			Error:     r.Error,
			StartedAt: r.StartedAt,
			Duration:  r.Duration,
		}
	}

	if err := o.options.Journal.RecordTasks(ctx, opts.RunID, records); err != nil {
		logger.Error("Journaling task records failed", "error", err)
	}

	payload, err := o.options.Converter.To(result)
	if err != nil {
		logger.Error("Serializing run result failed", "error", err)
	}

	status := journal.RunStatusCompleted
	errMsg := ""
	if !result.Success {
		status = journal.RunStatusFailed
		errMsg = result.Err.Error()
	}

	run := &journal.Run{
		ID:                   opts.RunID,
		Name:                 opts.Name,
		Status:               status,
		DryRun:               opts.DryRun,
		RollbackStrategy:     string(opts.RollbackStrategy),
		Error:                errMsg,
		RollbackExecuted:     result.RollbackExecuted,
		CompensationExecuted: result.CompensationExecuted,
		CreatedAt:            result.StartTime,
		CompletedAt:          result.EndTime,
		Result:               payload,
	}

	if err := o.options.Journal.CompleteRun(ctx, run); err != nil {
		logger.Error("Journaling run completion failed", "error", err)
	}

	o.options.Metrics.Counter(metrickeys.JournalWrite, metrics.Tags{}, 1)
}
