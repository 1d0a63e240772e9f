package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/relkit/go-release/core"
	"github.com/relkit/go-release/features"
	"github.com/relkit/go-release/graph"
	im "github.com/relkit/go-release/internal/metrics"
	"github.com/relkit/go-release/internal/metrickeys"
	"github.com/relkit/go-release/log"
	"github.com/relkit/go-release/metrics"
	"github.com/relkit/go-release/rollback"
	"github.com/relkit/go-release/task"
	"github.com/relkit/go-release/taskerrors"
)

const (
	skipReasonFeatures  = "required features not enabled"
	skipReasonCondition = "runtime condition"
	skipReasonDryRun    = "dry-run"
)

// Executor walks a task graph in dependency-respecting order, one task at a
// time. Per task it evaluates feature gating and the task's own runtime skip
// condition, executes, and records success with the rollback manager. A task
// failure triggers rollback unless the strategy is "none".
//
// Dynamic successor lists returned by a just-completed task take precedence
// over enqueuing all structural dependents, letting one task's runtime
// outcome select a branch.
type Executor struct {
	logger *slog.Logger
	mc     metrics.Client
	tracer trace.Tracer
	clock  clock.Clock

	features *features.Manager
	rollback *rollback.Manager
	strategy rollback.Strategy

	dryRun bool
}

type Option func(*Executor)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

func WithMetrics(mc metrics.Client) Option {
	return func(e *Executor) {
		e.mc = mc
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(e *Executor) {
		e.tracer = tracer
	}
}

func WithClock(c clock.Clock) Option {
	return func(e *Executor) {
		e.clock = c
	}
}

func WithFeatures(m *features.Manager) Option {
	return func(e *Executor) {
		e.features = m
	}
}

func WithRollback(m *rollback.Manager, strategy rollback.Strategy) Option {
	return func(e *Executor) {
		e.rollback = m
		e.strategy = strategy
	}
}

// WithDryRun makes the executor evaluate gating, skip conditions and routing
// without invoking any task's Execute operation. Tasks report as skipped.
func WithDryRun(dryRun bool) Option {
	return func(e *Executor) {
		e.dryRun = dryRun
	}
}

func New(opts ...Option) *Executor {
	e := &Executor{
		logger:   slog.Default(),
		mc:       im.NewNoopMetricsClient(),
		tracer:   trace.NewNoopTracerProvider().Tracer("go-release"),
		clock:    clock.New(),
		strategy: rollback.StrategyReverse,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.rollback == nil {
		e.rollback = rollback.NewManager(
			rollback.WithLogger(e.logger),
			rollback.WithMetrics(e.mc),
			rollback.WithClock(e.clock),
		)
	}

	if e.features == nil {
		e.features, _ = features.NewManager(nil)
	}

	return e
}

// Run drives the task graph to completion. It returns the result and the
// final execution context.
func (e *Executor) Run(ctx context.Context, g *graph.Graph, ec *core.Context) (*Result, *core.Context) {
	result := &Result{}

	// visited marks tasks that completed, successfully or by being skipped.
	// A skipped dependency satisfies its dependents.
	visited := make(map[string]bool, g.Len())
	queued := make(map[string]bool, g.Len())

	var queue []string
	for _, t := range g.EntryPoints() {
		queue = append(queue, t.ID())
		queued[t.ID()] = true
	}

	for len(queue) > 0 {
		id, rest, ok := e.nextEligible(g, queue, visited)
		if !ok {
			// Remaining queued tasks can never become eligible; they appear
			// in no result list.
			break
		}
		queue = rest

		t, _ := g.Task(id)

		next, err := e.runTask(ctx, t, &ec, result)
		visited[id] = true

		if err != nil {
			e.failRun(ctx, t, err, ec, result)
			return result, ec
		}

		if len(next) > 0 {
			// Dynamic routing selected explicit successors; structural
			// dependents outside the list are not enqueued.
			for _, nid := range next {
				if _, ok := g.Task(nid); !ok {
					err := taskerrors.Newf(taskerrors.Validation, "task %q routed to unknown task %q", id, nid)
					e.recordFailure(t, err, e.clock.Now(), result)
					e.failRun(ctx, t, err, ec, result)
					return result, ec
				}

				if !visited[nid] && !queued[nid] {
					queue = append(queue, nid)
					queued[nid] = true
				}
			}

			continue
		}

		// Default structural fan-out: enqueue every dependent whose
		// dependencies are now fully satisfied.
		for _, did := range g.Dependents(id) {
			if visited[did] || queued[did] {
				continue
			}

			if e.dependenciesSatisfied(g, did, visited) {
				queue = append(queue, did)
				queued[did] = true
			}
		}
	}

	return result, ec
}

// nextEligible returns the first queued task whose dependencies are all
// visited, together with the queue without that task.
func (e *Executor) nextEligible(g *graph.Graph, queue []string, visited map[string]bool) (string, []string, bool) {
	for i, id := range queue {
		if e.dependenciesSatisfied(g, id, visited) {
			rest := append(append([]string(nil), queue[:i]...), queue[i+1:]...)
			return id, rest, true
		}
	}

	return "", queue, false
}

func (e *Executor) dependenciesSatisfied(g *graph.Graph, id string, visited map[string]bool) bool {
	t, ok := g.Task(id)
	if !ok {
		return false
	}

	for _, dep := range t.Dependencies() {
		if !visited[dep] {
			return false
		}
	}

	return true
}

// runTask executes a single task, including gating, skip evaluation and
// hooks. It returns the task's dynamic successors, if any. Skips are recorded
// on the result and return no error.
func (e *Executor) runTask(ctx context.Context, t task.Task, ec **core.Context, result *Result) ([]string, error) {
	logger := e.logger.With(
		log.TaskIDKey, t.ID(),
		log.TaskNameKey, t.Name(),
	)

	if gated, ok := t.(task.Gated); ok {
		if missing := e.missingFeatures(gated); len(missing) > 0 {
			logger.Debug("Skipping task, required features not enabled", log.FeaturesKey, missing)
			e.recordSkip(t, skipReasonFeatures, result)
			return nil, nil
		}
	}

	if cond, ok := t.(task.Conditional); ok {
		should, err := cond.ShouldExecute(*ec)
		if err != nil {
			err = taskerrors.Wrap(taskerrors.Failed, fmt.Errorf("evaluating skip condition for task %q: %w", t.ID(), err))
			e.recordFailure(t, err, e.clock.Now(), result)
			return nil, err
		}

		if !should {
			logger.Debug("Skipping task", log.SkipReasonKey, skipReasonCondition)
			e.recordSkip(t, skipReasonCondition, result)
			return nil, nil
		}
	}

	if e.dryRun {
		logger.Debug("Skipping task", log.SkipReasonKey, skipReasonDryRun)
		e.recordSkip(t, skipReasonDryRun, result)
		return nil, nil
	}

	ctx, span := e.tracer.Start(ctx, fmt.Sprintf("Task: %s", t.Name()), trace.WithAttributes(
		attribute.String(log.TaskIDKey, t.ID()),
		attribute.String(log.RunIDKey, (*ec).Run().ID),
	))
	defer span.End()

	logger.Debug("Executing task")

	start := e.clock.Now()
	timer := metrics.StartTimer(e.mc, metrickeys.TaskExecution, metrics.Tags{})

	newCtx, err := e.executeWithHooks(t, *ec)
	timer.Stop()

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)

		if handler, ok := t.(task.ErrorHandler); ok {
			handler.OnError(*ec, err)
		}

		e.recordFailure(t, err, start, result)

		return nil, taskerrors.Wrap(taskerrors.Failed, fmt.Errorf("executing task %q: %w", t.ID(), err))
	}

	if newCtx != nil {
		*ec = newCtx
	}

	e.rollback.Record(t)

	result.ExecutedTasks = append(result.ExecutedTasks, t.ID())
	result.Records = append(result.Records, TaskRecord{
		TaskID:    t.ID(),
		TaskName:  t.Name(),
		Status:    TaskStatusExecuted,
		StartedAt: start,
		Duration:  e.clock.Since(start),
	})
	e.mc.Counter(metrickeys.TaskExecuted, metrics.Tags{}, 1)

	if router, ok := t.(task.Router); ok {
		next, err := router.NextTasks(*ec)
		if err != nil {
			err = taskerrors.Wrap(taskerrors.Failed, fmt.Errorf("routing after task %q: %w", t.ID(), err))
			e.recordFailure(t, err, start, result)
			return nil, err
		}

		if len(next) > 0 {
			logger.Debug("Task selected dynamic successors", log.NextTasksKey, next)
		}

		return next, nil
	}

	return nil, nil
}

func (e *Executor) executeWithHooks(t task.Task, ec *core.Context) (*core.Context, error) {
	hooks, _ := t.(task.ExecutionHooks)

	if hooks != nil {
		if err := hooks.BeforeExecute(ec); err != nil {
			return nil, err
		}
	}

	newCtx, err := t.Execute(ec)
	if err != nil {
		return nil, err
	}

	if hooks != nil {
		hookCtx := ec
		if newCtx != nil {
			hookCtx = newCtx
		}

		if err := hooks.AfterExecute(hookCtx); err != nil {
			return nil, err
		}
	}

	return newCtx, nil
}

// failRun marks the run failed and triggers rollback according to the
// configured strategy. The triggering error is preserved as the terminal
// error, rollback failures never overwrite it.
func (e *Executor) failRun(ctx context.Context, t task.Task, err error, ec *core.Context, result *Result) {
	result.FailedTasks = append(result.FailedTasks, t.ID())
	result.Err = err

	e.logger.Error("Task failed",
		log.TaskIDKey, t.ID(),
		log.TaskNameKey, t.Name(),
		"error", err,
	)
	e.mc.Counter(metrickeys.TaskFailed, metrics.Tags{}, 1)

	if e.strategy == rollback.StrategyNone {
		return
	}

	_, span := e.tracer.Start(ctx, "Rollback", trace.WithAttributes(
		attribute.String(log.StrategyKey, string(e.strategy)),
		attribute.String(log.RunIDKey, ec.Run().ID),
	))
	defer span.End()

	rr := e.rollback.Rollback(ec, e.strategy)

	result.RollbackExecuted = true
	result.CompensationExecuted = len(rr.CompensatedTasks) > 0
	result.RollbackResult = rr

	if !rr.Success {
		span.SetStatus(codes.Error, "rollback completed with failures")
	}

	e.logger.Debug("Rollback finished",
		log.StrategyKey, string(e.strategy),
		log.RolledBackCountKey, len(rr.RolledBackTasks),
		log.RollbackFailedKey, len(rr.FailedTasks),
	)
}

func (e *Executor) missingFeatures(gated task.Gated) []string {
	var missing []string
	for _, name := range gated.RequiredFeatures() {
		if !e.features.IsEnabled(name) {
			missing = append(missing, name)
		}
	}

	return missing
}

// recordFailure appends a failed record for the task so journaled records
// always name the task that failed the run, regardless of which phase
// failed.
func (e *Executor) recordFailure(t task.Task, err error, start time.Time, result *Result) {
	result.Records = append(result.Records, TaskRecord{
		TaskID:    t.ID(),
		TaskName:  t.Name(),
		Status:    TaskStatusFailed,
		Error:     err.Error(),
		StartedAt: start,
		Duration:  e.clock.Since(start),
	})
}

func (e *Executor) recordSkip(t task.Task, reason string, result *Result) {
	result.SkippedTasks = append(result.SkippedTasks, t.ID())
	result.Records = append(result.Records, TaskRecord{
		TaskID:    t.ID(),
		TaskName:  t.Name(),
		Status:    TaskStatusSkipped,
		Reason:    reason,
		StartedAt: e.clock.Now(),
	})
	e.mc.Counter(metrickeys.TaskSkipped, metrics.Tags{metrickeys.Reason: reason}, 1)
}
