package rollback

import (
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/relkit/go-release/core"
	im "github.com/relkit/go-release/internal/metrics"
	"github.com/relkit/go-release/internal/metrickeys"
	"github.com/relkit/go-release/log"
	"github.com/relkit/go-release/metrics"
	"github.com/relkit/go-release/task"
	"github.com/relkit/go-release/taskerrors"
)

// Entry records one successfully executed task on the rollback stack.
type Entry struct {
	TaskID   string
	TaskName string

	Task task.Task

	ExecutedAt time.Time

	// CompensationID names the registered compensation for this entry, if
	// any.
	CompensationID string
}

// Manager records successfully executed tasks in arrival order and undoes
// them according to the selected strategy. Entries form a stack consumed
// last-in-first-out; rollback always proceeds in strict reverse-completion
// order.
//
// A manager is private to a single orchestration run and not safe to share
// across concurrent runs.
type Manager struct {
	logger *slog.Logger
	mc     metrics.Client
	clock  clock.Clock

	stack         []Entry
	compensations map[string]task.Task

	// continueOnError keeps rolling back remaining entries after an undo
	// failure. The default is to stop at the first failure and report
	// partial completion.
	continueOnError bool
}

type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

func WithMetrics(mc metrics.Client) Option {
	return func(m *Manager) {
		m.mc = mc
	}
}

func WithClock(c clock.Clock) Option {
	return func(m *Manager) {
		m.clock = c
	}
}

func WithContinueOnError(continueOnError bool) Option {
	return func(m *Manager) {
		m.continueOnError = continueOnError
	}
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		logger:        slog.Default(),
		mc:            im.NewNoopMetricsClient(),
		clock:         clock.New(),
		compensations: make(map[string]task.Task),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Record appends the given task to the rollback stack. Call it after each
// successful execution; entries must arrive in completion order.
func (m *Manager) Record(t task.Task) {
	entry := Entry{
		TaskID:     t.ID(),
		TaskName:   t.Name(),
		Task:       t,
		ExecutedAt: m.clock.Now(),
	}

	if _, ok := m.compensations[t.ID()]; ok {
		entry.CompensationID = compensationID(t.ID())
	}

	m.stack = append(m.stack, entry)
}

// RegisterCompensation registers a substitute corrective task to run instead
// of the given task's own undo under the "compensation" strategy.
func (m *Manager) RegisterCompensation(taskID string, compensation task.Task) error {
	if _, ok := m.compensations[taskID]; ok {
		return taskerrors.Newf(taskerrors.Conflict, "compensation for task %q already registered", taskID)
	}

	m.compensations[taskID] = compensation

	return nil
}

// Entries returns a copy of the rollback stack in arrival order.
func (m *Manager) Entries() []Entry {
	return append([]Entry(nil), m.stack...)
}

// Reset clears the rollback stack.
func (m *Manager) Reset() {
	m.stack = nil
}

// Rollback undoes recorded tasks according to the given strategy and clears
// the stack. See the Strategy constants for the per-strategy behavior.
func (m *Manager) Rollback(ctx *core.Context, strategy Strategy) *Result {
	start := m.clock.Now()

	result := &Result{Success: true}

	if strategy == StrategyNone {
		return result
	}

	m.logger.Debug("Rolling back executed tasks",
		log.StrategyKey, string(strategy),
	)

	for i := len(m.stack) - 1; i >= 0; i-- {
		entry := m.stack[i]

		err, undone, compensated := m.rollbackEntry(ctx, entry, strategy)
		if !undone {
			// Not undoable, counted neither as rolled back nor as failed.
			continue
		}

		if err != nil {
			m.logger.Error("Rolling back task failed",
				log.TaskIDKey, entry.TaskID,
				log.TaskNameKey, entry.TaskName,
				"error", err,
			)
			m.mc.Counter(metrickeys.RollbackTaskFailed, metrics.Tags{metrickeys.Strategy: string(strategy)}, 1)

			result.Success = false
			result.FailedTasks = append(result.FailedTasks, entry.TaskID)
			result.Errors = append(result.Errors, taskerrors.Wrap(taskerrors.Failed, err))

			if !m.continueOnError {
				break
			}

			continue
		}

		result.RolledBackTasks = append(result.RolledBackTasks, entry.TaskID)
		if compensated {
			result.CompensatedTasks = append(result.CompensatedTasks, entry.TaskID)
		}
	}

	m.stack = nil

	result.Duration = m.clock.Since(start)

	m.mc.Counter(metrickeys.RollbackExecuted, metrics.Tags{metrickeys.Strategy: string(strategy)}, 1)
	m.mc.Timing(metrickeys.RollbackExecuted, metrics.Tags{metrickeys.Strategy: string(strategy)}, result.Duration)

	return result
}

// rollbackEntry undoes a single entry. The second return value reports
// whether an undo (or compensation) was actually attempted, the third
// whether a registered compensation ran instead of the task's own undo.
func (m *Manager) rollbackEntry(ctx *core.Context, entry Entry, strategy Strategy) (error, bool, bool) {
	if strategy == StrategyCompensation {
		if comp, ok := m.compensations[entry.TaskID]; ok {
			_, err := comp.Execute(ctx)
			return err, true, true
		}
	}

	u, ok := entry.Task.(task.Undoable)
	if !ok || !u.CanUndo() {
		return nil, false, false
	}

	if strategy == StrategyCustom {
		return m.rollbackWithHooks(ctx, entry.Task, u), true, false
	}

	return u.Undo(ctx), true, false
}

// rollbackWithHooks wraps the undo with the task's own rollback hooks so
// task-specific side effects can run around the generic undo.
func (m *Manager) rollbackWithHooks(ctx *core.Context, t task.Task, u task.Undoable) error {
	hooks, _ := t.(task.RollbackHooks)

	if hooks != nil {
		if err := hooks.BeforeRollback(ctx); err != nil {
			return err
		}
	}

	if err := u.Undo(ctx); err != nil {
		if hooks != nil {
			hooks.OnRollbackError(ctx, err)
		}
		return err
	}

	if hooks != nil {
		return hooks.AfterRollback(ctx)
	}

	return nil
}

func compensationID(taskID string) string {
	return "compensate-" + taskID
}
