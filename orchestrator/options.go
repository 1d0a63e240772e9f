package orchestrator

import (
	"log/slog"

	"github.com/benbjohnson/clock"
	"go.opentelemetry.io/otel/trace"

	"github.com/relkit/go-release/converter"
	"github.com/relkit/go-release/features"
	"github.com/relkit/go-release/graph/cache"
	im "github.com/relkit/go-release/internal/metrics"
	"github.com/relkit/go-release/journal"
	"github.com/relkit/go-release/metrics"
	"github.com/relkit/go-release/rollback"
	"github.com/relkit/go-release/task"
)

type Options struct {
	Logger *slog.Logger

	Metrics metrics.Client

	TracerProvider trace.TracerProvider

	// Converter serializes run results for the journal. If not explicitly
	// set, converter.DefaultConverter is used.
	Converter converter.Converter

	Clock clock.Clock

	// Journal persists run outcomes for audit. A nil journal disables
	// persistence.
	Journal journal.Store

	// PlanCache caches materialized execution orders across runs over the
	// same task set. A nil cache disables caching.
	PlanCache cache.Cache
}

var DefaultOptions Options = Options{
	Logger:         slog.Default(),
	Metrics:        im.NewNoopMetricsClient(),
	TracerProvider: trace.NewNoopTracerProvider(),
	Converter:      converter.DefaultConverter,
	Clock:          clock.New(),
}

type Option func(*Options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

func WithMetrics(client metrics.Client) Option {
	return func(o *Options) {
		o.Metrics = client
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *Options) {
		o.TracerProvider = tp
	}
}

func WithConverter(c converter.Converter) Option {
	return func(o *Options) {
		o.Converter = c
	}
}

func WithClock(c clock.Clock) Option {
	return func(o *Options) {
		o.Clock = c
	}
}

func WithJournal(s journal.Store) Option {
	return func(o *Options) {
		o.Journal = s
	}
}

func WithPlanCache(c cache.Cache) Option {
	return func(o *Options) {
		o.PlanCache = c
	}
}

func ApplyOptions(opts ...Option) Options {
	options := DefaultOptions

	for _, opt := range opts {
		opt(&options)
	}

	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	if options.Clock == nil {
		options.Clock = clock.New()
	}

	return options
}

// RunOptions configure a single orchestration run.
type RunOptions struct {
	// RunID is the caller-supplied execution id. Generated when empty.
	RunID string

	Name        string
	Description string

	// DryRun evaluates gating, skip conditions and routing without invoking
	// any task.
	DryRun bool

	// RollbackStrategy defaults to "reverse".
	RollbackStrategy rollback.Strategy

	// ContinueOnRollbackError keeps rolling back remaining tasks after an
	// undo failure.
	ContinueOnRollbackError bool

	// Flags seeds the run's feature manager.
	Flags []features.Flag

	// EnabledFeatures are enabled on top of the seeded flags, with full
	// dependency and conflict validation.
	EnabledFeatures []string

	// Compensations maps task ids to substitute corrective tasks for the
	// "compensation" rollback strategy.
	Compensations map[string]task.Task

	// Config is the read-only configuration exposed through the execution
	// context.
	Config map[string]any
}
