package log

const (
	NamespaceKey = "releases"

	RunIDKey   = NamespaceKey + ".run.id"
	RunNameKey = NamespaceKey + ".run.name"
	DryRunKey  = NamespaceKey + ".run.dry_run"
	StateKey   = NamespaceKey + ".run.state"

	TaskIDKey   = NamespaceKey + ".task.id"
	TaskNameKey = NamespaceKey + ".task.name"

	SkipReasonKey   = NamespaceKey + ".task.skip_reason"
	DependenciesKey = NamespaceKey + ".task.dependencies"
	NextTasksKey    = NamespaceKey + ".task.next_tasks"

	FeatureKey  = NamespaceKey + ".feature.name"
	FeaturesKey = NamespaceKey + ".feature.required"

	ServiceNameKey = NamespaceKey + ".service.name"

	StrategyKey        = NamespaceKey + ".rollback.strategy"
	RolledBackCountKey = NamespaceKey + ".rollback.rolled_back"
	RollbackFailedKey  = NamespaceKey + ".rollback.failed"

	ExecutedCountKey = NamespaceKey + ".result.executed"
	FailedCountKey   = NamespaceKey + ".result.failed"
	SkippedCountKey  = NamespaceKey + ".result.skipped"

	JournalStoreKey = NamespaceKey + ".journal.store"

	DurationKey = NamespaceKey + ".duration_ms"
)
