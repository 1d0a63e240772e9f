package metrickeys

const prefix = "releases_"

const (
	RunCompleted = prefix + "run_completed"

	TaskExecuted  = prefix + "task_executed"
	TaskFailed    = prefix + "task_failed"
	TaskSkipped   = prefix + "task_skipped"
	TaskExecution = prefix + "task_execution"

	RollbackExecuted   = prefix + "rollback_executed"
	RollbackTaskFailed = prefix + "rollback_task_failed"

	PlanCacheHit      = prefix + "plan_cache_hit"
	PlanCacheMiss     = prefix + "plan_cache_miss"
	PlanCacheSize     = prefix + "plan_cache_size"
	PlanCacheEviction = prefix + "plan_cache_eviction"

	JournalWrite = prefix + "journal_write"
)

// Tag keys
const (
	Strategy       = "strategy"
	Reason         = "reason"
	Success        = "success"
	Store          = "store"
	EvictionReason = "eviction_reason"
)
