package executor

import (
	"time"

	"github.com/relkit/go-release/rollback"
)

// TaskStatus is the terminal status of one task within a run.
type TaskStatus string

const (
	TaskStatusExecuted TaskStatus = "executed"
	TaskStatusFailed   TaskStatus = "failed"
	TaskStatusSkipped  TaskStatus = "skipped"
)

// TaskRecord describes the outcome of a single task.
type TaskRecord struct {
	TaskID   string
	TaskName string

	Status TaskStatus

	// Reason explains a skip (feature gating, runtime condition, dry-run).
	Reason string

	// Error is the failure message for failed tasks.
	Error string

	StartedAt time.Time
	Duration  time.Duration
}

// Result is the outcome of one strategy walk over a task graph.
//
// A task that never became eligible, for example because its dependency was
// skipped in favor of a mutually-exclusive dynamic branch, appears in none of
// the three lists. That is expected, not an error.
type Result struct {
	// ExecutedTasks, FailedTasks and SkippedTasks hold task ids in the order
	// the strategy reached them.
	ExecutedTasks []string
	FailedTasks   []string
	SkippedTasks  []string

	// Records holds one record per task the strategy touched, in order.
	Records []TaskRecord

	// Err is the terminal error for a failed run.
	Err error

	RollbackExecuted     bool
	CompensationExecuted bool

	RollbackResult *rollback.Result
}
