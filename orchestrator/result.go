package orchestrator

import (
	"time"

	"github.com/relkit/go-release/rollback"
)

// RunResult is the single result returned for one orchestration run.
// Validation failures and execution failures surface in the same shape, so
// callers need one handling path. Partial progress is always enumerated
// explicitly via the three task lists, never inferred.
type RunResult struct {
	Success bool `json:"success"`

	RunID string `json:"run_id"`

	// ExecutedTasks, FailedTasks and SkippedTasks hold task ids in the order
	// the run reached them. A task that never became eligible appears in none
	// of the lists.
	ExecutedTasks []string `json:"executed_tasks,omitempty"`
	FailedTasks   []string `json:"failed_tasks,omitempty"`
	SkippedTasks  []string `json:"skipped_tasks,omitempty"`

	// Err is the terminal error of a failed run.
	Err error `json:"error,omitempty"`

	RollbackExecuted     bool `json:"rollback_executed"`
	CompensationExecuted bool `json:"compensation_executed"`

	RollbackResult *rollback.Result `json:"rollback_result,omitempty"`

	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`

	// ExecutionTime is the total run duration.
	ExecutionTime time.Duration `json:"execution_time"`
}
