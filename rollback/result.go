package rollback

import (
	"time"
)

// Result reports the outcome of one rollback pass. Rollback is best-effort:
// failures are collected here, they are never thrown and never overwrite the
// error that triggered the rollback.
type Result struct {
	Success bool `json:"success"`

	// RolledBackTasks are the ids of tasks whose undo (or compensation)
	// completed, in rollback order.
	RolledBackTasks []string `json:"rolled_back_tasks,omitempty"`

	// CompensatedTasks are the ids of tasks whose registered compensation
	// ran instead of their own undo, in rollback order.
	CompensatedTasks []string `json:"compensated_tasks,omitempty"`

	// FailedTasks are the ids of tasks whose undo failed.
	FailedTasks []string `json:"failed_tasks,omitempty"`

	Errors []error `json:"errors,omitempty"`

	Duration time.Duration `json:"duration"`
}
