package journal

import (
	"context"
	"errors"
	"time"

	"github.com/relkit/go-release/converter"
)

var (
	ErrRunNotFound      = errors.New("run not found")
	ErrRunAlreadyExists = errors.New("run already exists")
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is the journaled record of one orchestration run.
type Run struct {
	ID   string
	Name string

	Status RunStatus
	DryRun bool

	RollbackStrategy string

	// Error is the terminal error message of a failed run.
	Error string

	RollbackExecuted     bool
	CompensationExecuted bool

	CreatedAt   time.Time
	CompletedAt time.Time

	// Result is the converter-serialized result summary.
	Result converter.Payload
}

// TaskRecord is the journaled outcome of a single task within a run.
type TaskRecord struct {
	RunID string

	// Sequence orders records within a run.
	Sequence int

	TaskID   string
	TaskName string

	// Status is executed, failed or skipped.
	Status string

	Reason string
	Error  string

	StartedAt time.Time
	Duration  time.Duration
}

// Store persists run outcomes for audit. The engine works without one; the
// orchestrator writes to a store only when configured with it.
type Store interface {
	// CreateRun records the start of a run. It fails with
	// ErrRunAlreadyExists when the run id was journaled before.
	CreateRun(ctx context.Context, run *Run) error

	// CompleteRun updates the run's terminal status, timestamps and result.
	CompleteRun(ctx context.Context, run *Run) error

	// RecordTasks appends task records for the given run.
	RecordTasks(ctx context.Context, runID string, records []*TaskRecord) error

	// GetRun returns the journaled run, or ErrRunNotFound.
	GetRun(ctx context.Context, runID string) (*Run, error)

	// GetTaskRecords returns the run's task records in sequence order.
	GetTaskRecords(ctx context.Context, runID string) ([]*TaskRecord, error)
}
