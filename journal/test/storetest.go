package test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relkit/go-release/journal"
)

// StoreTest runs the journal.Store contract against the given store. Every
// store implementation is expected to pass it unchanged.
func StoreTest(t *testing.T, store journal.Store) {
	ctx := context.Background()

	createdAt := time.Date(2023, time.March, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		f    func(t *testing.T)
	}{
		{
			"GetRun_NotFound",
			func(t *testing.T) {
				_, err := store.GetRun(ctx, "missing")
				require.ErrorIs(t, err, journal.ErrRunNotFound)
			},
		},
		{
			"CreateRun_GetRun_RoundTrip",
			func(t *testing.T) {
				run := &journal.Run{
					ID:               "round-trip",
					Name:             "nightly release",
					Status:           journal.RunStatusRunning,
					DryRun:           true,
					RollbackStrategy: "reverse",
					CreatedAt:        createdAt,
				}

				require.NoError(t, store.CreateRun(ctx, run))

				got, err := store.GetRun(ctx, "round-trip")
				require.NoError(t, err)
				require.Equal(t, run.ID, got.ID)
				require.Equal(t, run.Name, got.Name)
				require.Equal(t, journal.RunStatusRunning, got.Status)
				require.True(t, got.DryRun)
				require.Equal(t, "reverse", got.RollbackStrategy)
				require.True(t, got.CreatedAt.Equal(createdAt))
			},
		},
		{
			"CreateRun_Duplicate",
			func(t *testing.T) {
				run := &journal.Run{
					ID:        "duplicate",
					Name:      "release",
					Status:    journal.RunStatusRunning,
					CreatedAt: createdAt,
				}

				require.NoError(t, store.CreateRun(ctx, run))
				require.ErrorIs(t, store.CreateRun(ctx, run), journal.ErrRunAlreadyExists)
			},
		},
		{
			"CompleteRun_NotFound",
			func(t *testing.T) {
				err := store.CompleteRun(ctx, &journal.Run{
					ID:     "missing",
					Status: journal.RunStatusCompleted,
				})
				require.ErrorIs(t, err, journal.ErrRunNotFound)
			},
		},
		{
			"CompleteRun_UpdatesTerminalState",
			func(t *testing.T) {
				run := &journal.Run{
					ID:        "completes",
					Name:      "release",
					Status:    journal.RunStatusRunning,
					CreatedAt: createdAt,
				}
				require.NoError(t, store.CreateRun(ctx, run))

				completedAt := createdAt.Add(time.Minute)

				require.NoError(t, store.CompleteRun(ctx, &journal.Run{
					ID:                   "completes",
					Name:                 "release",
					Status:               journal.RunStatusFailed,
					Error:                "executing task \"deploy\": boom",
					RollbackExecuted:     true,
					CompensationExecuted: true,
					CreatedAt:            createdAt,
					CompletedAt:          completedAt,
					Result:               []byte(`{"success":false}`),
				}))

				got, err := store.GetRun(ctx, "completes")
				require.NoError(t, err)
				require.Equal(t, journal.RunStatusFailed, got.Status)
				require.Contains(t, got.Error, "boom")
				require.True(t, got.RollbackExecuted)
				require.True(t, got.CompensationExecuted)
				require.True(t, got.CompletedAt.Equal(completedAt))
				require.JSONEq(t, `{"success":false}`, string(got.Result))
			},
		},
		{
			"RecordTasks_SequenceOrder",
			func(t *testing.T) {
				run := &journal.Run{
					ID:        "with-tasks",
					Name:      "release",
					Status:    journal.RunStatusRunning,
					CreatedAt: createdAt,
				}
				require.NoError(t, store.CreateRun(ctx, run))

				require.NoError(t, store.RecordTasks(ctx, "with-tasks", []*journal.TaskRecord{
					{
						RunID:     "with-tasks",
						Sequence:  0,
						TaskID:    "build",
						TaskName:  "Build artifacts",
						Status:    "executed",
						StartedAt: createdAt,
						Duration:  time.Second * 3,
					},
					{
						RunID:     "with-tasks",
						Sequence:  1,
						TaskID:    "publish",
						TaskName:  "Publish",
						Status:    "skipped",
						Reason:    "dry-run",
						StartedAt: createdAt.Add(time.Second * 3),
					},
				}))

				records, err := store.GetTaskRecords(ctx, "with-tasks")
				require.NoError(t, err)
				require.Len(t, records, 2)
				require.Equal(t, "build", records[0].TaskID)
				require.Equal(t, time.Second*3, records[0].Duration)
				require.Equal(t, "publish", records[1].TaskID)
				require.Equal(t, "dry-run", records[1].Reason)
			},
		},
		{
			"RecordTasks_EmptyIsNoop",
			func(t *testing.T) {
				require.NoError(t, store.RecordTasks(ctx, "with-tasks", nil))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, tt.f)
	}
}
