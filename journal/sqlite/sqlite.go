package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/relkit/go-release/journal"

	_ "modernc.org/sqlite"
)

//go:embed db/migrations/*.sql
var migrationsFS embed.FS

// NewInMemoryStore creates an ephemeral journal store, useful for tests and
// dry-runs.
func NewInMemoryStore(opts ...journal.Option) (*sqliteStore, error) {
	s, err := newSqliteStore("file::memory:", opts...)
	if err != nil {
		return nil, err
	}

	s.db.SetMaxOpenConns(1)

	return s, nil
}

func NewSqliteStore(path string, opts ...journal.Option) (*sqliteStore, error) {
	return newSqliteStore(fmt.Sprintf("file:%v?_pragma=busy_timeout(10000)&_pragma=journal_mode(wal)", path), opts...)
}

func newSqliteStore(dsn string, opts ...journal.Option) (*sqliteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &sqliteStore{
		db:      db,
		options: journal.ApplyOptions(opts...),
	}

	if err := s.migrate(); err != nil {
		return nil, err
	}

	return s, nil
}

type sqliteStore struct {
	db      *sql.DB
	options journal.Options
}

var _ journal.Store = (*sqliteStore)(nil)

func (s *sqliteStore) migrate() error {
	dbi, err := sqlitemigrate.WithInstance(s.db, &sqlitemigrate.Config{})
	if err != nil {
		return fmt.Errorf("creating migration instance: %w", err)
	}

	migrations, err := iofs.New(migrationsFS, "db/migrations")
	if err != nil {
		return fmt.Errorf("creating migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", migrations, "sqlite", dbi)
	if err != nil {
		return fmt.Errorf("creating migration: %w", err)
	}

	if err := m.Up(); err != nil {
		if !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("running migrations: %w", err)
		}
	}

	return nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func (s *sqliteStore) CreateRun(ctx context.Context, run *journal.Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs
			(id, name, status, dry_run, rollback_strategy, error, rollback_executed, compensation_executed, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Name, string(run.Status), run.DryRun, run.RollbackStrategy,
		run.Error, run.RollbackExecuted, run.CompensationExecuted, run.CreatedAt,
	)
	if err != nil {
		var exists bool
		if serr := s.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM runs WHERE id = ?)", run.ID).Scan(&exists); serr == nil && exists {
			return journal.ErrRunAlreadyExists
		}

		return fmt.Errorf("inserting run: %w", err)
	}

	s.options.Logger.Debug("Journaled run start")

	return nil
}

func (s *sqliteStore) CompleteRun(ctx context.Context, run *journal.Run) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET
			status = ?, error = ?, rollback_executed = ?, compensation_executed = ?, completed_at = ?, result = ?
			WHERE id = ?`,
		string(run.Status), run.Error, run.RollbackExecuted, run.CompensationExecuted,
		run.CompletedAt, []byte(run.Result), run.ID,
	)
	if err != nil {
		return fmt.Errorf("updating run: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating run: %w", err)
	}
	if n == 0 {
		return journal.ErrRunNotFound
	}

	return nil
}

func (s *sqliteStore) RecordTasks(ctx context.Context, runID string, records []*journal.TaskRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	for _, r := range records {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO task_records
				(run_id, sequence, task_id, task_name, status, reason, error, started_at, duration_ms)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, r.Sequence, r.TaskID, r.TaskName, r.Status, r.Reason, r.Error,
			r.StartedAt, r.Duration.Milliseconds(),
		); err != nil {
			return fmt.Errorf("inserting task record: %w", err)
		}
	}

	return tx.Commit()
}

func (s *sqliteStore) GetRun(ctx context.Context, runID string) (*journal.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, status, dry_run, rollback_strategy, error, rollback_executed, compensation_executed, created_at, completed_at, result
			FROM runs WHERE id = ?`, runID)

	var run journal.Run
	var status string
	var completedAt sql.NullTime
	var result []byte

	if err := row.Scan(
		&run.ID, &run.Name, &status, &run.DryRun, &run.RollbackStrategy, &run.Error,
		&run.RollbackExecuted, &run.CompensationExecuted, &run.CreatedAt, &completedAt, &result,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, journal.ErrRunNotFound
		}

		return nil, fmt.Errorf("scanning run: %w", err)
	}

	run.Status = journal.RunStatus(status)
	if completedAt.Valid {
		run.CompletedAt = completedAt.Time
	}
	run.Result = result

	return &run, nil
}

func (s *sqliteStore) GetTaskRecords(ctx context.Context, runID string) ([]*journal.TaskRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, sequence, task_id, task_name, status, reason, error, started_at, duration_ms
			FROM task_records WHERE run_id = ? ORDER BY sequence`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying task records: %w", err)
	}
	defer rows.Close()

	var records []*journal.TaskRecord
	for rows.Next() {
		var r journal.TaskRecord
		var durationMs int64

		if err := rows.Scan(
			&r.RunID, &r.Sequence, &r.TaskID, &r.TaskName, &r.Status, &r.Reason, &r.Error,
			&r.StartedAt, &durationMs,
		); err != nil {
			return nil, fmt.Errorf("scanning task record: %w", err)
		}

		r.Duration = time.Duration(durationMs) * time.Millisecond
		records = append(records, &r)
	}

	return records, rows.Err()
}
