package mysql

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/relkit/go-release/journal"
)

//go:embed schema.sql
var schema string

func NewMysqlStore(host string, port int, user, password, database string, opts ...journal.Option) (*mysqlStore, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&interpolateParams=true", user, password, host, port, database)

	schemaDsn := dsn + "&multiStatements=true"
	db, err := sql.Open("mysql", schemaDsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("initializing database: %w", err)
	}

	if err := db.Close(); err != nil {
		return nil, fmt.Errorf("closing schema connection: %w", err)
	}

	db, err = sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	return &mysqlStore{
		db:      db,
		options: journal.ApplyOptions(opts...),
	}, nil
}

type mysqlStore struct {
	db      *sql.DB
	options journal.Options
}

var _ journal.Store = (*mysqlStore)(nil)

func (s *mysqlStore) Close() error {
	return s.db.Close()
}

func (s *mysqlStore) CreateRun(ctx context.Context, run *journal.Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs
			(id, name, status, dry_run, rollback_strategy, error, rollback_executed, compensation_executed, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Name, string(run.Status), run.DryRun, run.RollbackStrategy,
		run.Error, run.RollbackExecuted, run.CompensationExecuted, run.CreatedAt,
	)
	if err != nil {
		var merr *mysql.MySQLError
		// 1062 is ER_DUP_ENTRY
		if errors.As(err, &merr) && merr.Number == 1062 {
			return journal.ErrRunAlreadyExists
		}

		return fmt.Errorf("inserting run: %w", err)
	}

	return nil
}

func (s *mysqlStore) CompleteRun(ctx context.Context, run *journal.Run) error {
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

func (s *mysqlStore) RecordTasks(ctx context.Context, runID string, records []*journal.TaskRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
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

func (s *mysqlStore) GetRun(ctx context.Context, runID string) (*journal.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, status, dry_run, rollback_strategy, error, rollback_executed, compensation_executed, created_at, completed_at, result
			FROM runs WHERE id = ?`, runID)

	var run journal.Run
	var status string
	var errMsg sql.NullString
	var completedAt sql.NullTime
	var result []byte

	if err := row.Scan(
		&run.ID, &run.Name, &status, &run.DryRun, &run.RollbackStrategy, &errMsg,
		&run.RollbackExecuted, &run.CompensationExecuted, &run.CreatedAt, &completedAt, &result,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, journal.ErrRunNotFound
		}

		return nil, fmt.Errorf("scanning run: %w", err)
	}

	run.Status = journal.RunStatus(status)
	run.Error = errMsg.String
	if completedAt.Valid {
		run.CompletedAt = completedAt.Time
	}
	run.Result = result

	return &run, nil
}

func (s *mysqlStore) GetTaskRecords(ctx context.Context, runID string) ([]*journal.TaskRecord, error) {
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
		var errMsg sql.NullString
		var durationMs int64

		if err := rows.Scan(
			&r.RunID, &r.Sequence, &r.TaskID, &r.TaskName, &r.Status, &r.Reason, &errMsg,
			&r.StartedAt, &durationMs,
		); err != nil {
			return nil, fmt.Errorf("scanning task record: %w", err)
		}

		r.Error = errMsg.String
		r.Duration = time.Duration(durationMs) * time.Millisecond
		records = append(records, &r)
	}

	return records, rows.Err()
}
