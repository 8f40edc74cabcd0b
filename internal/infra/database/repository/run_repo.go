// Package repository provides SQLite repository implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mtheof04/Ade-Scripts/internal/app/usecase"
	"github.com/mtheof04/Ade-Scripts/internal/domain/run"
)

// ErrRunNotFound is returned when a run is not found.
var ErrRunNotFound = errors.New("run not found")

// SQLiteRunRepository implements the RunRepository interface using SQLite.
type SQLiteRunRepository struct {
	db *sql.DB
}

// NewSQLiteRunRepository creates a new SQLite run repository.
func NewSQLiteRunRepository(db *sql.DB) *SQLiteRunRepository {
	return &SQLiteRunRepository{db: db}
}

// Save saves a run record to the database.
// If the record already exists (by ID), it will be updated.
func (r *SQLiteRunRepository) Save(ctx context.Context, rec *run.Record) error {
	configJSON, err := json.Marshal(rec.Config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	var outcomeJSON *string
	if rec.Outcome != nil {
		b, err := json.Marshal(rec.Outcome)
		if err != nil {
			return fmt.Errorf("marshal outcome: %w", err)
		}
		s := string(b)
		outcomeJSON = &s
	}

	var durationSeconds *float64
	if rec.Duration != nil {
		d := rec.Duration.Seconds()
		durationSeconds = &d
	}

	var startedAt, completedAt *string
	if rec.StartedAt != nil {
		s := rec.StartedAt.Format(time.RFC3339)
		startedAt = &s
	}
	if rec.CompletedAt != nil {
		c := rec.CompletedAt.Format(time.RFC3339)
		completedAt = &c
	}

	query := `
		INSERT INTO runs (
			id, engine, workload, state, config_json, output_dir,
			created_at, started_at, completed_at, duration_seconds,
			outcome_json, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at,
			duration_seconds = excluded.duration_seconds,
			outcome_json = excluded.outcome_json,
			error_message = excluded.error_message
	`

	_, err = r.db.ExecContext(ctx, query,
		rec.ID,
		rec.Engine,
		rec.Workload,
		string(rec.State),
		string(configJSON),
		rec.OutputDir,
		rec.CreatedAt.Format(time.RFC3339),
		startedAt,
		completedAt,
		durationSeconds,
		outcomeJSON,
		rec.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}

	return nil
}

// FindByID finds a run record by its ID.
func (r *SQLiteRunRepository) FindByID(ctx context.Context, id string) (*run.Record, error) {
	query := `
		SELECT id, engine, workload, state, config_json, output_dir,
		       created_at, started_at, completed_at, duration_seconds,
		       outcome_json, error_message
		FROM runs
		WHERE id = ?
	`

	row := r.db.QueryRowContext(ctx, query, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return rec, nil
}

// FindAll finds run records with optional filtering and pagination.
func (r *SQLiteRunRepository) FindAll(ctx context.Context, opts usecase.FindOptions) ([]*run.Record, error) {
	query := `
		SELECT id, engine, workload, state, config_json, output_dir,
		       created_at, started_at, completed_at, duration_seconds,
		       outcome_json, error_message
		FROM runs
		WHERE 1=1
	`
	args := []any{}

	if opts.StateFilter != nil {
		query += " AND state = ?"
		args = append(args, string(*opts.StateFilter))
	}
	if opts.Engine != "" {
		query += " AND engine = ?"
		args = append(args, opts.Engine)
	}
	if opts.Workload != "" {
		query += " AND workload = ?"
		args = append(args, opts.Workload)
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, opts.Offset)
		}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var records []*run.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	return records, nil
}

// UpdateState updates the state of a run, validating the transition against
// the stored state.
func (r *SQLiteRunRepository) UpdateState(ctx context.Context, id string, state run.State) error {
	rec, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if err := rec.SetState(state); err != nil {
		return err
	}

	query := `UPDATE runs SET state = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, string(state), id)
	if err != nil {
		return fmt.Errorf("update state: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrRunNotFound
	}

	return nil
}

// SaveIteration appends one iteration result for a run.
func (r *SQLiteRunRepository) SaveIteration(ctx context.Context, runID string, result run.IterationResult) error {
	query := `
		INSERT INTO iterations (run_id, idx, started_at, completed_at, duration_seconds)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id, idx) DO UPDATE SET
			started_at = excluded.started_at,
			completed_at = excluded.completed_at,
			duration_seconds = excluded.duration_seconds
	`

	_, err := r.db.ExecContext(ctx, query,
		runID,
		result.Index,
		result.StartedAt.Format(time.RFC3339Nano),
		result.CompletedAt.Format(time.RFC3339Nano),
		result.Duration.Seconds(),
	)
	if err != nil {
		return fmt.Errorf("save iteration: %w", err)
	}

	return nil
}

// GetIterations returns the recorded iteration results for a run in order.
func (r *SQLiteRunRepository) GetIterations(ctx context.Context, runID string) ([]run.IterationResult, error) {
	query := `
		SELECT idx, started_at, completed_at, duration_seconds
		FROM iterations
		WHERE run_id = ?
		ORDER BY idx ASC
	`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query iterations: %w", err)
	}
	defer rows.Close()

	var results []run.IterationResult
	for rows.Next() {
		var it run.IterationResult
		var startedStr, completedStr string
		var durationSeconds float64

		if err := rows.Scan(&it.Index, &startedStr, &completedStr, &durationSeconds); err != nil {
			return nil, fmt.Errorf("scan iteration: %w", err)
		}

		if it.StartedAt, err = time.Parse(time.RFC3339Nano, startedStr); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if it.CompletedAt, err = time.Parse(time.RFC3339Nano, completedStr); err != nil {
			return nil, fmt.Errorf("parse completed_at: %w", err)
		}
		it.Duration = time.Duration(durationSeconds * float64(time.Second))

		results = append(results, it)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate iterations: %w", err)
	}

	return results, nil
}

// SaveLogEntry saves a log entry for a run.
func (r *SQLiteRunRepository) SaveLogEntry(ctx context.Context, runID string, entry usecase.LogEntry) error {
	query := `
		INSERT INTO run_logs (run_id, timestamp, stream, content)
		VALUES (?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		runID,
		entry.Timestamp,
		entry.Stream,
		entry.Content,
	)
	if err != nil {
		return fmt.Errorf("save log entry: %w", err)
	}

	return nil
}

// Delete deletes a run by its ID. Iterations and log entries cascade.
func (r *SQLiteRunRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM runs WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrRunNotFound
	}

	return nil
}

// rowScanner covers both sql.Row and sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*run.Record, error) {
	var rec run.Record
	var stateStr, configJSON, createdAtStr string
	var outputDir, startedAtStr, completedAtStr, outcomeJSON, errMsg *string
	var durationSeconds *float64

	err := row.Scan(
		&rec.ID,
		&rec.Engine,
		&rec.Workload,
		&stateStr,
		&configJSON,
		&outputDir,
		&createdAtStr,
		&startedAtStr,
		&completedAtStr,
		&durationSeconds,
		&outcomeJSON,
		&errMsg,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}

	rec.State = run.State(stateStr)

	if err := json.Unmarshal([]byte(configJSON), &rec.Config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if outputDir != nil {
		rec.OutputDir = *outputDir
	}

	createdAt, err := time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	rec.CreatedAt = createdAt

	if startedAtStr != nil {
		t, err := time.Parse(time.RFC3339, *startedAtStr)
		if err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		rec.StartedAt = &t
	}
	if completedAtStr != nil {
		t, err := time.Parse(time.RFC3339, *completedAtStr)
		if err != nil {
			return nil, fmt.Errorf("parse completed_at: %w", err)
		}
		rec.CompletedAt = &t
	}
	if durationSeconds != nil {
		d := time.Duration(*durationSeconds * float64(time.Second))
		rec.Duration = &d
	}
	if outcomeJSON != nil && *outcomeJSON != "" {
		var outcome run.Outcome
		if err := json.Unmarshal([]byte(*outcomeJSON), &outcome); err == nil {
			rec.Outcome = &outcome
		}
	}
	if errMsg != nil {
		rec.ErrorMessage = *errMsg
	}

	return &rec, nil
}
