// Package usecase provides the benchmark execution business logic: the
// measurement run controller and the orchestration around it. Repository
// interfaces are defined here and implemented by the infrastructure layer.
package usecase

import (
	"context"

	"github.com/mtheof04/Ade-Scripts/internal/domain/run"
)

// RunRepository defines persistence for benchmark runs and their iteration
// results.
type RunRepository interface {
	// Save saves a run record. An existing record with the same ID is
	// updated.
	Save(ctx context.Context, rec *run.Record) error

	// FindByID finds a run by its ID.
	FindByID(ctx context.Context, id string) (*run.Record, error)

	// FindAll finds runs with optional filtering and pagination.
	FindAll(ctx context.Context, opts FindOptions) ([]*run.Record, error)

	// UpdateState transitions the state of a stored run.
	UpdateState(ctx context.Context, id string, state run.State) error

	// SaveIteration appends one iteration result for a run.
	SaveIteration(ctx context.Context, runID string, result run.IterationResult) error

	// GetIterations returns the recorded iteration results in order.
	GetIterations(ctx context.Context, runID string) ([]run.IterationResult, error)

	// SaveLogEntry appends a log line for a run.
	SaveLogEntry(ctx context.Context, runID string, entry LogEntry) error

	// Delete deletes a run and its iterations.
	Delete(ctx context.Context, id string) error
}

// FindOptions filters and paginates run queries.
type FindOptions struct {
	Limit       int
	Offset      int
	StateFilter *run.State
	Engine      string
	Workload    string
}

// LogEntry is one captured log line for a run.
type LogEntry struct {
	Timestamp string // RFC 3339
	Stream    string // "result", "warmup", "error"
	Content   string
}
