package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/mtheof04/Ade-Scripts/internal/domain/run"
	"github.com/mtheof04/Ade-Scripts/internal/domain/stats"
	"github.com/mtheof04/Ade-Scripts/internal/domain/workload"
	"github.com/mtheof04/Ade-Scripts/internal/infra/power"
	"github.com/mtheof04/Ade-Scripts/internal/infra/worker"
)

var (
	// ErrRunNotFound is returned when a benchmark run is not found.
	ErrRunNotFound = errors.New("benchmark run not found")

	// ErrPreCheckFailed is returned when pre-run validation fails.
	ErrPreCheckFailed = errors.New("pre-check failed")
)

// PowerTelemetry fetches power samples from the management controller. Nil
// when power telemetry is not configured for a run.
type PowerTelemetry interface {
	FetchFastPowerMeter(ctx context.Context) (*power.Meter, error)
}

// Task describes one benchmark invocation end to end.
type Task struct {
	Engine    string            // engine label for the run record
	Workload  workload.Workload // the measured unit of work
	Loads     []workload.Workload
	Config    run.Config
	OutputDir string
}

// Validate validates the task.
func (t *Task) Validate() error {
	if t.Engine == "" {
		return fmt.Errorf("engine label is required")
	}
	if err := t.Workload.Validate(); err != nil {
		return err
	}
	for _, l := range t.Loads {
		if err := l.Validate(); err != nil {
			return err
		}
	}
	if t.OutputDir == "" {
		return fmt.Errorf("output directory is required")
	}
	return t.Config.Validate()
}

// BenchmarkUseCase executes benchmark tasks: it owns the run record
// lifecycle around the controller and persists what the controller measures.
type BenchmarkUseCase struct {
	runRepo    RunRepository
	controller *Controller
	telemetry  PowerTelemetry
	logger     *slog.Logger
}

// NewBenchmarkUseCase creates a benchmark use case. telemetry may be nil.
func NewBenchmarkUseCase(
	runRepo RunRepository,
	controller *Controller,
	telemetry PowerTelemetry,
	logger *slog.Logger,
) *BenchmarkUseCase {
	return &BenchmarkUseCase{
		runRepo:    runRepo,
		controller: controller,
		telemetry:  telemetry,
		logger:     logger,
	}
}

// Execute runs one benchmark task against an already-started worker and
// returns the completed run record. The worker is owned by the caller; the
// use case never shuts it down on success paths, so a caller can reuse one
// worker across several tasks.
//
// Errors during setup abort before any measurement is recorded. Errors
// during teardown never discard recorded iterations: the record either
// completes with a full outcome or fails with a tagged error, never a
// partial outcome presented as complete.
func (uc *BenchmarkUseCase) Execute(ctx context.Context, w worker.Worker, task *Task) (*run.Record, error) {
	if err := task.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPreCheckFailed, err)
	}
	if err := os.MkdirAll(task.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create output dir: %v", ErrPreCheckFailed, err)
	}

	rec := &run.Record{
		ID:        uuid.New().String(),
		Engine:    task.Engine,
		Workload:  task.Workload.Name,
		Config:    task.Config,
		State:     run.StatePending,
		OutputDir: task.OutputDir,
		CreatedAt: time.Now(),
	}
	if err := uc.runRepo.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("save run: %w", err)
	}

	uc.logger.Info("Benchmark: run created",
		"run_id", rec.ID,
		"engine", task.Engine,
		"workload", task.Workload.Name,
		"target", task.Config.TargetCumulative,
		"min_iterations", task.Config.MinIterations,
		"warmup", task.Config.WarmupCount)

	if err := uc.execute(ctx, rec, w, task); err != nil {
		uc.markAsFailed(ctx, rec, err)
		return rec, err
	}
	return rec, nil
}

func (uc *BenchmarkUseCase) execute(ctx context.Context, rec *run.Record, w worker.Worker, task *Task) error {
	// Load phase: each load runs once, unmeasured, before anything warms up.
	// A failed load is a broken run, not an empty table.
	if len(task.Loads) > 0 {
		if err := uc.updateState(ctx, rec, run.StateLoading); err != nil {
			return err
		}
		for _, load := range task.Loads {
			if err := uc.controller.RunWarmup(ctx, w, load, 1); err != nil {
				return fmt.Errorf("load %s: %w", load.Name, err)
			}
		}
	}

	if task.Config.WarmupCount > 0 {
		if err := uc.updateState(ctx, rec, run.StateWarmingUp); err != nil {
			return err
		}
		if err := uc.controller.RunWarmup(ctx, w, task.Workload, task.Config.WarmupCount); err != nil {
			return fmt.Errorf("warmup: %w", err)
		}
	}

	if err := uc.updateState(ctx, rec, run.StateRunning); err != nil {
		return err
	}
	now := time.Now()
	rec.StartedAt = &now
	if err := uc.runRepo.Save(ctx, rec); err != nil {
		return fmt.Errorf("save run: %w", err)
	}

	outcome, err := uc.controller.RunBenchmark(ctx, w, task.Workload, task.Config)
	if err != nil {
		return err
	}

	for _, it := range outcome.Iterations {
		if err := uc.runRepo.SaveIteration(ctx, rec.ID, it); err != nil {
			uc.logger.Error("Benchmark: failed to persist iteration",
				"run_id", rec.ID, "iteration", it.Index, "error", err)
		}
	}
	for _, warn := range outcome.Warnings {
		entry := LogEntry{
			Timestamp: time.Now().Format(time.RFC3339),
			Stream:    "error",
			Content:   "monitor teardown warning: " + warn.String(),
		}
		if err := uc.runRepo.SaveLogEntry(ctx, rec.ID, entry); err != nil {
			uc.logger.Error("Benchmark: failed to persist log entry",
				"run_id", rec.ID, "error", err)
		}
	}

	uc.collectPowerTelemetry(ctx, rec, outcome)

	completed := time.Now()
	rec.CompletedAt = &completed
	rec.Outcome = outcome
	rec.CalculateDuration()
	if err := rec.SetState(run.StateCompleted); err != nil {
		return err
	}
	if err := uc.runRepo.Save(ctx, rec); err != nil {
		return fmt.Errorf("save run: %w", err)
	}

	summary := stats.FromIterations(outcome.Iterations)
	uc.logger.Info("Benchmark: run completed",
		"run_id", rec.ID,
		"iterations", len(outcome.Iterations),
		"cumulative_seconds", outcome.CumulativeSeconds(),
		"mean_seconds", summary.Mean,
		"stddev_seconds", summary.StdDev,
		"warnings", len(outcome.Warnings))
	return nil
}

// collectPowerTelemetry fetches the meter's buffered samples for the phase
// and writes them next to the monitor artifacts. Telemetry failures are
// logged, not fatal: the measured iterations stand on their own.
func (uc *BenchmarkUseCase) collectPowerTelemetry(ctx context.Context, rec *run.Record, outcome *run.Outcome) {
	if uc.telemetry == nil || len(outcome.Iterations) == 0 {
		return
	}

	meter, err := uc.telemetry.FetchFastPowerMeter(ctx)
	if err != nil {
		uc.logger.Warn("Benchmark: power telemetry fetch failed",
			"run_id", rec.ID, "error", err)
		return
	}

	samplesPath := filepath.Join(rec.OutputDir, "ilo_power_samples.json")
	f, err := os.Create(samplesPath)
	if err == nil {
		power.WriteSamples(f, meter)
		f.Close()
	}

	first := outcome.Iterations[0]
	last := outcome.Iterations[len(outcome.Iterations)-1]
	tsPath := filepath.Join(rec.OutputDir, "ilo_power_timestamps.txt")
	tf, err := os.Create(tsPath)
	if err == nil {
		power.WriteTimestamps(tf, first.StartedAt, last.CompletedAt)
		tf.Close()
	}
}

func (uc *BenchmarkUseCase) updateState(ctx context.Context, rec *run.Record, state run.State) error {
	if err := rec.SetState(state); err != nil {
		return err
	}
	return uc.runRepo.UpdateState(ctx, rec.ID, state)
}

// markAsFailed records the failure on the run. Cancellation is recorded as
// cancelled rather than failed so operator interrupts are distinguishable in
// history.
func (uc *BenchmarkUseCase) markAsFailed(ctx context.Context, rec *run.Record, cause error) {
	state := run.StateFailed
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		state = run.StateCancelled
	}

	now := time.Now()
	rec.ErrorMessage = cause.Error()
	if rec.CompletedAt == nil {
		rec.CompletedAt = &now
	}
	rec.CalculateDuration()
	if err := rec.SetState(state); err == nil {
		if err := uc.runRepo.Save(ctx, rec); err != nil {
			uc.logger.Error("Benchmark: failed to persist failure",
				"run_id", rec.ID, "error", err)
		}
	}

	uc.logger.Error("Benchmark: run aborted",
		"run_id", rec.ID, "state", state, "error", cause)
}

// GetRun returns the stored record for a run.
func (uc *BenchmarkUseCase) GetRun(ctx context.Context, runID string) (*run.Record, error) {
	return uc.runRepo.FindByID(ctx, runID)
}

// ListRuns lists stored runs.
func (uc *BenchmarkUseCase) ListRuns(ctx context.Context, opts FindOptions) ([]*run.Record, error) {
	return uc.runRepo.FindAll(ctx, opts)
}
