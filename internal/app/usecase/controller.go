package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/mtheof04/Ade-Scripts/internal/domain/run"
	"github.com/mtheof04/Ade-Scripts/internal/domain/workload"
	"github.com/mtheof04/Ade-Scripts/internal/infra/monitor"
	"github.com/mtheof04/Ade-Scripts/internal/infra/worker"
)

// Monitors is the slice of the monitor set the controller drives: start a
// group of collectors as a unit, stop them with teardown failures aggregated
// rather than raised.
type Monitors interface {
	StartAll(specs []monitor.Spec) error
	StopAll() []run.TeardownWarning
}

// Controller drives repeated execution of one workload unit against a worker
// until the stopping condition is met, bracketing the measured phase with
// monitor start/stop. Execution is strictly sequential: the controller owns
// the worker's channel pair for the duration of a run, and no two iterations
// overlap.
type Controller struct {
	// PhaseSpecs are the collectors that run for the whole measured phase.
	PhaseSpecs []monitor.Spec

	// SamplerSpecs returns the short-lived samplers for one iteration,
	// numbered from 1. Their lifetime is scoped to exactly that iteration.
	SamplerSpecs func(iteration int) []monitor.Spec

	// NewMonitorSet creates a fresh monitor set. The controller makes one
	// for the phase collectors and one per iteration for the samplers.
	NewMonitorSet func() Monitors

	// WarmupLog receives one line per completed warm-up repetition.
	WarmupLog io.Writer

	Logger *slog.Logger

	// now is the clock; tests substitute a deterministic one.
	now func() time.Time
}

// NewController creates a run controller. SamplerSpecs and PhaseSpecs may be
// empty when a phase is to run without instrumentation.
func NewController(
	phaseSpecs []monitor.Spec,
	samplerSpecs func(iteration int) []monitor.Spec,
	newMonitorSet func() Monitors,
	warmupLog io.Writer,
	logger *slog.Logger,
) *Controller {
	if samplerSpecs == nil {
		samplerSpecs = func(int) []monitor.Spec { return nil }
	}
	if warmupLog == nil {
		warmupLog = io.Discard
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Controller{
		PhaseSpecs:    phaseSpecs,
		SamplerSpecs:  samplerSpecs,
		NewMonitorSet: newMonitorSet,
		WarmupLog:     warmupLog,
		Logger:        logger,
		now:           time.Now,
	}
}

// RunWarmup executes count unmeasured repetitions of the workload. No
// monitors are active; each completed repetition appends a line to the
// warm-up log. A worker channel failure aborts immediately and is not
// retried.
func (c *Controller) RunWarmup(ctx context.Context, w worker.Worker, wl workload.Workload, count int) error {
	if count < 0 {
		return fmt.Errorf("warmup count must not be negative, got %d", count)
	}

	for i := 1; i <= count; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		start, end, _, err := c.runOnce(w, wl)
		if err != nil {
			return err
		}
		elapsed := end.Sub(start)

		fmt.Fprintf(c.WarmupLog, "warmup %d/%d: %s completed in %.3f seconds\n",
			i, count, wl.Name, elapsed.Seconds())
		c.Logger.Info("Benchmark: warmup repetition completed",
			"workload", wl.Name, "repetition", i, "of", count,
			"duration", elapsed)
	}
	return nil
}

// RunBenchmark executes the measured phase: it starts the phase monitor set,
// loops iterations until both the minimum iteration count is reached and the
// cumulative measured time reaches the target, then stops the monitors and
// returns the outcome.
//
// The termination condition is evaluated only between iterations; an
// iteration, once started, always completes and is recorded even if it pushes
// cumulative time over target, so every recorded iteration is a complete,
// comparable measurement. A monitor that fails to start aborts the run
// before anything is measured: a benchmark without complete instrumentation
// is invalid, not degraded. Sampler teardown failures are recorded as
// warnings on the outcome and do not fail the run.
func (c *Controller) RunBenchmark(ctx context.Context, w worker.Worker, wl workload.Workload, cfg run.Config) (*run.Outcome, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := wl.Validate(); err != nil {
		return nil, err
	}

	wallStart := c.now()

	phase := c.NewMonitorSet()
	if err := phase.StartAll(c.PhaseSpecs); err != nil {
		return nil, err
	}
	phaseStopped := false
	defer func() {
		if !phaseStopped {
			phase.StopAll()
		}
	}()

	outcome := &run.Outcome{}
	var cumulative time.Duration

	for len(outcome.Iterations) < cfg.MinIterations || cumulative < cfg.TargetCumulative {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		index := len(outcome.Iterations) + 1

		samplers := c.NewMonitorSet()
		if err := samplers.StartAll(c.SamplerSpecs(index)); err != nil {
			return nil, err
		}

		start, end, lines, err := c.runOnce(w, wl)
		if err != nil {
			samplers.StopAll()
			return nil, err
		}
		elapsed := end.Sub(start)

		if warns := samplers.StopAll(); len(warns) > 0 {
			outcome.Warnings = append(outcome.Warnings, warns...)
		}

		result := run.IterationResult{
			Index:       index,
			StartedAt:   start,
			CompletedAt: end,
			Duration:    elapsed,
		}
		outcome.Iterations = append(outcome.Iterations, result)
		cumulative += elapsed

		c.Logger.Info("Benchmark: iteration completed",
			"workload", wl.Name,
			"iteration", index,
			"duration", elapsed,
			"cumulative", cumulative,
			"target", cfg.TargetCumulative,
			"result_lines", lines)
	}

	phaseStopped = true
	if warns := phase.StopAll(); len(warns) > 0 {
		outcome.Warnings = append(outcome.Warnings, warns...)
	}

	outcome.Cumulative = cumulative
	outcome.TotalWall = c.now().Sub(wallStart)
	return outcome, nil
}

// runOnce sends the workload and drains the output stream until the
// sentinel, returning the measured send and sentinel-observed timestamps and
// the line count.
func (c *Controller) runOnce(w worker.Worker, wl workload.Workload) (time.Time, time.Time, int, error) {
	start := c.now()

	if err := w.Send(wl); err != nil {
		return start, start, 0, err
	}

	stream, err := w.ReadUntilSentinel()
	if err != nil {
		return start, start, 0, err
	}
	lines, err := stream.Drain()
	if err != nil {
		return start, start, lines, err
	}

	return start, c.now(), lines, nil
}
