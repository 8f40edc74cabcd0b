// Package monitor provides the monitor set: a named group of external
// measurement collectors started and stopped as a unit around a benchmark
// phase, plus the short-lived samplers scoped to single iterations.
package monitor

import (
	"fmt"
	"log/slog"
	"syscall"
	"time"

	"github.com/mtheof04/Ade-Scripts/internal/domain/run"
)

// Spec describes one collector: its launch parameters and where its output
// lands. The collector's output format is opaque here; parsers live apart.
type Spec struct {
	Name       string
	Command    string
	Args       []string
	OutputPath string

	// StopSignal is the termination signal. Performance-counter collectors
	// take SIGINT so they flush buffered statistics before exiting; the rest
	// take SIGTERM.
	StopSignal syscall.Signal
}

// Validate validates the collector spec.
func (s Spec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("collector name is required")
	}
	if s.Command == "" {
		return fmt.Errorf("collector %s: command is required", s.Name)
	}
	if s.OutputPath == "" {
		return fmt.Errorf("collector %s: output path is required", s.Name)
	}
	if s.StopSignal == 0 {
		return fmt.Errorf("collector %s: stop signal is required", s.Name)
	}
	return nil
}

// Process is a started collector process. The exec-backed implementation is
// the production one; tests substitute fakes.
type Process interface {
	// Alive reports whether the process is still running.
	Alive() bool

	// Signal delivers a termination signal.
	Signal(sig syscall.Signal) error

	// Wait blocks until the process exits or the timeout elapses.
	Wait(timeout time.Duration) error
}

// Launcher starts collector processes.
type Launcher interface {
	Launch(spec Spec) (Process, error)
}

// Handle is one active collector. Handles exist only between a StartAll and
// the matching StopAll; none outlives its stop call.
type Handle struct {
	Name       string
	OutputPath string
	stopSignal syscall.Signal
	proc       Process
}

// Options tune monitor set supervision.
type Options struct {
	// StartGrace is how long a collector has to prove itself alive after
	// launch before StartAll fails. Defaults to 500ms.
	StartGrace time.Duration

	// StopTimeout bounds the wait for a collector to confirm exit after its
	// termination signal. Defaults to 10s.
	StopTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.StartGrace <= 0 {
		o.StartGrace = 500 * time.Millisecond
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = 10 * time.Second
	}
	return o
}

// Set starts and stops a group of collectors as a unit.
type Set struct {
	launcher Launcher
	logger   *slog.Logger
	opts     Options

	handles []*Handle
}

// NewSet creates a monitor set using the given launcher.
func NewSet(launcher Launcher, logger *slog.Logger, opts Options) *Set {
	return &Set{
		launcher: launcher,
		logger:   logger.With(slog.String("component", "monitor")),
		opts:     opts.withDefaults(),
	}
}

// Active returns the currently running handles.
func (s *Set) Active() []*Handle {
	return s.handles
}

// StartAll launches every collector and waits for each to report itself
// alive. If any fails, the collectors already started by this call are torn
// down before the error surfaces: no partial monitor sets survive a failed
// start.
func (s *Set) StartAll(specs []Spec) error {
	if len(s.handles) > 0 {
		return run.NewStartupError("monitor set", fmt.Errorf("monitor set already started"))
	}

	started := make([]*Handle, 0, len(specs))
	for _, spec := range specs {
		if err := spec.Validate(); err != nil {
			s.rollback(started)
			return run.NewStartupError(spec.Name, err)
		}

		proc, err := s.launcher.Launch(spec)
		if err != nil {
			s.rollback(started)
			return run.NewStartupError(spec.Name, err)
		}

		h := &Handle{
			Name:       spec.Name,
			OutputPath: spec.OutputPath,
			stopSignal: spec.StopSignal,
			proc:       proc,
		}

		if !s.confirmAlive(proc) {
			s.stopHandle(h)
			s.rollback(started)
			return run.NewStartupError(spec.Name,
				fmt.Errorf("collector exited within start grace period"))
		}

		started = append(started, h)
		s.logger.Info("collector started", "name", spec.Name, "output", spec.OutputPath)
	}

	s.handles = started
	return nil
}

// rollback tears down the collectors a failed StartAll already launched, in
// reverse launch order.
func (s *Set) rollback(started []*Handle) {
	for i := len(started) - 1; i >= 0; i-- {
		h := started[i]
		if err := s.stopHandle(h); err != nil {
			s.logger.Warn("collector rollback failed", "name", h.Name, "error", err)
		}
	}
}

// StopAll signals every active collector, blocks until each confirms exit,
// and clears the handle set. Individual teardown failures are aggregated and
// returned rather than raised, so the caller can log them without the stop
// becoming fatal for the run.
func (s *Set) StopAll() []run.TeardownWarning {
	var warnings []run.TeardownWarning
	for _, h := range s.handles {
		if err := s.stopHandle(h); err != nil {
			warnings = append(warnings, run.TeardownWarning{
				Monitor: h.Name,
				Reason:  err.Error(),
			})
			s.logger.Warn("collector teardown failed", "name", h.Name, "error", err)
			continue
		}
		s.logger.Info("collector stopped", "name", h.Name)
	}
	s.handles = nil
	return warnings
}

// confirmAlive polls the process through the start grace period. A collector
// that dies inside the window never joins the set.
func (s *Set) confirmAlive(proc Process) bool {
	deadline := time.Now().Add(s.opts.StartGrace)
	for {
		if !proc.Alive() {
			return false
		}
		if !time.Now().Before(deadline) {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// stopHandle signals then waits: interrupt first so buffering collectors
// flush, block until confirmed dead so output files are complete before the
// controller proceeds.
func (s *Set) stopHandle(h *Handle) error {
	if !h.proc.Alive() {
		// Already exited; output is final.
		return nil
	}
	if err := h.proc.Signal(h.stopSignal); err != nil {
		return fmt.Errorf("signal: %w", err)
	}
	if err := h.proc.Wait(s.opts.StopTimeout); err != nil {
		return fmt.Errorf("confirm exit: %w", err)
	}
	return nil
}
