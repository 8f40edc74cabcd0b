// Package run provides the benchmark run domain model: the configuration of a
// measured run, the per-iteration results it produces, and the lifecycle state
// of a run record.
package run

import (
	"encoding/json"
	"fmt"
	"time"
)

// Config holds the termination parameters of one benchmark invocation.
// It is immutable for the duration of the run.
type Config struct {
	// TargetCumulative is the cumulative measured time after which the
	// iteration loop stops, provided MinIterations has been reached.
	TargetCumulative time.Duration `json:"target_cumulative"`

	// MinIterations is the minimum number of measured iterations. A workload
	// whose single execution already exceeds TargetCumulative still yields
	// this many data points for variance estimation.
	MinIterations int `json:"min_iterations"`

	// WarmupCount is the number of unmeasured warm-up repetitions executed
	// before the monitored phase.
	WarmupCount int `json:"warmup_count"`
}

// Validate validates the run configuration.
func (c Config) Validate() error {
	if c.TargetCumulative < 0 {
		return fmt.Errorf("target cumulative time must not be negative, got %s", c.TargetCumulative)
	}
	if c.MinIterations < 0 {
		return fmt.Errorf("min iterations must not be negative, got %d", c.MinIterations)
	}
	if c.WarmupCount < 0 {
		return fmt.Errorf("warmup count must not be negative, got %d", c.WarmupCount)
	}
	if c.TargetCumulative == 0 && c.MinIterations == 0 {
		return fmt.Errorf("either target cumulative time or min iterations must be set")
	}
	return nil
}

// IterationResult records one completed measured iteration. Results are
// appended in order and never mutated after creation.
type IterationResult struct {
	Index       int           `json:"index"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
	Duration    time.Duration `json:"duration"`
}

// TeardownWarning records a collector that did not confirm stop within the
// bounded wait. Warnings are surfaced on the outcome, never raised.
type TeardownWarning struct {
	Monitor string `json:"monitor"`
	Reason  string `json:"reason"`
}

func (w TeardownWarning) String() string {
	return fmt.Sprintf("monitor %s: %s", w.Monitor, w.Reason)
}

// Outcome is the complete result of one benchmark invocation. It is owned by
// the invocation that produced it and immutable once returned.
type Outcome struct {
	Iterations []IterationResult `json:"iterations"`
	Cumulative time.Duration     `json:"cumulative"`
	TotalWall  time.Duration     `json:"total_wall"`

	// Warnings holds non-fatal monitor teardown failures observed while the
	// iterations above were being recorded.
	Warnings []TeardownWarning `json:"warnings,omitempty"`
}

// CumulativeSeconds returns the cumulative measured time in seconds, the unit
// the analysis tooling works in.
func (o *Outcome) CumulativeSeconds() float64 {
	return o.Cumulative.Seconds()
}

// Record is the persisted state of a benchmark run.
type Record struct {
	ID        string `json:"id"`
	Engine    string `json:"engine"`
	Workload  string `json:"workload"`
	Config    Config `json:"config"`
	State     State  `json:"state"`
	OutputDir string `json:"output_dir,omitempty"`

	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Duration    *time.Duration `json:"duration,omitempty"`

	Outcome      *Outcome `json:"outcome,omitempty"`
	ErrorMessage string   `json:"error_message,omitempty"`
}

// IsCompleted reports whether the run is in a terminal state.
func (r *Record) IsCompleted() bool {
	return r.State.IsTerminal()
}

// SetState transitions the run to newState, rejecting invalid transitions.
func (r *Record) SetState(newState State) error {
	if !r.State.CanTransitionTo(newState) {
		return &InvalidStateTransitionError{From: r.State, To: newState}
	}
	r.State = newState
	return nil
}

// CalculateDuration derives Duration from the started/completed timestamps.
func (r *Record) CalculateDuration() {
	if r.StartedAt != nil && r.CompletedAt != nil {
		d := r.CompletedAt.Sub(*r.StartedAt)
		r.Duration = &d
	}
}

// ToJSON serializes the run record.
func (r *Record) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

// InvalidStateTransitionError reports a rejected state transition.
type InvalidStateTransitionError struct {
	From State
	To   State
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition: %s -> %s", e.From, e.To)
}
