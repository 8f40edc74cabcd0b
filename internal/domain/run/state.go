package run

// State represents the lifecycle state of a benchmark run.
type State string

const (
	StatePending   State = "pending"    // Created, waiting to execute
	StateLoading   State = "loading"    // Loading data into the engine
	StateWarmingUp State = "warming_up" // Executing unmeasured warm-up repetitions
	StateRunning   State = "running"    // Measured iterations in progress
	StateCompleted State = "completed"  // Completed with a full outcome
	StateFailed    State = "failed"     // Aborted by a fatal error
	StateCancelled State = "cancelled"  // Interrupted by the operator
)

// IsValid checks if the state is a known state.
func (s State) IsValid() bool {
	switch s {
	case StatePending, StateLoading, StateWarmingUp, StateRunning,
		StateCompleted, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transitions are possible.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// CanTransitionTo reports whether a transition to target is valid.
func (s State) CanTransitionTo(target State) bool {
	transitions := map[State][]State{
		StatePending:   {StateLoading, StateWarmingUp, StateRunning, StateFailed, StateCancelled},
		StateLoading:   {StateWarmingUp, StateRunning, StateFailed, StateCancelled},
		StateWarmingUp: {StateRunning, StateFailed, StateCancelled},
		StateRunning:   {StateCompleted, StateFailed, StateCancelled},
	}

	for _, allowed := range transitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

func (s State) String() string {
	return string(s)
}
