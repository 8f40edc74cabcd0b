package run

import (
	"errors"
	"fmt"
)

var (
	// ErrStartup is the class of errors raised when the worker or a monitor
	// fails to launch. Always fatal; nothing has been measured yet.
	ErrStartup = errors.New("startup failed")

	// ErrCommunication is the class of errors raised when the worker's output
	// channel closes before the sentinel is observed. Fatal for the current
	// run and never retried automatically.
	ErrCommunication = errors.New("worker communication failed")
)

// StartupError reports that a component failed to launch. Runs abort on
// startup errors before any measurement is recorded.
type StartupError struct {
	Component string
	Err       error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("start %s: %v", e.Component, e.Err)
}

func (e *StartupError) Unwrap() error { return ErrStartup }

// NewStartupError wraps err as a StartupError for the named component.
func NewStartupError(component string, err error) *StartupError {
	return &StartupError{Component: component, Err: err}
}

// CommunicationError reports that the worker channel broke mid-protocol: the
// sentinel was never observed, or the channel closed early.
type CommunicationError struct {
	Op  string
	Err error
}

func (e *CommunicationError) Error() string {
	return fmt.Sprintf("worker %s: %v", e.Op, e.Err)
}

func (e *CommunicationError) Unwrap() error { return ErrCommunication }

// NewCommunicationError wraps err as a CommunicationError for the named
// protocol operation.
func NewCommunicationError(op string, err error) *CommunicationError {
	return &CommunicationError{Op: op, Err: err}
}
