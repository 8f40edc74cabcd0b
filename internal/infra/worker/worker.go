// Package worker provides the worker process handle: ownership of the
// long-lived database engine client and the two unidirectional channels used
// to submit workload text and receive result text. Two implementations exist,
// one over a console client's stdin/stdout pipes and one over a database/sql
// driver connection. Both speak the same sentinel-terminated line protocol.
package worker

import (
	"bufio"
	"fmt"
	"io"

	"github.com/mtheof04/Ade-Scripts/internal/domain/run"
	"github.com/mtheof04/Ade-Scripts/internal/domain/workload"
)

// Worker is the handle the run controller drives. The protocol has no
// request multiplexing, so a worker must have exactly one owner: Send and
// ReadUntilSentinel calls must not interleave across goroutines.
type Worker interface {
	// Send submits the workload text followed by the sentinel-producing
	// statement, giving the receiver a deterministic boundary marker.
	Send(w workload.Workload) error

	// ReadUntilSentinel returns the stream of output lines for the last
	// submitted workload. The stream terminates exactly when the sentinel
	// line is observed and tees every line to the worker's result log as it
	// is read, keeping memory bounded for large result sets.
	ReadUntilSentinel() (*LineStream, error)

	// Shutdown requests termination, waits for exit, and releases both
	// channels. Safe to call multiple times.
	Shutdown() error
}

// LineStream is a lazy, finite sequence of output lines terminated by the
// sentinel. Usage mirrors bufio.Scanner: Scan until false, then check Err.
type LineStream struct {
	sc   *bufio.Scanner
	sink io.Writer

	line     string
	finished bool
	err      error
}

// NewLineStream builds a line stream over r, teeing every line read
// (sentinel included) to sink.
func NewLineStream(r io.Reader, sink io.Writer) *LineStream {
	return newLineStream(newLineScanner(r), sink)
}

// newLineScanner builds the scanner a line stream reads through. A worker
// that serves multiple streams over one output channel must hold a single
// scanner for its lifetime: a scanner may buffer bytes past the sentinel,
// and a fresh scanner per stream would lose them.
func newLineScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return sc
}

func newLineStream(sc *bufio.Scanner, sink io.Writer) *LineStream {
	return &LineStream{sc: sc, sink: sink}
}

// Scan advances to the next output line, returning false at the sentinel or
// on channel failure.
func (s *LineStream) Scan() bool {
	if s.finished || s.err != nil {
		return false
	}

	if !s.sc.Scan() {
		err := s.sc.Err()
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		s.err = run.NewCommunicationError("read",
			fmt.Errorf("output channel closed before sentinel: %w", err))
		return false
	}

	line := s.sc.Text()
	if s.sink != nil {
		fmt.Fprintln(s.sink, line)
	}

	if workload.IsSentinelLine(line) {
		s.finished = true
		return false
	}

	s.line = line
	return true
}

// Text returns the current line.
func (s *LineStream) Text() string {
	return s.line
}

// Err returns nil once the sentinel has been observed, or the
// CommunicationError that terminated the stream early.
func (s *LineStream) Err() error {
	return s.err
}

// Drain consumes the remaining lines and returns how many were read along
// with the stream's terminal error state.
func (s *LineStream) Drain() (int, error) {
	n := 0
	for s.Scan() {
		n++
	}
	return n, s.Err()
}
