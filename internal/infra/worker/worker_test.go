// Package worker provides unit tests for the sentinel line protocol.
package worker

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtheof04/Ade-Scripts/internal/domain/run"
	"github.com/mtheof04/Ade-Scripts/internal/domain/workload"
)

// TestLineStream_ReadsUntilSentinel tests that the stream yields result lines
// and terminates exactly at the sentinel.
func TestLineStream_ReadsUntilSentinel(t *testing.T) {
	input := "row one\nrow two\n" + workload.SentinelStatement + " echoed\nafter sentinel\n"
	var sink strings.Builder

	s := NewLineStream(strings.NewReader(input), &sink)

	var lines []string
	for s.Scan() {
		lines = append(lines, s.Text())
	}

	require.NoError(t, s.Err())
	assert.Equal(t, []string{"row one", "row two"}, lines)

	// The sentinel line is teed to the sink but lines after it are not read.
	assert.Contains(t, sink.String(), workload.SentinelTag)
	assert.NotContains(t, sink.String(), "after sentinel")
}

// TestLineStream_DecoratedSentinel tests sentinel detection inside client
// table borders.
func TestLineStream_DecoratedSentinel(t *testing.T) {
	input := "+--------+\n| result |\n+--------+\n| " + workload.SentinelTag + " |\n"

	s := NewLineStream(strings.NewReader(input), io.Discard)
	n, err := s.Drain()

	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

// TestLineStream_EarlyClose tests that a channel closing before the sentinel
// surfaces a communication error.
func TestLineStream_EarlyClose(t *testing.T) {
	input := "partial result\n"

	s := NewLineStream(strings.NewReader(input), io.Discard)
	n, err := s.Drain()

	assert.Equal(t, 1, n)
	require.Error(t, err)
	assert.True(t, errors.Is(err, run.ErrCommunication),
		"early close should be a communication error, got %v", err)

	var commErr *run.CommunicationError
	require.ErrorAs(t, err, &commErr)
	assert.Equal(t, "read", commErr.Op)
}

// TestLineStream_ReadError tests that a failing reader surfaces a
// communication error.
func TestLineStream_ReadError(t *testing.T) {
	s := NewLineStream(&failingReader{}, io.Discard)

	assert.False(t, s.Scan())
	assert.True(t, errors.Is(s.Err(), run.ErrCommunication))
}

// TestLineStream_ScanAfterFinish tests that a finished stream stays finished.
func TestLineStream_ScanAfterFinish(t *testing.T) {
	s := NewLineStream(strings.NewReader(workload.SentinelTag+"\n"), io.Discard)

	assert.False(t, s.Scan())
	require.NoError(t, s.Err())
	assert.False(t, s.Scan())
	require.NoError(t, s.Err())
}

// TestLineStream_EmptyOutput tests a workload that produces only the
// sentinel.
func TestLineStream_EmptyOutput(t *testing.T) {
	s := NewLineStream(strings.NewReader(workload.SentinelStatement+"\n"), io.Discard)
	n, err := s.Drain()

	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

type failingReader struct{}

func (r *failingReader) Read([]byte) (int, error) {
	return 0, errors.New("connection reset")
}
