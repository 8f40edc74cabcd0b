// Package monitor provides unit tests for the monitor set lifecycle.
package monitor

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtheof04/Ade-Scripts/internal/domain/run"
)

// fakeProcess is a controllable Process for tests.
type fakeProcess struct {
	alive      bool
	signalErr  error
	waitErr    error
	signals    []syscall.Signal
	waitCalled bool
}

func (p *fakeProcess) Alive() bool { return p.alive }

func (p *fakeProcess) Signal(sig syscall.Signal) error {
	p.signals = append(p.signals, sig)
	if p.signalErr != nil {
		return p.signalErr
	}
	p.alive = false
	return nil
}

func (p *fakeProcess) Wait(timeout time.Duration) error {
	p.waitCalled = true
	return p.waitErr
}

// fakeLauncher records launches and hands out scripted processes.
type fakeLauncher struct {
	procs     map[string]*fakeProcess
	launchErr map[string]error
	launched  []string
}

func newFakeLauncher() *fakeLauncher {
	return &fakeLauncher{
		procs:     make(map[string]*fakeProcess),
		launchErr: make(map[string]error),
	}
}

func (l *fakeLauncher) Launch(spec Spec) (Process, error) {
	l.launched = append(l.launched, spec.Name)
	if err := l.launchErr[spec.Name]; err != nil {
		return nil, err
	}
	proc, ok := l.procs[spec.Name]
	if !ok {
		proc = &fakeProcess{alive: true}
		l.procs[spec.Name] = proc
	}
	return proc, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSpec(name string, signal syscall.Signal) Spec {
	return Spec{
		Name:       name,
		Command:    name,
		Args:       []string{"-x"},
		OutputPath: "/tmp/" + name + ".txt",
		StopSignal: signal,
	}
}

func fastOptions() Options {
	return Options{StartGrace: time.Millisecond, StopTimeout: 50 * time.Millisecond}
}

// TestSpec_Validate tests collector spec validation.
func TestSpec_Validate(t *testing.T) {
	valid := testSpec("iostat", syscall.SIGTERM)
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Spec)
	}{
		{"missing name", func(s *Spec) { s.Name = "" }},
		{"missing command", func(s *Spec) { s.Command = "" }},
		{"missing output path", func(s *Spec) { s.OutputPath = "" }},
		{"missing stop signal", func(s *Spec) { s.StopSignal = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := testSpec("iostat", syscall.SIGTERM)
			tt.mutate(&spec)
			assert.Error(t, spec.Validate())
		})
	}
}

// TestSet_StartAll tests starting a full collector group.
func TestSet_StartAll(t *testing.T) {
	launcher := newFakeLauncher()
	set := NewSet(launcher, testLogger(), fastOptions())

	specs := []Spec{
		testSpec("perf-stat", syscall.SIGINT),
		testSpec("iostat", syscall.SIGTERM),
	}
	require.NoError(t, set.StartAll(specs))

	assert.Equal(t, []string{"perf-stat", "iostat"}, launcher.launched)
	assert.Len(t, set.Active(), 2)
}

// TestSet_StartAll_RollsBackOnLaunchFailure tests that a launch failure tears
// down the collectors already started.
func TestSet_StartAll_RollsBackOnLaunchFailure(t *testing.T) {
	launcher := newFakeLauncher()
	launcher.launchErr["iostat"] = fmt.Errorf("binary not found")
	set := NewSet(launcher, testLogger(), fastOptions())

	err := set.StartAll([]Spec{
		testSpec("perf-stat", syscall.SIGINT),
		testSpec("iostat", syscall.SIGTERM),
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, run.ErrStartup))
	assert.Empty(t, set.Active())

	// The collector that did start received its stop signal during rollback.
	perf := launcher.procs["perf-stat"]
	require.NotNil(t, perf)
	assert.Equal(t, []syscall.Signal{syscall.SIGINT}, perf.signals)
}

// TestSet_StartAll_RollsBackOnEarlyExit tests that a collector dying inside
// the start grace period fails the whole start.
func TestSet_StartAll_RollsBackOnEarlyExit(t *testing.T) {
	launcher := newFakeLauncher()
	launcher.procs["pcm-memory"] = &fakeProcess{alive: false}
	set := NewSet(launcher, testLogger(), fastOptions())

	err := set.StartAll([]Spec{
		testSpec("perf-stat", syscall.SIGINT),
		testSpec("pcm-memory", syscall.SIGINT),
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, run.ErrStartup))
	assert.Empty(t, set.Active())
}

// TestSet_StartAll_RejectsInvalidSpec tests spec validation at start.
func TestSet_StartAll_RejectsInvalidSpec(t *testing.T) {
	set := NewSet(newFakeLauncher(), testLogger(), fastOptions())

	err := set.StartAll([]Spec{{Name: "bad"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, run.ErrStartup))
}

// TestSet_StartAll_RejectsDoubleStart tests that a started set cannot start
// again before StopAll.
func TestSet_StartAll_RejectsDoubleStart(t *testing.T) {
	set := NewSet(newFakeLauncher(), testLogger(), fastOptions())
	require.NoError(t, set.StartAll([]Spec{testSpec("iostat", syscall.SIGTERM)}))

	err := set.StartAll([]Spec{testSpec("sar-cpu", syscall.SIGTERM)})
	require.Error(t, err)
}

// TestSet_StopAll tests that stop delivers each collector's configured
// signal and clears the set.
func TestSet_StopAll(t *testing.T) {
	launcher := newFakeLauncher()
	set := NewSet(launcher, testLogger(), fastOptions())

	require.NoError(t, set.StartAll([]Spec{
		testSpec("perf-stat", syscall.SIGINT),
		testSpec("iostat", syscall.SIGTERM),
	}))

	warnings := set.StopAll()
	assert.Empty(t, warnings)
	assert.Empty(t, set.Active())

	assert.Equal(t, []syscall.Signal{syscall.SIGINT}, launcher.procs["perf-stat"].signals)
	assert.Equal(t, []syscall.Signal{syscall.SIGTERM}, launcher.procs["iostat"].signals)
	assert.True(t, launcher.procs["perf-stat"].waitCalled)
}

// TestSet_StopAll_AggregatesWarnings tests that teardown failures are
// returned as warnings, not raised, and do not block other collectors.
func TestSet_StopAll_AggregatesWarnings(t *testing.T) {
	launcher := newFakeLauncher()
	launcher.procs["perf-stat"] = &fakeProcess{alive: true, waitErr: fmt.Errorf("timeout")}
	launcher.procs["iostat"] = &fakeProcess{alive: true}
	set := NewSet(launcher, testLogger(), fastOptions())

	require.NoError(t, set.StartAll([]Spec{
		testSpec("perf-stat", syscall.SIGINT),
		testSpec("iostat", syscall.SIGTERM),
	}))

	warnings := set.StopAll()
	require.Len(t, warnings, 1)
	assert.Equal(t, "perf-stat", warnings[0].Monitor)
	assert.Contains(t, warnings[0].Reason, "confirm exit")

	// The healthy collector was still stopped.
	assert.Equal(t, []syscall.Signal{syscall.SIGTERM}, launcher.procs["iostat"].signals)
	assert.Empty(t, set.Active())
}

// TestSet_StopAll_SkipsDeadCollector tests that a collector that already
// exited is not signalled again.
func TestSet_StopAll_SkipsDeadCollector(t *testing.T) {
	launcher := newFakeLauncher()
	set := NewSet(launcher, testLogger(), fastOptions())

	require.NoError(t, set.StartAll([]Spec{testSpec("sar-cpu", syscall.SIGTERM)}))
	launcher.procs["sar-cpu"].alive = false

	warnings := set.StopAll()
	assert.Empty(t, warnings)
	assert.Empty(t, launcher.procs["sar-cpu"].signals)
}

// TestPhaseSpecs tests phase collector composition.
func TestPhaseSpecs(t *testing.T) {
	specs := PhaseSpecs(4242, "/out")
	require.Len(t, specs, 3)
	assert.Equal(t, "perf-stat", specs[0].Name)
	assert.Contains(t, specs[0].Args, "4242")
	assert.Equal(t, syscall.SIGINT, specs[0].StopSignal)
	assert.Equal(t, "/out/"+PerfStatFile, specs[0].OutputPath)

	// Without a local engine pid the process-level counters are omitted.
	specs = PhaseSpecs(0, "/out")
	require.Len(t, specs, 2)
	assert.Equal(t, "perf-system", specs[0].Name)
	assert.Equal(t, "pcm-memory", specs[1].Name)
}

// TestIterationSpecs tests iteration sampler composition.
func TestIterationSpecs(t *testing.T) {
	specs := IterationSpecs("/out/Iteration3")
	require.Len(t, specs, 2)
	assert.Equal(t, "iostat", specs[0].Name)
	assert.Equal(t, syscall.SIGTERM, specs[0].StopSignal)
	assert.Equal(t, "sar-cpu", specs[1].Name)
	assert.Equal(t, "/out/Iteration3/"+CPULoadFile, specs[1].OutputPath)
}

// TestIterationDir tests iteration artifact directory naming.
func TestIterationDir(t *testing.T) {
	assert.Equal(t, "/results/Iteration1", IterationDir("/results", 1))
	assert.Equal(t, "/results/Iteration12", IterationDir("/results", 12))
}
