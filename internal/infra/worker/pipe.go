package worker

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/mtheof04/Ade-Scripts/internal/domain/run"
	"github.com/mtheof04/Ade-Scripts/internal/domain/workload"
)

// PipeConfig configures a console-client worker.
type PipeConfig struct {
	// ClientPath is the engine's console client binary, resolved via PATH
	// when not absolute.
	ClientPath string

	// Args are passed to the client before the database identifier.
	Args []string

	// Database is the identifier of the database the client attaches to.
	Database string

	// ResultLog receives every output line as it is read. Required.
	ResultLog io.Writer

	// HandshakeTimeout bounds the startup probe roundtrip. The probe is what
	// turns "database does not exist" into a startup failure instead of a
	// hang. Defaults to 30s.
	HandshakeTimeout time.Duration

	// ShutdownTimeout bounds the graceful exit wait before the client is
	// killed. Defaults to 10s.
	ShutdownTimeout time.Duration
}

func (c *PipeConfig) withDefaults() PipeConfig {
	out := *c
	if out.HandshakeTimeout <= 0 {
		out.HandshakeTimeout = 30 * time.Second
	}
	if out.ShutdownTimeout <= 0 {
		out.ShutdownTimeout = 10 * time.Second
	}
	return out
}

// PipeWorker drives an engine console client over its stdin/stdout pipes.
type PipeWorker struct {
	cfg    PipeConfig
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	logger *slog.Logger

	// sc is the single scanner over stdout; every line stream for this
	// worker reads through it so no buffered bytes are lost between streams.
	sc *bufio.Scanner

	shutdownOnce sync.Once
	shutdownErr  error
}

// StartPipe launches the console client attached to the named database and
// probes it with one sentinel roundtrip. Launch or probe failure yields a
// StartupError; nothing has been measured at that point.
func StartPipe(cfg PipeConfig, logger *slog.Logger) (*PipeWorker, error) {
	cfg = cfg.withDefaults()

	if cfg.ClientPath == "" {
		return nil, run.NewStartupError("worker", fmt.Errorf("client path is required"))
	}
	if cfg.Database == "" {
		return nil, run.NewStartupError("worker", fmt.Errorf("database identifier is required"))
	}

	path, err := exec.LookPath(cfg.ClientPath)
	if err != nil {
		return nil, run.NewStartupError("worker", fmt.Errorf("locate client %s: %w", cfg.ClientPath, err))
	}

	args := append(append([]string{}, cfg.Args...), cfg.Database)
	cmd := exec.Command(path, args...)
	cmd.Stderr = cfg.ResultLog

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, run.NewStartupError("worker", fmt.Errorf("open input channel: %w", err))
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, run.NewStartupError("worker", fmt.Errorf("open output channel: %w", err))
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		return nil, run.NewStartupError("worker", fmt.Errorf("launch client: %w", err))
	}

	w := &PipeWorker{
		cfg:    cfg,
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
		logger: logger.With(slog.String("worker", "pipe"), slog.String("database", cfg.Database)),
		sc:     newLineScanner(stdout),
	}

	if err := w.handshake(); err != nil {
		w.Shutdown()
		return nil, run.NewStartupError("worker", err)
	}

	w.logger.Info("worker started", "client", path, "pid", cmd.Process.Pid)
	return w, nil
}

// PID returns the pid of the console client process, for collectors that
// attach to it.
func (w *PipeWorker) PID() int {
	return w.cmd.Process.Pid
}

// handshake sends a bare sentinel statement and waits for it to come back,
// proving the client attached to a live database.
func (w *PipeWorker) handshake() error {
	if _, err := fmt.Fprintln(w.stdin, workload.SentinelStatement); err != nil {
		return fmt.Errorf("probe write: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		stream := newLineStream(w.sc, w.cfg.ResultLog)
		_, err := stream.Drain()
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("probe: %w", err)
		}
		return nil
	case <-time.After(w.cfg.HandshakeTimeout):
		return fmt.Errorf("probe: no sentinel within %s", w.cfg.HandshakeTimeout)
	}
}

// Send writes the workload text followed by the sentinel statement to the
// input channel.
func (w *PipeWorker) Send(wl workload.Workload) error {
	if err := wl.Validate(); err != nil {
		return run.NewCommunicationError("send", err)
	}
	if _, err := fmt.Fprintln(w.stdin, wl.SQL); err != nil {
		return run.NewCommunicationError("send", err)
	}
	if _, err := fmt.Fprintln(w.stdin, workload.SentinelStatement); err != nil {
		return run.NewCommunicationError("send", err)
	}
	return nil
}

// ReadUntilSentinel returns the output line stream for the last submission.
func (w *PipeWorker) ReadUntilSentinel() (*LineStream, error) {
	return newLineStream(w.sc, w.cfg.ResultLog), nil
}

// Shutdown closes the input channel, waits for the client to exit, and kills
// it if the graceful window elapses. Idempotent.
func (w *PipeWorker) Shutdown() error {
	w.shutdownOnce.Do(func() {
		w.stdin.Close()

		done := make(chan error, 1)
		go func() { done <- w.cmd.Wait() }()

		select {
		case err := <-done:
			w.shutdownErr = ignoreExitError(err)
		case <-time.After(w.cfg.ShutdownTimeout):
			w.logger.Warn("worker did not exit in time, terminating",
				"timeout", w.cfg.ShutdownTimeout)
			w.cmd.Process.Signal(syscall.SIGTERM)
			select {
			case err := <-done:
				w.shutdownErr = ignoreExitError(err)
			case <-time.After(w.cfg.ShutdownTimeout):
				w.cmd.Process.Kill()
				w.shutdownErr = ignoreExitError(<-done)
			}
		}

		w.stdout.Close()
		w.logger.Info("worker shut down")
	})
	return w.shutdownErr
}

// ignoreExitError drops nonzero-exit errors: a client that exits unhappily
// after its input channel closed is already shut down for our purposes.
func ignoreExitError(err error) error {
	if _, ok := err.(*exec.ExitError); ok {
		return nil
	}
	return err
}
