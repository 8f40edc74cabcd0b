package monitor

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// ExecLauncher launches collectors as OS processes with their stdout and
// stderr redirected to Spec.OutputPath.
type ExecLauncher struct{}

// NewExecLauncher creates the production launcher.
func NewExecLauncher() *ExecLauncher {
	return &ExecLauncher{}
}

// Launch starts the collector process.
func (l *ExecLauncher) Launch(spec Spec) (Process, error) {
	path, err := exec.LookPath(spec.Command)
	if err != nil {
		return nil, fmt.Errorf("locate %s: %w", spec.Command, err)
	}

	out, err := os.Create(spec.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("create output %s: %w", spec.OutputPath, err)
	}

	cmd := exec.Command(path, spec.Args...)
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Start(); err != nil {
		out.Close()
		return nil, fmt.Errorf("launch %s: %w", spec.Command, err)
	}

	p := &execProcess{cmd: cmd, out: out, done: make(chan struct{})}
	go p.reap()
	return p, nil
}

type execProcess struct {
	cmd  *exec.Cmd
	out  *os.File
	done chan struct{}

	mu      sync.Mutex
	exited  bool
	waitErr error
}

func (p *execProcess) reap() {
	err := p.cmd.Wait()
	p.out.Close()

	p.mu.Lock()
	p.exited = true
	p.waitErr = err
	p.mu.Unlock()
	close(p.done)
}

func (p *execProcess) Alive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.exited
}

func (p *execProcess) Signal(sig syscall.Signal) error {
	p.mu.Lock()
	exited := p.exited
	p.mu.Unlock()
	if exited {
		return nil
	}
	return p.cmd.Process.Signal(sig)
}

func (p *execProcess) Wait(timeout time.Duration) error {
	select {
	case <-p.done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("process did not exit within %s", timeout)
	}
}
