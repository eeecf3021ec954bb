package driver

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// NativeDriver runs a command directly via fork/exec, without a shell.
// Each NativeDriver runs its command once.
type NativeDriver struct {
	command    string
	args       []string
	env        []string
	workingDir string
	stdin      io.Reader
	stderr     io.Writer

	mu        sync.Mutex
	cmd       *exec.Cmd
	state     State
	startedAt time.Time
	status    ExitStatus
	waitErr   error
	exitErr   string
	done      chan struct{}
	reapOnce  sync.Once
}

// NativeConfig holds configuration for a native process.
type NativeConfig struct {
	// Command is the executable; it is also the child's argv[0].
	Command string
	// Args are passed to the child verbatim.
	Args       []string
	Env        []string // nil inherits the current environment
	WorkingDir string
	Stdin      io.Reader // nil inherits os.Stdin
	Stderr     io.Writer // nil inherits os.Stderr
}

// NewNative creates a new native process driver.
func NewNative(cfg NativeConfig) *NativeDriver {
	stdin := cfg.Stdin
	if stdin == nil {
		stdin = os.Stdin
	}
	stderr := cfg.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	return &NativeDriver{
		command:    cfg.Command,
		args:       cfg.Args,
		env:        cfg.Env,
		workingDir: cfg.WorkingDir,
		stdin:      stdin,
		stderr:     stderr,
		state:      StateStopped,
	}
}

func (d *NativeDriver) Start(ctx context.Context) (io.Reader, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cmd != nil {
		return nil, fmt.Errorf("process already started")
	}

	d.cmd = exec.CommandContext(ctx, d.command, d.args...)
	d.cmd.Env = d.env
	if d.workingDir != "" {
		d.cmd.Dir = d.workingDir
	}
	d.cmd.Stdin = d.stdin
	d.cmd.Stderr = d.stderr

	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		d.state = StateFailed
		d.exitErr = err.Error()
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}

	d.state = StateStarting

	if err := d.cmd.Start(); err != nil {
		d.state = StateFailed
		d.exitErr = err.Error()
		return nil, fmt.Errorf("%w: %s: %w", ErrLaunch, d.command, err)
	}

	d.state = StateRunning
	d.startedAt = time.Now()
	d.done = make(chan struct{})

	return stdout, nil
}

// reap waits for the process exactly once and records how it ended.
func (d *NativeDriver) reap() {
	d.reapOnce.Do(func() {
		err := d.cmd.Wait()

		d.mu.Lock()
		defer d.mu.Unlock()

		stopping := d.state == StateStopping

		if ps := d.cmd.ProcessState; ps != nil {
			if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
				d.status = ExitStatus{Code: -1, Signaled: true, Signal: ws.Signal()}
			} else {
				d.status = ExitStatus{Code: ps.ExitCode()}
			}
			if _, isExit := err.(*exec.ExitError); isExit {
				err = nil
			}
		}
		switch {
		case err != nil:
			d.waitErr = err
			d.exitErr = err.Error()
			d.state = StateFailed
		case stopping:
			// Expected shutdown
			d.state = StateStopped
		case !d.status.Exited():
			d.exitErr = d.status.String()
			d.state = StateFailed
		default:
			d.state = StateExited
		}

		close(d.done)
	})
}

func (d *NativeDriver) Wait() (ExitStatus, error) {
	d.mu.Lock()
	done := d.done
	d.mu.Unlock()

	if done == nil {
		return ExitStatus{Code: -1}, fmt.Errorf("process not started")
	}
	d.reap()

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.waitErr != nil {
		return d.status, fmt.Errorf("waiting for %s: %w", d.command, d.waitErr)
	}
	if !d.status.Exited() {
		return d.status, fmt.Errorf("%s: %w (%s)", d.command, ErrAbnormalExit, d.status)
	}
	return d.status, nil
}

func (d *NativeDriver) Stop(ctx context.Context, timeout time.Duration) error {
	d.mu.Lock()

	if d.state != StateRunning {
		d.mu.Unlock()
		return nil
	}

	d.state = StateStopping
	proc := d.cmd.Process
	done := d.done
	d.mu.Unlock()

	_ = proc.Signal(unix.SIGTERM)

	// Nothing else will drain the pipe on this path, so reap here.
	go d.reap()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		_ = proc.Signal(unix.SIGKILL)
		<-done
		return nil
	case <-ctx.Done():
		_ = proc.Signal(unix.SIGKILL)
		<-done
		return ctx.Err()
	}
}

func (d *NativeDriver) Info() ProcessInfo {
	d.mu.Lock()
	defer d.mu.Unlock()

	info := ProcessInfo{
		State:     d.state,
		StartedAt: d.startedAt,
		ExitCode:  d.status.Code,
		Error:     d.exitErr,
	}

	if d.cmd != nil && d.cmd.Process != nil {
		info.PID = d.cmd.Process.Pid
	}

	return info
}
