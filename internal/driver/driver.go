package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"syscall"
	"time"
)

var (
	// ErrLaunch is returned by Start when the command cannot be located or executed.
	ErrLaunch = errors.New("launch failed")
	// ErrAbnormalExit is returned by Wait when the process did not exit normally,
	// for example because it was killed by a signal.
	ErrAbnormalExit = errors.New("process did not exit normally")
)

// State represents the lifecycle state of a child process.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateExited   State = "exited"
	StateFailed   State = "failed"
)

// ProcessInfo holds runtime information about a child process.
type ProcessInfo struct {
	PID       int
	State     State
	StartedAt time.Time
	ExitCode  int
	Error     string
}

// ExitStatus describes how a child terminated.
type ExitStatus struct {
	// Code is the exit code (0-255) of a normal exit, or -1.
	Code int
	// Signaled is set when the process was terminated by a signal.
	Signaled bool
	Signal   syscall.Signal
}

// Exited reports whether the process terminated through a normal exit.
func (s ExitStatus) Exited() bool {
	return !s.Signaled && s.Code >= 0
}

func (s ExitStatus) String() string {
	if s.Signaled {
		return fmt.Sprintf("signal %s", s.Signal)
	}
	return fmt.Sprintf("exit %d", s.Code)
}

// Driver runs one child process per Start.
type Driver interface {
	// Start launches the process and returns its standard output. The
	// caller must read the returned stream to EOF before calling Wait.
	Start(ctx context.Context) (io.Reader, error)

	// Wait blocks until the process exits and returns its exit status.
	Wait() (ExitStatus, error)

	// Stop sends a graceful shutdown signal, waits up to timeout,
	// then force-kills if still running.
	Stop(ctx context.Context, timeout time.Duration) error

	// Info returns current process state and metadata.
	Info() ProcessInfo
}
