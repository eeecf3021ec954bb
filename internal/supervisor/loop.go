// Package supervisor runs a command over and over, printing its output
// whenever it differs from the previous run.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/benaskins/detecter/internal/capture"
	"github.com/benaskins/detecter/internal/driver"
	"github.com/benaskins/detecter/internal/history"
	"github.com/benaskins/detecter/internal/timestamp"
)

// stopTimeout bounds how long a child gets to exit after SIGTERM when the
// loop abandons it on a fatal path.
const stopTimeout = 5 * time.Second

// Config describes what to run and how often. It does not change while the
// loop runs.
type Config struct {
	// Command is the argument vector of the child; Command[0] is the executable.
	Command []string
	// Interval is the pause between the end of one iteration and the start of the next.
	Interval time.Duration
	// Limit is the number of iterations to run; 0 runs forever.
	Limit int
	// TimeFormat, when set, is a strftime format printed before each capture.
	TimeFormat string
	// ReportExitCode prints "exit <code>" on the first iteration and whenever the code changes.
	ReportExitCode bool
	// Compare selects how consecutive captures are compared.
	Compare capture.Mode
}

// Iteration summarises one completed run of the child.
type Iteration struct {
	Number   int
	Changed  bool
	Bytes    int
	Chunks   int
	Status   driver.ExitStatus
	Duration time.Duration
}

// Option configures a Loop.
type Option func(*Loop)

// WithOutput sets where captures, timestamps and exit lines are written.
// The default is os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(l *Loop) { l.out = w }
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

// WithHistory records every iteration to h.
func WithHistory(h *history.Logger) Option {
	return func(l *Loop) { l.history = h }
}

// WithTrigger ends the pause between iterations early whenever c receives.
func WithTrigger(c <-chan struct{}) Option {
	return func(l *Loop) { l.trigger = c }
}

// Loop is the supervision loop. A Loop runs once; it is not safe for
// concurrent use.
type Loop struct {
	cfg     Config
	out     io.Writer
	logger  *slog.Logger
	history *history.Logger
	trigger <-chan struct{}
	stamp   *timestamp.Formatter

	newDriver func(argv []string) driver.Driver
	sleep     func(ctx context.Context) error
}

// New validates cfg and returns a loop ready to Run.
func New(cfg Config, opts ...Option) (*Loop, error) {
	if len(cfg.Command) == 0 || cfg.Command[0] == "" {
		return nil, fmt.Errorf("no command to run")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("interval must be greater than 0, got %v", cfg.Interval)
	}
	if cfg.Limit < 0 {
		return nil, fmt.Errorf("limit must be greater than or equal to 0, got %d", cfg.Limit)
	}
	if cfg.Compare == "" {
		cfg.Compare = capture.ModeChunks
	}

	l := &Loop{
		cfg:       cfg,
		out:       os.Stdout,
		logger:    slog.Default(),
		newDriver: nativeDriver,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("command", cfg.Command[0])
	l.sleep = l.wait

	if cfg.TimeFormat != "" {
		l.stamp = timestamp.New(cfg.TimeFormat)
	}
	return l, nil
}

func nativeDriver(argv []string) driver.Driver {
	return driver.NewNative(driver.NativeConfig{
		Command: argv[0],
		Args:    argv[1:],
	})
}

// phase is a step of one iteration.
type phase int

const (
	phaseTimestamp  phase = iota // Print the time, if configured
	phaseSpawning                // Start the child
	phaseCapturing               // Read the child's output to EOF
	phaseComparing               // Decide whether the output changed
	phaseEmitting                // Print the capture if it changed
	phaseExitCheck               // Reap the child and report its exit code
	phaseSleeping                // Pause before the next iteration
	phaseTerminated              // Terminal: the loop is done
)

// state is the loop's mutable state. Only the goroutine in Run touches it.
type state struct {
	remaining int // iterations left; 0 means unbounded
	first     bool
	lastCode  int

	iteration int
	started   time.Time
	drv       driver.Driver
	stdout    io.Reader
	prev      *capture.Buffer
	cur       *capture.Buffer
	changed   bool
}

// release frees every buffer the state still owns.
func (st *state) release() {
	if st.cur != nil {
		st.cur.Release()
		st.cur = nil
	}
	if st.prev != nil {
		st.prev.Release()
		st.prev = nil
	}
}

// Run executes iterations until the limit is reached, a fatal error occurs,
// or ctx is cancelled. It returns nil after a limited run completes and
// ctx.Err() after cancellation. Every buffer is released before Run returns.
func (l *Loop) Run(ctx context.Context) error {
	st := &state{
		remaining: l.cfg.Limit,
		first:     true,
	}
	defer st.release()

	l.logger.Info("watch starting",
		"args", l.cfg.Command[1:],
		"interval", l.cfg.Interval,
		"limit", l.cfg.Limit,
		"compare", l.cfg.Compare)

	p := phaseTimestamp
	for p != phaseTerminated {
		var err error
		switch p {
		case phaseTimestamp:
			p, err = l.handleTimestamp(ctx, st)
		case phaseSpawning:
			p, err = l.handleSpawning(ctx, st)
		case phaseCapturing:
			p, err = l.handleCapturing(ctx, st)
		case phaseComparing:
			p = l.handleComparing(st)
		case phaseEmitting:
			p, err = l.handleEmitting(st)
		case phaseExitCheck:
			p, err = l.handleExitCheck(ctx, st)
		case phaseSleeping:
			p, err = l.handleSleeping(ctx)
		}

		if err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				l.logger.Info("watch interrupted", "iteration", st.iteration)
				return err
			}
			l.logger.Error("watch stopped", "iteration", st.iteration, "error", err)
			l.record(history.Entry{
				Action:    history.ActionFatal,
				Iteration: st.iteration,
				Command:   l.commandLine(),
				Error:     err.Error(),
			})
			return err
		}
	}

	l.logger.Info("watch finished", "iterations", st.iteration)
	return nil
}

func (l *Loop) handleTimestamp(ctx context.Context, st *state) (phase, error) {
	if err := ctx.Err(); err != nil {
		return phaseTerminated, err
	}

	st.iteration++
	st.started = time.Now()

	if l.stamp == nil {
		return phaseSpawning, nil
	}

	line, err := l.stamp.Line()
	if err != nil {
		return phaseTerminated, err
	}
	if _, err := io.WriteString(l.out, line); err != nil {
		return phaseTerminated, fmt.Errorf("writing timestamp: %w", err)
	}
	return phaseSpawning, nil
}

func (l *Loop) handleSpawning(ctx context.Context, st *state) (phase, error) {
	st.drv = l.newDriver(l.cfg.Command)

	stdout, err := st.drv.Start(ctx)
	if err != nil {
		return phaseTerminated, err
	}
	st.stdout = stdout

	l.logger.Debug("child started", "iteration", st.iteration, "pid", st.drv.Info().PID)
	return phaseCapturing, nil
}

func (l *Loop) handleCapturing(ctx context.Context, st *state) (phase, error) {
	st.cur = capture.New()

	if _, err := st.cur.ReadFrom(st.stdout); err != nil {
		l.abandon(st)
		return phaseTerminated, fmt.Errorf("reading output: %w", err)
	}
	// A cancelled context kills the child, so the capture may be cut short.
	if err := ctx.Err(); err != nil {
		l.abandon(st)
		return phaseTerminated, err
	}
	return phaseComparing, nil
}

func (l *Loop) handleComparing(st *state) phase {
	// The first capture has nothing to compare against and always counts.
	st.changed = st.first || !l.cfg.Compare.Equal(st.prev, st.cur)
	return phaseEmitting
}

func (l *Loop) handleEmitting(st *state) (phase, error) {
	if st.changed {
		if _, err := st.cur.WriteTo(l.out); err != nil {
			l.abandon(st)
			return phaseTerminated, fmt.Errorf("writing output: %w", err)
		}
	}

	if st.prev != nil {
		st.prev.Release()
	}
	st.prev, st.cur = st.cur, nil
	return phaseExitCheck, nil
}

func (l *Loop) handleExitCheck(ctx context.Context, st *state) (phase, error) {
	status, err := st.drv.Wait()
	st.drv, st.stdout = nil, nil
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return phaseTerminated, ctxErr
		}
		return phaseTerminated, err
	}

	if l.cfg.ReportExitCode && (st.first || status.Code != st.lastCode) {
		if _, err := fmt.Fprintf(l.out, "exit %d\n", status.Code); err != nil {
			return phaseTerminated, fmt.Errorf("writing exit code: %w", err)
		}
		st.lastCode = status.Code
	}

	it := Iteration{
		Number:   st.iteration,
		Changed:  st.changed,
		Bytes:    st.prev.Len(),
		Chunks:   st.prev.Chunks(),
		Status:   status,
		Duration: time.Since(st.started),
	}
	l.logger.Debug("iteration complete",
		"iteration", it.Number,
		"changed", it.Changed,
		"bytes", it.Bytes,
		"exit_code", it.Status.Code,
		"duration", it.Duration)
	l.recordIteration(it)

	st.first = false

	if st.remaining == 1 {
		return phaseTerminated, nil
	}
	if st.remaining > 0 {
		st.remaining--
	}
	return phaseSleeping, nil
}

func (l *Loop) handleSleeping(ctx context.Context) (phase, error) {
	if err := l.sleep(ctx); err != nil {
		return phaseTerminated, err
	}
	return phaseTimestamp, nil
}

// wait pauses for the configured interval. It returns early, without error,
// when the trigger fires.
func (l *Loop) wait(ctx context.Context) error {
	timer := time.NewTimer(l.cfg.Interval)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-l.trigger:
		l.logger.Debug("pause ended early by change trigger")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// abandon stops and reaps a child whose output will not be used.
func (l *Loop) abandon(st *state) {
	if st.drv == nil {
		return
	}
	if err := st.drv.Stop(context.Background(), stopTimeout); err != nil {
		l.logger.Warn("error stopping child", "error", err)
	}
	st.drv.Wait()
	st.drv, st.stdout = nil, nil
}

func (l *Loop) recordIteration(it Iteration) {
	code := it.Status.Code
	l.record(history.Entry{
		Action:    history.ActionIteration,
		Iteration: it.Number,
		Command:   l.commandLine(),
		Changed:   it.Changed,
		Bytes:     it.Bytes,
		Chunks:    it.Chunks,
		ExitCode:  &code,
		Duration:  it.Duration.String(),
	})
}

func (l *Loop) record(entry history.Entry) {
	if l.history == nil {
		return
	}
	if err := l.history.Log(entry); err != nil {
		l.logger.Warn("failed to record history", "error", err)
	}
}

func (l *Loop) commandLine() string {
	return strings.Join(l.cfg.Command, " ")
}
