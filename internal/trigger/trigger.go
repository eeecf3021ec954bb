// Package trigger wakes the watch loop early when files change.
package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"
)

const defaultDebounce = 250 * time.Millisecond

// Watcher signals on C when any watched path changes. Bursts of events are
// debounced into one signal, and signals are rate-limited to one per minGap.
type Watcher struct {
	paths    []string
	debounce time.Duration
	limiter  *rate.Limiter
	logger   *slog.Logger
	c        chan struct{}
}

// New creates a watcher over paths. minGap bounds how often C can fire; a
// non-positive minGap disables the limit.
func New(paths []string, minGap time.Duration, logger *slog.Logger) *Watcher {
	limit := rate.Inf
	if minGap > 0 {
		limit = rate.Every(minGap)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		paths:    paths,
		debounce: defaultDebounce,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   logger,
		c:        make(chan struct{}, 1),
	}
}

// C returns the channel that receives change signals. Pending signals are
// coalesced, so a slow reader sees at most one.
func (w *Watcher) C() <-chan struct{} {
	return w.c
}

// Start registers all paths and watches them in the background until ctx
// is cancelled. Registration errors are returned before anything runs.
func (w *Watcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}

	for _, p := range w.paths {
		if err := watcher.Add(p); err != nil {
			watcher.Close()
			return fmt.Errorf("watching %s: %w", p, err)
		}
	}

	w.logger.Info("watching paths for changes", "paths", w.paths)

	go w.run(ctx, watcher)
	return nil
}

func (w *Watcher) run(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()

	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug("watched path changed", "file", event.Name, "op", event.Op)

			// Debounce: reset timer on each event
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, w.fire)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("file watcher error", "error", err)
		}
	}
}

func (w *Watcher) fire() {
	if !w.limiter.Allow() {
		w.logger.Debug("change signal suppressed by rate limit")
		return
	}
	select {
	case w.c <- struct{}{}:
	default:
		// Already signaled
	}
}
