package trigger

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherSignalsOnWrite(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := New([]string{dir}, 0, nil)
	w.debounce = 10 * time.Millisecond
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "input.txt"), []byte("changed"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-w.C():
	case <-time.After(5 * time.Second):
		t.Fatal("expected a change signal")
	}
}

func TestWatcherDebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := New([]string{dir}, 0, nil)
	w.debounce = 200 * time.Millisecond
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	path := filepath.Join(dir, "input.txt")
	for i := 0; i < 5; i++ {
		os.WriteFile(path, []byte{byte('a' + i)}, 0644)
	}

	select {
	case <-w.C():
	case <-time.After(5 * time.Second):
		t.Fatal("expected a change signal")
	}

	select {
	case <-w.C():
		t.Error("expected burst to collapse into a single signal")
	case <-time.After(500 * time.Millisecond):
	}
}

func TestWatcherRateLimited(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := New([]string{dir}, time.Hour, nil)
	w.debounce = 10 * time.Millisecond
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	path := filepath.Join(dir, "input.txt")
	os.WriteFile(path, []byte("one"), 0644)

	select {
	case <-w.C():
	case <-time.After(5 * time.Second):
		t.Fatal("expected first change to signal")
	}

	time.Sleep(100 * time.Millisecond)
	os.WriteFile(path, []byte("two"), 0644)

	select {
	case <-w.C():
		t.Error("expected second change to be rate limited")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherMissingPath(t *testing.T) {
	w := New([]string{filepath.Join(t.TempDir(), "does-not-exist")}, 0, nil)
	if err := w.Start(context.Background()); err == nil {
		t.Error("expected error watching a missing path")
	}
}
