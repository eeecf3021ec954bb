package timestamp

import (
	"errors"
	"testing"
	"time"
)

func TestFormat(t *testing.T) {
	ts := time.Date(2026, 2, 19, 10, 30, 5, 0, time.UTC)

	got, err := New("%Y-%m-%d %H:%M:%S").Format(ts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "2026-02-19 10:30:05" {
		t.Errorf("expected '2026-02-19 10:30:05', got %q", got)
	}
}

func TestFormatLiteralText(t *testing.T) {
	ts := time.Date(2026, 2, 19, 10, 30, 5, 0, time.UTC)

	got, err := New("run at %H:%M").Format(ts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "run at 10:30" {
		t.Errorf("expected 'run at 10:30', got %q", got)
	}
}

func TestFormatEmpty(t *testing.T) {
	_, err := New("").Format(time.Now())
	if !errors.Is(err, ErrEmpty) {
		t.Errorf("expected ErrEmpty, got %v", err)
	}
}

func TestLineUsesClock(t *testing.T) {
	f := New("%H:%M:%S")
	f.now = func() time.Time {
		return time.Date(2026, 2, 19, 7, 8, 9, 0, time.Local)
	}

	line, err := f.Line()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if line != "07:08:09\n" {
		t.Errorf("expected '07:08:09\\n', got %q", line)
	}
}
