// Package history provides an append-only record of watch iterations.
//
// Each iteration (and any fatal stop) is written as one line of JSON, so a
// long-running watch can be reviewed afterwards without keeping the captured
// output itself.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Action describes what happened.
type Action string

const (
	ActionIteration Action = "iteration"
	ActionFatal     Action = "fatal"
)

// Entry is a single history record.
type Entry struct {
	Timestamp time.Time `json:"ts"`
	Action    Action    `json:"action"`
	Iteration int       `json:"iteration"`
	Command   string    `json:"command,omitempty"`
	Changed   bool      `json:"changed"`
	Bytes     int       `json:"bytes"`
	Chunks    int       `json:"chunks"`
	ExitCode  *int      `json:"exit_code,omitempty"`
	Duration  string    `json:"duration,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Logger writes history entries to an append-only file.
type Logger struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// NewLogger creates or opens a history file for appending.
func NewLogger(path string) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening history log: %w", err)
	}
	return &Logger{file: f, path: path}, nil
}

// Path returns the file the logger appends to.
func (l *Logger) Path() string {
	return l.path
}

// Log writes a history entry.
func (l *Logger) Log(entry Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling history entry: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing history entry: %w", err)
	}
	return nil
}

// Close closes the history file.
func (l *Logger) Close() error {
	return l.file.Close()
}
