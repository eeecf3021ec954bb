// Package timestamp renders the line printed before each capture.
package timestamp

import (
	"errors"
	"fmt"
	"time"

	"github.com/ncruces/go-strftime"
)

// ErrEmpty is returned when a format produces no output.
var ErrEmpty = errors.New("time format produced no output")

// Formatter formats the current local time with a strftime-style format.
type Formatter struct {
	format string
	now    func() time.Time
}

// New returns a formatter for format, which uses strftime conversion
// specifiers such as %Y-%m-%d %H:%M:%S.
func New(format string) *Formatter {
	return &Formatter{format: format, now: time.Now}
}

// Format renders t.
func (f *Formatter) Format(t time.Time) (string, error) {
	s := strftime.Format(f.format, t)
	if s == "" {
		return "", fmt.Errorf("formatting %q: %w", f.format, ErrEmpty)
	}
	return s, nil
}

// Line renders the current local time followed by a newline.
func (f *Formatter) Line() (string, error) {
	s, err := f.Format(f.now().Local())
	if err != nil {
		return "", err
	}
	return s + "\n", nil
}
