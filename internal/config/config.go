package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/benaskins/detecter/internal/capture"
	"gopkg.in/yaml.v3"
)

// DefaultInterval is the pause between iterations when none is configured.
const DefaultInterval = 10 * time.Second

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid configuration")

// Config holds settings loaded from ~/.detecter/config.yaml. Command-line
// flags override any value set here.
type Config struct {
	TimeFormat  string    `yaml:"time_format"`
	Interval    *Duration `yaml:"interval"`
	Limit       int       `yaml:"limit"`
	CodeChange  bool      `yaml:"code_change"`
	Compare     string    `yaml:"compare"`
	History     string    `yaml:"history"`
	Watch       []string  `yaml:"watch"`
	WatchMinGap Duration  `yaml:"watch_min_gap"`
	LogLevel    string    `yaml:"log_level"`
}

// Duration wraps time.Duration for YAML. It accepts either an integer
// number of milliseconds or a Go duration string like "10s", "5m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		d.Duration = time.Duration(ms) * time.Millisecond
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.Duration.String(), nil
}

// DefaultPath returns the default config file path: ~/.detecter/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".detecter", "config.yaml")
}

// Load reads a YAML config file from path. If the file does not exist,
// it returns an empty Config and no error. An empty or all-comment file
// also returns an empty Config with no error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every field that has a restricted range.
func (c *Config) Validate() error {
	if c.Interval != nil && c.Interval.Duration <= 0 {
		return fmt.Errorf("%w: interval must be greater than 0", ErrInvalid)
	}
	if c.Limit < 0 {
		return fmt.Errorf("%w: limit must be greater than or equal to 0", ErrInvalid)
	}
	if c.WatchMinGap.Duration < 0 {
		return fmt.Errorf("%w: watch_min_gap must not be negative", ErrInvalid)
	}
	if _, err := capture.ParseMode(c.Compare); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// IntervalOrDefault returns the configured interval, or DefaultInterval.
func (c *Config) IntervalOrDefault() time.Duration {
	if c.Interval == nil {
		return DefaultInterval
	}
	return c.Interval.Duration
}

// ParseLogLevel maps a level name to a slog.Level. An empty name means warn.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "", "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}
