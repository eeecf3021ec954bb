package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benaskins/detecter/internal/capture"
	"github.com/benaskins/detecter/internal/config"
	"github.com/benaskins/detecter/internal/history"
	"github.com/benaskins/detecter/internal/supervisor"
	"github.com/benaskins/detecter/internal/trigger"
	"github.com/spf13/cobra"
)

type watchOptions struct {
	timeFormat  string
	intervalMS  int
	limit       int
	codeChange  bool
	compare     string
	configPath  string
	historyPath string
	watch       []string
	watchMinGap time.Duration
	logLevel    string
}

var opts watchOptions

func init() {
	bindFlags(rootCmd, &opts)
}

func bindFlags(cmd *cobra.Command, o *watchOptions) {
	flags := cmd.Flags()
	// Stop at the first positional argument so the child's own flags pass through.
	flags.SetInterspersed(false)

	flags.StringVarP(&o.timeFormat, "time-format", "t", "", "Print the time before each run using this strftime format (e.g. \"%H:%M:%S\")")
	flags.IntVarP(&o.intervalMS, "interval", "i", int(config.DefaultInterval/time.Millisecond), "Milliseconds between runs")
	flags.IntVarP(&o.limit, "limit", "l", 0, "Number of runs, 0 for unlimited")
	flags.BoolVarP(&o.codeChange, "code-change", "c", false, "Print \"exit <code>\" when the exit code changes")
	flags.StringVar(&o.compare, "compare", "", "How to compare runs: chunks (default) or bytes")
	flags.StringVar(&o.configPath, "config", config.DefaultPath(), "Path to config file")
	flags.StringVar(&o.historyPath, "history", "", "Append a JSON record of every run to this file")
	flags.StringArrayVar(&o.watch, "watch", nil, "Start the next run early when this path changes (repeatable)")
	flags.DurationVar(&o.watchMinGap, "watch-min-gap", time.Second, "Minimum time between early runs caused by --watch")
	flags.StringVar(&o.logLevel, "log-level", "", "Diagnostic log level: debug, info, warn, error")
}

// resolveConfig loads the config file and applies every flag the user set
// explicitly on top of it.
func resolveConfig(cmd *cobra.Command, o *watchOptions) (*config.Config, error) {
	flags := cmd.Flags()

	if flags.Changed("config") && o.configPath != "" {
		if _, err := os.Stat(o.configPath); err != nil {
			return nil, fmt.Errorf("cannot access config %s: %w", o.configPath, err)
		}
	}

	cfg := &config.Config{}
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}

	if flags.Changed("time-format") {
		cfg.TimeFormat = o.timeFormat
	}
	if flags.Changed("interval") {
		cfg.Interval = &config.Duration{Duration: time.Duration(o.intervalMS) * time.Millisecond}
	}
	if flags.Changed("limit") {
		cfg.Limit = o.limit
	}
	if flags.Changed("code-change") {
		cfg.CodeChange = o.codeChange
	}
	if flags.Changed("compare") {
		cfg.Compare = o.compare
	}
	if flags.Changed("history") {
		cfg.History = o.historyPath
	}
	if flags.Changed("watch") {
		cfg.Watch = o.watch
	}
	if flags.Changed("watch-min-gap") || cfg.WatchMinGap.Duration == 0 {
		cfg.WatchMinGap = config.Duration{Duration: o.watchMinGap}
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, &opts)
	if err != nil {
		return err
	}
	// Configuration is valid; later failures are not usage problems.
	cmd.SilenceUsage = true

	level, _ := config.ParseLogLevel(cfg.LogLevel)
	logger := newLogger(level)
	slog.SetDefault(logger)

	mode, _ := capture.ParseMode(cfg.Compare)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loopOpts := []supervisor.Option{supervisor.WithLogger(logger)}

	if cfg.History != "" {
		h, err := history.NewLogger(cfg.History)
		if err != nil {
			return err
		}
		defer h.Close()
		loopOpts = append(loopOpts, supervisor.WithHistory(h))
	}

	if len(cfg.Watch) > 0 {
		w := trigger.New(cfg.Watch, cfg.WatchMinGap.Duration, logger)
		if err := w.Start(ctx); err != nil {
			return err
		}
		loopOpts = append(loopOpts, supervisor.WithTrigger(w.C()))
	}

	loop, err := supervisor.New(supervisor.Config{
		Command:        args,
		Interval:       cfg.IntervalOrDefault(),
		Limit:          cfg.Limit,
		TimeFormat:     cfg.TimeFormat,
		ReportExitCode: cfg.CodeChange,
		Compare:        mode,
	}, loopOpts...)
	if err != nil {
		return err
	}

	if err := loop.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("received signal, shutting down")
			return nil
		}
		return err
	}
	return nil
}
