package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"glyphsweep/internal/api"
	"glyphsweep/internal/config"
	"glyphsweep/internal/database"
	"glyphsweep/internal/exitcodes"
	"glyphsweep/internal/limiter"
	"glyphsweep/internal/logging"
	"glyphsweep/internal/metrics"
	"glyphsweep/internal/scheduler"
	"glyphsweep/internal/scrub"
	"glyphsweep/internal/walk"
)

type runOptions struct {
	configPath string
	dryRun     bool
	watch      bool
	include    []string
	exclude    []string
	emoji      bool
}

func newRootCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "glyphsweep [root]",
		Short: "Strip emoticon glyphs from Markdown and shell files",
		Long: `glyphsweep walks a directory tree and removes emoticon glyphs from every
file matching the inclusion patterns (by default **/*.md and **/*.sh),
skipping dependency, build and VCS directories.

Files are rewritten in place only when they contained a target glyph.

Examples:
  # Clean the current directory
  glyphsweep

  # Preview changes under docs/ without writing
  glyphsweep docs --dry-run

  # Strip every Unicode emoji, not just the built-in set
  glyphsweep --emoji

  # Keep sweeping on an interval and on file changes
  glyphsweep --config glyphsweep.yaml --watch`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd, args, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", "", "path to YAML configuration file")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "report what would change without writing")
	flags.BoolVar(&opts.watch, "watch", false, "keep running: re-sweep on interval, trigger and file changes")
	flags.StringArrayVar(&opts.include, "include", nil, "inclusion glob, relative to root (repeatable)")
	flags.StringArrayVar(&opts.exclude, "exclude", nil, "directory name to skip (repeatable)")
	flags.BoolVar(&opts.emoji, "emoji", false, "strip all Unicode emoji instead of the built-in glyph set")

	cmd.AddCommand(newHistoryCmd())
	return cmd
}

// loadConfig reads the optional config file and applies flag overrides.
func loadConfig(cmd *cobra.Command, args []string, opts *runOptions) (*config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if len(args) == 1 {
		cfg.Root = args[0]
	}
	flags := cmd.Flags()
	if flags.Changed("dry-run") {
		cfg.DryRun = opts.dryRun
	}
	if flags.Changed("include") {
		cfg.IncludePatterns = opts.include
	}
	if flags.Changed("exclude") {
		cfg.ExcludeDirs = opts.exclude
	}
	if opts.emoji {
		cfg.Matcher = config.MatcherEmoji
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runSweep(cmd *cobra.Command, args []string, opts *runOptions) error {
	cfg, err := loadConfig(cmd, args, opts)
	if err != nil {
		return withCode(exitcodes.InvalidConfig, fmt.Errorf("load config: %w", err))
	}

	logger := logging.New(cfg)
	if cfg.DryRun {
		logging.NewLeveled(logger).Info("DRY RUN MODE: no files will be written")
	}

	matcher, err := cfg.NewMatcher()
	if err != nil {
		return withCode(exitcodes.InvalidConfig, err)
	}
	walker, err := walk.New(cfg.IncludePatterns, cfg.ExcludeDirs, logger)
	if err != nil {
		return withCode(exitcodes.InvalidConfig, err)
	}

	var recorder scrub.Recorder
	var history api.HistoryReader
	if cfg.DatabasePath != "" {
		db, err := database.NewHistoryDB(cfg.DatabasePath)
		if err != nil {
			return withCode(exitcodes.RuntimeError, err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				logger.Printf("ERROR: Failed to close database: %v", err)
			}
		}()
		recorder = db
		history = db
	}

	out := cmd.OutOrStdout()
	cleaner := scrub.NewCleaner(logger, matcher, cfg.DryRun, recorder)
	cleaner.SetReporter(scrub.ConsoleReporter{Out: out})
	cleaner.SetLimiter(limiter.NewFileLimiter(cfg.MaxFilesPerSecond))
	cleaner.SetStatTimeout(cfg.StatTimeout)
	cleaner.SetProtectedPaths(cfg.ProtectedPaths)

	if cfg.Prometheus.Port > 0 {
		metrics.StartServer(cfg.PrometheusAddress(), logger, api.NewRouter(history, cfg, logger))
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			metrics.Shutdown(ctx, logger)
		}()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := scheduler.New(cleaner, walker, cfg.Root, cfg.Interval(), out, logger)
	if opts.watch {
		err = sched.Run(ctx)
	} else {
		_, err = sched.RunOnce(ctx)
	}
	if errors.Is(err, context.Canceled) {
		err = errors.New("interrupted before the sweep completed")
	}
	return withCode(exitcodes.RuntimeError, err)
}
