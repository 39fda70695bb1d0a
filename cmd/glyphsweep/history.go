package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"glyphsweep/internal/config"
	"glyphsweep/internal/database"
	"glyphsweep/internal/exitcodes"
)

type historyOptions struct {
	dbPath     string
	configPath string
	jsonOutput bool
	limit      int
	days       int
	olderThan  int
	vacuum     bool
}

func newHistoryCmd() *cobra.Command {
	opts := &historyOptions{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Query the rewrite history database",
		Long: `Query the SQLite history written when database_path is configured.

Examples:
  glyphsweep history recent --db history.db      # 20 most recent events
  glyphsweep history runs 5 --db history.db      # last 5 runs
  glyphsweep history stats --days 7              # totals for the last week
  glyphsweep history action ERROR                # only failures
  glyphsweep history path '/srv/docs/%'          # events under /srv/docs
  glyphsweep history prune --older-than 90       # drop records past 90 days`,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.dbPath, "db", "", "path to history database (default: database_path from --config)")
	pf.StringVar(&opts.configPath, "config", "", "config file to read database_path from")
	pf.BoolVar(&opts.jsonOutput, "json", false, "output in JSON format")
	pf.IntVar(&opts.limit, "limit", 50, "maximum records for action and path queries")

	recent := &cobra.Command{
		Use:   "recent [N]",
		Short: "Show the N most recent rewrite events",
		Args:  cobra.MaximumNArgs(1),
		RunE: withDB(opts, func(cmd *cobra.Command, db *database.HistoryDB, args []string) error {
			n, err := countArg(args, 20)
			if err != nil {
				return err
			}
			records, err := db.GetRecentRewrites(n)
			if err != nil {
				return withCode(exitcodes.RuntimeError, fmt.Errorf("query recent rewrites: %w", err))
			}
			return printRewrites(cmd.OutOrStdout(), records, opts.jsonOutput)
		}),
	}

	runs := &cobra.Command{
		Use:   "runs [N]",
		Short: "Show the N most recent runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: withDB(opts, func(cmd *cobra.Command, db *database.HistoryDB, args []string) error {
			n, err := countArg(args, 10)
			if err != nil {
				return err
			}
			records, err := db.GetRecentRuns(n)
			if err != nil {
				return withCode(exitcodes.RuntimeError, fmt.Errorf("query runs: %w", err))
			}
			return printRuns(cmd.OutOrStdout(), records, opts.jsonOutput)
		}),
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show aggregated statistics",
		Args:  cobra.NoArgs,
		RunE: withDB(opts, func(cmd *cobra.Command, db *database.HistoryDB, args []string) error {
			s, err := db.GetStats(opts.days)
			if err != nil {
				return withCode(exitcodes.RuntimeError, fmt.Errorf("query stats: %w", err))
			}
			return printStats(cmd.OutOrStdout(), s, opts.days, opts.jsonOutput)
		}),
	}
	stats.Flags().IntVar(&opts.days, "days", 30, "number of days to aggregate")

	action := &cobra.Command{
		Use:   "action ACTION",
		Short: "Show events with an action (MODIFIED, DRY_RUN, ERROR)",
		Args:  cobra.ExactArgs(1),
		RunE: withDB(opts, func(cmd *cobra.Command, db *database.HistoryDB, args []string) error {
			records, err := db.GetRewritesByAction(args[0], opts.limit)
			if err != nil {
				return withCode(exitcodes.RuntimeError, fmt.Errorf("query by action: %w", err))
			}
			return printRewrites(cmd.OutOrStdout(), records, opts.jsonOutput)
		}),
	}

	path := &cobra.Command{
		Use:   "path PATTERN",
		Short: "Show events whose path matches a SQL LIKE pattern",
		Args:  cobra.ExactArgs(1),
		RunE: withDB(opts, func(cmd *cobra.Command, db *database.HistoryDB, args []string) error {
			records, err := db.GetRewritesByPath(args[0], opts.limit)
			if err != nil {
				return withCode(exitcodes.RuntimeError, fmt.Errorf("query by path: %w", err))
			}
			return printRewrites(cmd.OutOrStdout(), records, opts.jsonOutput)
		}),
	}

	run := &cobra.Command{
		Use:   "run RUN_ID",
		Short: "Show every event recorded for one run",
		Args:  cobra.ExactArgs(1),
		RunE: withDB(opts, func(cmd *cobra.Command, db *database.HistoryDB, args []string) error {
			records, err := db.GetRewritesByRun(args[0])
			if err != nil {
				return withCode(exitcodes.RuntimeError, fmt.Errorf("query by run: %w", err))
			}
			return printRewrites(cmd.OutOrStdout(), records, opts.jsonOutput)
		}),
	}

	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete history records older than --older-than days",
		Args:  cobra.NoArgs,
		RunE: withDB(opts, func(cmd *cobra.Command, db *database.HistoryDB, args []string) error {
			if opts.olderThan <= 0 {
				return withCode(exitcodes.InvalidConfig, fmt.Errorf("--older-than must be positive, got %d", opts.olderThan))
			}
			n, err := db.DeleteOldRecords(opts.olderThan)
			if err != nil {
				return withCode(exitcodes.RuntimeError, fmt.Errorf("prune history: %w", err))
			}
			if opts.vacuum {
				if err := db.Vacuum(); err != nil {
					return withCode(exitcodes.RuntimeError, fmt.Errorf("vacuum history: %w", err))
				}
			}
			info, err := db.GetDatabaseStats()
			if err != nil {
				return withCode(exitcodes.RuntimeError, fmt.Errorf("database stats: %w", err))
			}
			if opts.jsonOutput {
				info["deleted"] = n
				return printJSON(cmd.OutOrStdout(), info)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Deleted %s records\n", humanize.Comma(n))
			fmt.Fprintf(w, "Remaining: %d rewrites, %d runs (%s)\n",
				info["total_rewrites"], info["total_runs"],
				humanize.IBytes(uint64(info["database_size_bytes"].(int64))))
			return nil
		}),
	}
	prune.Flags().IntVar(&opts.olderThan, "older-than", 90, "delete records older than this many days")
	prune.Flags().BoolVar(&opts.vacuum, "vacuum", false, "reclaim space after deleting")

	cmd.AddCommand(recent, runs, stats, action, path, run, prune)
	return cmd
}

// withDB resolves and opens the history database around a query.
// A missing database is an error rather than silently created.
func withDB(opts *historyOptions, fn func(*cobra.Command, *database.HistoryDB, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		path := opts.dbPath
		if path == "" && opts.configPath != "" {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return withCode(exitcodes.InvalidConfig, err)
			}
			path = cfg.DatabasePath
		}
		if path == "" {
			return withCode(exitcodes.InvalidConfig, fmt.Errorf("no history database: pass --db or a --config with database_path"))
		}
		if _, err := os.Stat(path); err != nil {
			return withCode(exitcodes.RuntimeError, fmt.Errorf("open history database: %w", err))
		}

		db, err := database.NewHistoryDB(path)
		if err != nil {
			return withCode(exitcodes.RuntimeError, err)
		}
		defer db.Close()
		return fn(cmd, db, args)
	}
}

func countArg(args []string, def int) (int, error) {
	if len(args) == 0 {
		return def, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		return 0, withCode(exitcodes.InvalidConfig, fmt.Errorf("count must be a positive integer, got %q", args[0]))
	}
	return n, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printRewrites(w io.Writer, records []database.RewriteRecord, jsonOutput bool) error {
	if jsonOutput {
		if records == nil {
			records = []database.RewriteRecord{}
		}
		return printJSON(w, records)
	}
	if len(records) == 0 {
		fmt.Fprintln(w, "No records found")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTimestamp\tAction\tRemoved\tSaved\tPath")
	fmt.Fprintln(tw, "--\t---------\t------\t-------\t-----\t----")
	for _, r := range records {
		path := r.Path
		if r.ErrorMessage != "" {
			path += " (" + r.ErrorMessage + ")"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\n",
			r.ID, r.Timestamp.Format("2006-01-02 15:04:05"), r.Action, r.Removed,
			humanize.IBytes(uint64(max(r.BytesBefore-r.BytesAfter, 0))), path)
	}
	return tw.Flush()
}

func printRuns(w io.Writer, runs []database.RunRecord, jsonOutput bool) error {
	if jsonOutput {
		if runs == nil {
			runs = []database.RunRecord{}
		}
		return printJSON(w, runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Run\tStarted\tExamined\tModified\tFailed\tRemoved\tMode\tRoot")
	fmt.Fprintln(tw, "---\t-------\t--------\t--------\t------\t-------\t----\t----")
	for _, r := range runs {
		mode := "write"
		if r.DryRun {
			mode = "dry-run"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
			shortID(r.RunID), humanize.Time(r.StartedAt), r.Examined, r.Modified,
			r.Failed, r.Removed, mode, r.Root)
	}
	return tw.Flush()
}

func printStats(w io.Writer, s *database.HistoryStats, days int, jsonOutput bool) error {
	if jsonOutput {
		return printJSON(w, s)
	}

	fmt.Fprintf(w, "Rewrite Statistics (Last %d days)\n", days)
	fmt.Fprintf(w, "Period: %s to %s\n\n", s.StartDate.Format("2006-01-02"), s.EndDate.Format("2006-01-02"))
	fmt.Fprintf(w, "Runs:             %s\n", humanize.Comma(int64(s.Runs)))
	fmt.Fprintf(w, "Files Examined:   %s\n", humanize.Comma(int64(s.FilesExamined)))
	fmt.Fprintf(w, "Files Modified:   %s\n", humanize.Comma(int64(s.FilesModified)))
	fmt.Fprintf(w, "Files Failed:     %s\n", humanize.Comma(int64(s.FilesFailed)))
	fmt.Fprintf(w, "Glyphs Removed:   %s\n", humanize.Comma(int64(s.GlyphsRemoved)))
	fmt.Fprintf(w, "Bytes Saved:      %s\n", humanize.IBytes(uint64(max(s.BytesSaved, 0))))

	if len(s.ByAction) > 0 {
		actions := make([]string, 0, len(s.ByAction))
		for a := range s.ByAction {
			actions = append(actions, a)
		}
		sort.Strings(actions)
		fmt.Fprintln(w, "\nBy Action:")
		for _, a := range actions {
			fmt.Fprintf(w, "  %-15s %d\n", a, s.ByAction[a])
		}
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
