package scrub

import (
	"context"
	"fmt"
	"iter"
	"time"

	"glyphsweep/internal/disk"
	"glyphsweep/internal/safety"
	"glyphsweep/internal/walk"

	"github.com/google/uuid"
)

// Summary aggregates one run. Counters are local to the run.
type Summary struct {
	RunID    string
	Root     string
	DryRun   bool
	Examined int
	Modified int
	Failed   int
	Removed  int
	Started  time.Time
	Duration time.Duration
	Results  []Result
}

// Discoverer yields candidate files under a root. Implemented by *walk.Walker.
type Discoverer interface {
	Discover(ctx context.Context, root string) iter.Seq2[walk.Candidate, error]
}

// Run cleans every file discovered under root, in discovery order.
// Per-file failures are counted in the summary; only an unreachable root
// or context cancellation returns an error.
func (c *Cleaner) Run(ctx context.Context, d Discoverer, root string) (*Summary, error) {
	s := &Summary{
		RunID:   uuid.NewString(),
		Root:    root,
		DryRun:  c.dryRun,
		Started: time.Now(),
	}

	if err := disk.ProbeRoot(root, time.Duration(c.statTimeout)*time.Second); err != nil {
		return s, fmt.Errorf("root %s unavailable: %w", root, err)
	}

	v := c.validator
	if v == nil {
		v = safety.NewValidator([]string{root}, c.protected)
	}

	c.logger.Info("Starting sweep", "run_id", s.RunID, "root", root, "matcher", c.matcher.Name(), "dry_run", c.dryRun)

	seen := make(map[string]bool)
	var runErr error
	for cand, err := range d.Discover(ctx, root) {
		if err != nil {
			runErr = err
			break
		}
		key := cand.Resolved
		if key == "" {
			key = cand.Path
		}
		if seen[key] {
			c.logger.Debug("Skipping duplicate", "path", cand.Path, "resolved", key)
			continue
		}
		seen[key] = true

		if err := c.limiter.Wait(ctx); err != nil {
			runErr = err
			break
		}

		res := c.clean(cand.Path, v)
		c.tally(s, res)
	}

	s.Duration = time.Since(s.Started)
	c.metrics.RecordRun(s.Duration, s.Examined, s.Modified, s.Failed)

	if c.recorder != nil {
		if err := c.recorder.RecordRun(s); err != nil {
			c.logger.Error("Failed to record run to database", "error", err)
		}
	}

	if runErr != nil {
		c.logger.Error("Sweep aborted", "run_id", s.RunID, "error", runErr)
		return s, runErr
	}

	c.logger.Info("Sweep complete",
		"run_id", s.RunID,
		"examined", s.Examined,
		"modified", s.Modified,
		"failed", s.Failed,
		"removed", s.Removed,
		"duration", s.Duration,
	)
	return s, nil
}

func (c *Cleaner) tally(s *Summary, res Result) {
	s.Examined++
	s.Results = append(s.Results, res)
	c.observe(res)

	switch res.Status {
	case Modified:
		s.Modified++
		s.Removed += res.Removed
		c.reporter.FileModified(res, c.dryRun)
	case Failed:
		s.Failed++
		c.logger.Error("Failed to clean", "path", res.Path, "cause", res.Cause(), "error", res.Err)
		c.reporter.FileFailed(res)
	default:
		return
	}

	if c.recorder != nil {
		if err := c.recorder.RecordRewrite(s.RunID, c.dryRun, res); err != nil {
			// Don't fail the run if a DB write fails
			c.logger.Error("Failed to record to database", "error", err)
		}
	}
}
