package scheduler

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"glyphsweep/internal/logging"
	"glyphsweep/internal/metrics"
	"glyphsweep/internal/scrub"
	"glyphsweep/internal/walk"
)

// Scheduler runs sweeps of one root, once or repeatedly.
type Scheduler struct {
	cleaner  *scrub.Cleaner
	walker   *walk.Walker
	root     string
	interval time.Duration
	logger   *logging.Leveled
	out      io.Writer
	debounce time.Duration
	trigger  chan os.Signal
}

// New creates a scheduler. out receives the console summary after each run; nil disables it.
func New(cleaner *scrub.Cleaner, walker *walk.Walker, root string, interval time.Duration, out io.Writer, logger *log.Logger) *Scheduler {
	return &Scheduler{
		cleaner:  cleaner,
		walker:   walker,
		root:     root,
		interval: interval,
		logger:   logging.NewLeveled(logger),
		out:      out,
		debounce: 2 * time.Second,
		trigger:  make(chan os.Signal, 1),
	}
}

// SetDebounce sets how long filesystem events must settle before a sweep
func (s *Scheduler) SetDebounce(d time.Duration) { s.debounce = d }

// Trigger returns the channel that requests an immediate sweep
func (s *Scheduler) Trigger() chan os.Signal { return s.trigger }

// RunOnce performs a single sweep and prints its summary
func (s *Scheduler) RunOnce(ctx context.Context) (*scrub.Summary, error) {
	summary, err := s.cleaner.Run(ctx, s.walker, s.root)
	metrics.SetRunResult(err)
	if err != nil {
		metrics.ErrorsTotal.Inc()
		return summary, err
	}
	if s.out != nil {
		scrub.PrintSummary(s.out, summary)
	}
	return summary, nil
}

// Run sweeps once, then again on every tick, trigger (SIGUSR1 or /trigger)
// and settled filesystem change until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if _, err := s.RunOnce(ctx); err != nil {
		return err
	}

	metrics.SetTriggerChannel(s.trigger)
	defer metrics.SetTriggerChannel(nil)
	signal.Notify(s.trigger, syscall.SIGUSR1)
	defer signal.Stop(s.trigger)

	w, err := newWatcher(s.root, s.walker, s.debounce, s.logger)
	if err != nil {
		// Ticker and triggers still work without filesystem events
		s.logger.Warn("File watching disabled", "error", err)
	} else {
		defer w.Close()
		go w.loop(ctx)
	}

	var ticker *time.Ticker
	var tick <-chan time.Time
	if s.interval > 0 {
		ticker = time.NewTicker(s.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		var changed <-chan struct{}
		if w != nil {
			changed = w.changed
		}

		var reason string
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler shutting down")
			return nil
		case <-tick:
			reason = "interval"
		case <-s.trigger:
			reason = "trigger"
		case <-changed:
			reason = "file change"
		}

		s.logger.Info("Starting scheduled sweep", "reason", reason)
		if _, err := s.RunOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			s.logger.Error("Sweep failed", "error", err)
		}
		if w != nil {
			// Our own rewrites generate events; don't sweep again for them
			w.drain()
		}
	}
}
