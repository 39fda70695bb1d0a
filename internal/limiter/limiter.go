package limiter

import (
	"context"

	"golang.org/x/time/rate"
)

// FileLimiter paces how many files a sweep opens per second
type FileLimiter struct {
	rl *rate.Limiter
}

// NewFileLimiter creates a limiter allowing perSecond files per second.
// A non-positive rate returns nil, meaning unlimited.
func NewFileLimiter(perSecond float64) *FileLimiter {
	if perSecond <= 0 {
		return nil
	}
	return &FileLimiter{rl: rate.NewLimiter(rate.Limit(perSecond), burstFor(perSecond))}
}

// Wait blocks until the next file may be processed or ctx is done.
// A nil limiter never blocks.
func (l *FileLimiter) Wait(ctx context.Context) error {
	if l == nil {
		return ctx.Err()
	}
	return l.rl.Wait(ctx)
}

// SetRate updates the files-per-second limit
func (l *FileLimiter) SetRate(perSecond float64) {
	if l == nil || perSecond <= 0 {
		return
	}
	l.rl.SetLimit(rate.Limit(perSecond))
	l.rl.SetBurst(burstFor(perSecond))
}

// Rate returns the current limit in files per second
func (l *FileLimiter) Rate() float64 {
	if l == nil {
		return 0
	}
	return float64(l.rl.Limit())
}

func burstFor(perSecond float64) int {
	if perSecond < 1 {
		return 1
	}
	return int(perSecond)
}
