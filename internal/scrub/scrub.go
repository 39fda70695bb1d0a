// Package scrub strips target glyphs from files and drives whole-tree runs.
package scrub

import (
	"errors"
	"fmt"
	"log"
	"unicode/utf8"

	"glyphsweep/internal/fsops"
	"glyphsweep/internal/glyphs"
	"glyphsweep/internal/limiter"
	"glyphsweep/internal/logging"
	"glyphsweep/internal/metrics"
	"glyphsweep/internal/safety"
)

// ErrEncoding is returned for files whose content is not valid UTF-8.
var ErrEncoding = errors.New("content is not valid UTF-8")

// Status is the outcome of cleaning one file.
type Status int

const (
	Unchanged Status = iota
	Modified
	Failed
)

func (s Status) String() string {
	switch s {
	case Unchanged:
		return "unchanged"
	case Modified:
		return "modified"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Result describes what happened to a single file.
type Result struct {
	Path        string
	Status      Status
	Removed     int // glyph occurrences stripped
	BytesBefore int64
	BytesAfter  int64
	Err         error
	cause       string
}

// Modified reports whether the file was (or in dry-run would have been) rewritten.
func (r Result) Modified() bool { return r.Status == Modified }

// Cause is a short label for the failure stage: read, encoding, unsafe or write.
func (r Result) Cause() string { return r.cause }

func failure(path, cause string, size int64, err error) Result {
	return Result{Path: path, Status: Failed, BytesBefore: size, Err: err, cause: cause}
}

// Recorder persists rewrite history. Implemented by database.HistoryDB.
type Recorder interface {
	RecordRewrite(runID string, dryRun bool, r Result) error
	RecordRun(s *Summary) error
}

// Cleaner strips glyphs from files through a Store, enforcing the rewrite safety contract.
type Cleaner struct {
	logger      *logging.Leveled
	matcher     glyphs.Matcher
	store       fsops.Store
	validator   *safety.Validator
	protected   []string
	reporter    Reporter
	limiter     *limiter.FileLimiter
	metrics     Metrics
	recorder    Recorder
	dryRun      bool
	statTimeout int // seconds, 0 disables the root probe timeout
}

// NewCleaner creates a Cleaner using the real filesystem. recorder may be nil.
func NewCleaner(logger *log.Logger, matcher glyphs.Matcher, dryRun bool, recorder Recorder) *Cleaner {
	metrics.Init()
	if matcher == nil {
		matcher = glyphs.Default()
	}
	return &Cleaner{
		logger:   logging.NewLeveled(logger),
		matcher:  matcher,
		store:    fsops.OSStore{},
		reporter: NopReporter{},
		metrics:  &sweepMetrics{},
		recorder: recorder,
		dryRun:   dryRun,
	}
}

// SetStore replaces the filesystem implementation (used for testing)
func (c *Cleaner) SetStore(s fsops.Store) { c.store = s }

// SetValidator fixes the validator used for every write. Without one,
// Run builds a validator scoped to its root.
func (c *Cleaner) SetValidator(v *safety.Validator) { c.validator = v }

// SetProtectedPaths adds paths the validator built by Run refuses to rewrite.
func (c *Cleaner) SetProtectedPaths(paths []string) { c.protected = paths }

// SetReporter sets where per-file notices go
func (c *Cleaner) SetReporter(r Reporter) {
	if r == nil {
		r = NopReporter{}
	}
	c.reporter = r
}

// SetLimiter sets the per-file throttle. nil means unlimited.
func (c *Cleaner) SetLimiter(l *limiter.FileLimiter) { c.limiter = l }

// SetStatTimeout sets how long Run waits for the root to answer a stat.
func (c *Cleaner) SetStatTimeout(seconds int) { c.statTimeout = seconds }

// DryRun reports whether writes are suppressed
func (c *Cleaner) DryRun() bool { return c.dryRun }

// Clean strips target glyphs from the file at path.
// Failures are returned in the Result, never as a panic.
func (c *Cleaner) Clean(path string) Result {
	return c.clean(path, c.validator)
}

func (c *Cleaner) clean(path string, v *safety.Validator) Result {
	data, err := c.store.ReadFile(path)
	if err != nil {
		return failure(path, "read", 0, err)
	}
	size := int64(len(data))

	if !utf8.Valid(data) {
		return failure(path, "encoding", size, ErrEncoding)
	}

	text := string(data)
	if !c.matcher.Contains(text) {
		return Result{Path: path, Status: Unchanged, BytesBefore: size, BytesAfter: size}
	}

	cleaned, removed := c.matcher.Strip(text)
	res := Result{
		Path:        path,
		Status:      Modified,
		Removed:     removed,
		BytesBefore: size,
		BytesAfter:  int64(len(cleaned)),
	}

	if v != nil {
		if err := v.ValidateRewriteTarget(path); err != nil {
			return failure(path, "unsafe", size, fmt.Errorf("refusing to rewrite: %w", err))
		}
	}

	if c.dryRun {
		c.logger.Debug("[DRY RUN] Would rewrite file", "path", path, "removed", removed)
		return res
	}

	if err := c.store.WriteFile(path, []byte(cleaned)); err != nil {
		return failure(path, "write", size, err)
	}
	return res
}
