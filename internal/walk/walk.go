// Package walk discovers candidate files under a root directory.
package walk

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"log"
	"os"
	"path/filepath"

	"glyphsweep/internal/logging"
)

var errNoPatterns = errors.New("no include patterns")

// Candidate is a discovered file eligible for cleaning.
type Candidate struct {
	Path     string // Path as reached from the root
	RelPath  string // Slash-separated path relative to the root
	Resolved string // Real path after following symlinks
	Pattern  string // First inclusion pattern that matched
	Size     int64
}

// Walker enumerates files matching inclusion patterns while pruning
// excluded directory names.
type Walker struct {
	patterns []*Pattern
	excluded map[string]bool
	logger   *logging.Leveled
}

// New compiles the inclusion patterns and builds a Walker.
func New(include, excludeDirs []string, logger *log.Logger) (*Walker, error) {
	if len(include) == 0 {
		return nil, errNoPatterns
	}
	patterns, err := CompilePatterns(include)
	if err != nil {
		return nil, err
	}
	excluded := make(map[string]bool, len(excludeDirs))
	for _, d := range excludeDirs {
		excluded[d] = true
	}
	return &Walker{
		patterns: patterns,
		excluded: excluded,
		logger:   logging.NewLeveled(logger),
	}, nil
}

// shouldSkipDir reports whether a directory name is in the exclusion set.
// Matching is by exact segment.
func (w *Walker) shouldSkipDir(name string) bool {
	return w.excluded[name]
}

// Excluded reports whether a directory with this name is pruned.
func (w *Walker) Excluded(name string) bool { return w.shouldSkipDir(name) }

// Matches reports whether a slash-separated path relative to root matches
// any inclusion pattern.
func (w *Walker) Matches(rel string) bool {
	_, ok := w.matchPattern(rel)
	return ok
}

// matchPattern returns the first inclusion pattern matching rel.
func (w *Walker) matchPattern(rel string) (string, bool) {
	for _, p := range w.patterns {
		if p.Match(rel) {
			return p.String(), true
		}
	}
	return "", false
}

// Discover lazily yields matching files under root in lexical order.
// An error reaching root ends the sequence; errors below root are logged
// and the affected entry is skipped.
func (w *Walker) Discover(ctx context.Context, root string) iter.Seq2[Candidate, error] {
	return func(yield func(Candidate, error) bool) {
		info, err := os.Stat(root)
		if err != nil {
			yield(Candidate{}, fmt.Errorf("stat root %s: %w", root, err))
			return
		}
		if !info.IsDir() {
			yield(Candidate{}, fmt.Errorf("root %s is not a directory", root))
			return
		}

		// WalkDir does not descend a symlinked root; walk its target and
		// report paths under the root as given.
		walkRoot := root
		if li, err := os.Lstat(root); err == nil && li.Mode()&fs.ModeSymlink != 0 {
			if resolved, err := filepath.EvalSymlinks(root); err == nil {
				walkRoot = resolved
			}
		}

		err = filepath.WalkDir(walkRoot, func(path string, d fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				if path == walkRoot {
					return err
				}
				w.logger.Warn("Skipping unreadable entry", "path", path, "error", err)
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			if path == walkRoot {
				return nil
			}

			if d.IsDir() {
				if w.shouldSkipDir(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}

			rel, err := filepath.Rel(walkRoot, path)
			if err != nil {
				return nil
			}
			if walkRoot != root {
				path = filepath.Join(root, rel)
			}
			rel = filepath.ToSlash(rel)

			pattern, ok := w.matchPattern(rel)
			if !ok {
				return nil
			}

			cand, ok := w.candidate(path, rel, pattern, d)
			if !ok {
				return nil
			}
			if !yield(cand, nil) {
				return filepath.SkipAll
			}
			return nil
		})

		if err != nil {
			yield(Candidate{}, fmt.Errorf("walk %s: %w", root, err))
		}
	}
}

// candidate resolves a matched entry, dropping anything that is not a
// regular file once symlinks are followed.
func (w *Walker) candidate(path, rel, pattern string, d fs.DirEntry) (Candidate, bool) {
	cand := Candidate{Path: path, RelPath: rel, Pattern: pattern}

	if d.Type()&fs.ModeSymlink != 0 {
		info, err := os.Stat(path)
		if err != nil {
			w.logger.Warn("Skipping dangling symlink", "path", path, "error", err)
			return cand, false
		}
		if !info.Mode().IsRegular() {
			return cand, false
		}
		cand.Size = info.Size()
	} else {
		if !d.Type().IsRegular() {
			return cand, false
		}
		info, err := d.Info()
		if err != nil {
			w.logger.Warn("Skipping unreadable entry", "path", path, "error", err)
			return cand, false
		}
		cand.Size = info.Size()
	}

	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		resolved = path
	}
	if abs, err := filepath.Abs(resolved); err == nil {
		resolved = abs
	}
	cand.Resolved = filepath.Clean(resolved)
	return cand, true
}

// Collect drains a discovery sequence, returning the first error seen.
func Collect(seq iter.Seq2[Candidate, error]) ([]Candidate, error) {
	var out []Candidate
	for cand, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, cand)
	}
	return out, nil
}
