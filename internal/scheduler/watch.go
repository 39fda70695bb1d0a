package scheduler

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"glyphsweep/internal/logging"
	"glyphsweep/internal/walk"

	"github.com/fsnotify/fsnotify"
)

// watcher turns filesystem events under a root into debounced change signals.
type watcher struct {
	fw       *fsnotify.Watcher
	root     string
	walker   *walk.Walker
	debounce time.Duration
	logger   *logging.Leveled
	changed  chan struct{}
	reset    chan struct{}
}

func newWatcher(root string, w *walk.Walker, debounce time.Duration, logger *logging.Leveled) (*watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	wt := &watcher{
		fw:       fw,
		root:     root,
		walker:   w,
		debounce: debounce,
		logger:   logger,
		changed:  make(chan struct{}, 1),
		reset:    make(chan struct{}, 1),
	}
	if err := wt.addTree(root); err != nil {
		fw.Close()
		return nil, err
	}
	return wt, nil
}

// addTree watches dir and every non-excluded directory below it.
// Symlinked directories are not followed.
func (w *watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.walker.Excluded(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fw.Add(path); err != nil {
			w.logger.Warn("Cannot watch directory", "path", path, "error", err)
		}
		return nil
	})
}

// relevant reports whether an event path is a file the walker would yield.
func (w *watcher) relevant(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	for dir := filepath.Dir(rel); dir != "."; dir = filepath.Dir(dir) {
		if w.walker.Excluded(filepath.Base(dir)) {
			return false
		}
	}
	return w.walker.Matches(filepath.ToSlash(rel))
}

func (w *watcher) loop(ctx context.Context) {
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Lstat(ev.Name); err == nil && info.IsDir() {
					if !w.walker.Excluded(filepath.Base(ev.Name)) {
						if err := w.addTree(ev.Name); err != nil {
							w.logger.Warn("Cannot watch new directory", "path", ev.Name, "error", err)
						}
					}
					continue
				}
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if !w.relevant(ev.Name) {
				continue
			}
			w.logger.Debug("File changed", "path", ev.Name, "op", ev.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Watcher error", "error", err)
		case <-w.reset:
			if timer != nil {
				timer.Stop()
			}
			fire = nil
		case <-fire:
			fire = nil
			select {
			case w.changed <- struct{}{}:
			default:
			}
		}
	}
}

// drain discards a pending change signal and any debounce in progress.
func (w *watcher) drain() {
	select {
	case <-w.changed:
	default:
	}
	select {
	case w.reset <- struct{}{}:
	default:
	}
}

func (w *watcher) Close() error {
	return w.fw.Close()
}
