// Package watch reruns a callback when files under a path change.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is the quiet period after the last event before the
// callback runs.
const DefaultDebounce = 300 * time.Millisecond

// Watcher debounces file system events into batched callbacks.
type Watcher struct {
	debounce time.Duration
	skipDirs []string
	match    func(path string) bool
	logger   *zap.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithMatch limits the events that trigger the callback.
func WithMatch(match func(path string) bool) Option {
	return func(w *Watcher) { w.match = match }
}

// WithLogger sets the watcher logger.
func WithLogger(logger *zap.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// New returns a watcher that ignores VCS, dependency and flowlint state directories.
func New(opts ...Option) *Watcher {
	w := &Watcher{
		debounce: DefaultDebounce,
		skipDirs: []string{".git", "node_modules", "vendor", ".flowlint"},
		match:    func(string) bool { return true },
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// SourceFiles matches the files flowlint scans.
func SourceFiles(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".js" || ext == ".json"
}

// Run watches root, a file or a directory tree, and calls fn with the sorted
// changed paths once events stop arriving for the debounce period. fn runs on
// the watching goroutine, so events arriving meanwhile are batched into the
// next call. Run returns when ctx is done.
func (w *Watcher) Run(ctx context.Context, root string, fn func(ctx context.Context, changed []string)) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	match := w.match
	if info.IsDir() {
		if err := w.addRecursive(fsw, root); err != nil {
			return err
		}
	} else {
		// editors replace files on save, so watch the directory and filter
		file := filepath.Clean(root)
		if err := fsw.Add(filepath.Dir(file)); err != nil {
			return err
		}
		inner := match
		match = func(p string) bool { return filepath.Clean(p) == file && inner(p) }
	}

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := make(map[string]bool)

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) && info.IsDir() {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() && !w.skipped(ev.Name) {
					if err := w.addRecursive(fsw, ev.Name); err != nil {
						w.logger.Warn("watch add failed", zap.String("path", ev.Name), zap.Error(err))
					}
				}
			}
			if w.skipped(ev.Name) || !match(ev.Name) || ev.Op == fsnotify.Chmod {
				continue
			}
			pending[ev.Name] = true
			timer.Reset(w.debounce)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))
		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			sort.Strings(changed)
			pending = make(map[string]bool)
			w.logger.Debug("change detected", zap.Strings("paths", changed))
			fn(ctx, changed)
		}
	}
}

func (w *Watcher) skipped(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		for _, dir := range w.skipDirs {
			if part == dir {
				return true
			}
		}
	}
	return false
}

func (w *Watcher) addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.skipped(path) {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
}
