// SPDX-License-Identifier: MPL-2.0

// Package watch re-runs a callback when profile files change.
//
// A Watcher observes one or more configuration roots recursively and invokes
// OnChange once per quiet period with the set of profile, material and
// definition files that were touched.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period used when Config.Debounce is unset.
const DefaultDebounce = 300 * time.Millisecond

var (
	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("watcher already running")

	// ProfilePatterns select the files a configuration root is made of.
	ProfilePatterns = []string{
		"**/*.cfg",
		"**/*.xml.fdm_material",
		"**/*.def.json",
	}

	// Cura keeps caches and logs next to the profiles.
	ignored = []string{
		"**/.git/**",
		"**/cache/**",
		"**/*.log",
		"**/*.swp",
		"**/*~",
	}
)

type (
	// Config holds the parameters for a Watcher.
	Config struct {
		// Roots are the directories watched recursively. Missing roots are skipped.
		Roots []string
		// Patterns are doublestar globs matched against paths relative to their
		// root. Empty means ProfilePatterns.
		Patterns []string
		// Debounce is the quiet period before OnChange fires.
		Debounce time.Duration
		// OnChange receives the absolute paths that changed, sorted. Errors are
		// logged and do not stop the watcher.
		OnChange func(ctx context.Context, changed []string) error
		// Logger defaults to slog.Default().
		Logger *slog.Logger
	}

	// Watcher monitors configuration roots. Run may be called once.
	Watcher struct {
		cfg      Config
		fsw      *fsnotify.Watcher
		roots    []string
		patterns []string
		debounce time.Duration
		log      *slog.Logger
		started  atomic.Bool
	}
)

// New validates cfg and registers every directory below the roots.
func New(cfg Config) (*Watcher, error) {
	patterns := cfg.Patterns
	if len(patterns) == 0 {
		patterns = ProfilePatterns
	}
	for _, pat := range patterns {
		if !doublestar.ValidatePattern(pat) {
			return nil, fmt.Errorf("watch: invalid pattern %q: %w", pat, doublestar.ErrBadPattern)
		}
	}

	w := &Watcher{
		cfg:      cfg,
		patterns: patterns,
		debounce: cmpOr(cfg.Debounce, DefaultDebounce),
		log:      cfg.Logger,
	}
	if w.log == nil {
		w.log = slog.Default()
	}

	for _, root := range cfg.Roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("watch: resolve %q: %w", root, err)
		}
		if info, err := os.Stat(abs); err != nil || !info.IsDir() {
			w.log.Debug("watch root skipped", "root", abs)
			continue
		}
		w.roots = append(w.roots, abs)
	}
	if len(w.roots) == 0 {
		return nil, errors.New("watch: no existing directory to watch")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}
	w.fsw = fsw
	for _, root := range w.roots {
		if err := w.addTree(root); err != nil {
			fsw.Close() //nolint:errcheck // already failing
			return nil, err
		}
	}
	return w, nil
}

// Roots returns the absolute directories being watched.
func (w *Watcher) Roots() []string {
	return slices.Clone(w.roots)
}

// Run processes events until ctx is canceled. It returns nil on cancellation
// and an error when the underlying watcher breaks.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer w.fsw.Close() //nolint:errcheck // shutdown

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
		busy    atomic.Bool
	)

	fire := func() {
		if ctx.Err() != nil {
			return
		}
		if !busy.CompareAndSwap(false, true) {
			// Retry once the running callback is done.
			mu.Lock()
			timer.Reset(w.debounce)
			mu.Unlock()
			return
		}
		defer busy.Store(false)

		mu.Lock()
		changed := make([]string, 0, len(pending))
		for p := range pending {
			changed = append(changed, p)
		}
		clear(pending)
		mu.Unlock()
		if len(changed) == 0 || w.cfg.OnChange == nil {
			return
		}
		slices.Sort(changed)

		w.log.Debug("profiles changed", "count", len(changed))
		if err := w.cfg.OnChange(ctx, changed); err != nil {
			w.log.Error("watch callback failed", "error", err)
		}
	}
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: event channel closed")
			}
			if evt.Has(fsnotify.Create) {
				w.addIfDir(evt.Name)
			}
			if !w.relevant(evt.Name) {
				continue
			}
			mu.Lock()
			pending[evt.Name] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: error channel closed")
			}
			if isFatal(err) {
				return fmt.Errorf("watch: %w", err)
			}
			w.log.Warn("watch error", "error", err)
		}
	}
}

// relevant reports whether path lies under a root, is not ignored and
// matches a pattern.
func (w *Watcher) relevant(path string) bool {
	rel, ok := w.relative(path)
	if !ok || matchAny(ignored, rel) {
		return false
	}
	return matchAny(w.patterns, rel)
}

func (w *Watcher) relative(path string) (string, bool) {
	for _, root := range w.roots {
		rel, err := filepath.Rel(root, path)
		if err == nil && rel != ".." && !filepath.IsAbs(rel) && !startsWithParent(rel) {
			return filepath.ToSlash(rel), true
		}
	}
	return "", false
}

func (w *Watcher) addTree(root string) error {
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			w.log.Debug("watch skipped unreadable path", "path", path, "error", err)
			return nil //nolint:nilerr // keep walking
		}
		if !d.IsDir() {
			return nil
		}
		if rel, ok := w.relative(path); ok && rel != "." && matchAny(ignored, rel+"/") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch: add %q: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("watch: walk %q: %w", root, err)
	}
	return nil
}

func (w *Watcher) addIfDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	if err := w.addTree(path); err != nil {
		w.log.Warn("watch new directory", "path", path, "error", err)
	}
}

func matchAny(patterns []string, rel string) bool {
	for _, pat := range patterns {
		if ok, err := doublestar.Match(pat, rel); err == nil && ok {
			return true
		}
	}
	return false
}

func startsWithParent(rel string) bool {
	return len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator)
}

func cmpOr(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}
