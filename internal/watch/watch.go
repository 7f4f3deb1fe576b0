// Package watch turns raw filesystem notifications into coalesced change
// events.
//
// A burst of writes collapses into one ChangeEvent once the tree has been
// quiet for the debounce window. The output channel holds at most one
// pending event; if the consumer is still busy when the next one is ready,
// the pending event is replaced by a merged one. Failures on one root are
// logged and never close the channel.
package watch

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/moby/patternmatcher"
	"golang.org/x/time/rate"
)

// DefaultDebounce is the stability window used when Options.Debounce is unset.
const DefaultDebounce = time.Second

// DefaultIgnore are glob patterns dropped before debouncing.
var DefaultIgnore = []string{
	"**/node_modules",
	"**/.git",
	"**/dist",
	"**/build",
	"**/coverage",
	"**/.nyc_output",
	"**/.next",
	"**/.turbo",
	"**/target",
	"**/*.log",
	"**/*.swp",
	"**/*~",
	"**/.DS_Store",
}

// ChangeEvent is one coalesced notification. Paths is sorted and unique.
type ChangeEvent struct {
	Paths []string
	At    time.Time
}

// Source is a stream of coalesced change events.
type Source interface {
	Events() <-chan ChangeEvent
	Close() error
}

// Options configure a Watcher.
type Options struct {
	// Ignore are glob patterns (dockerignore syntax, "**" supported)
	// matched against paths relative to their watch root.
	Ignore []string

	// Debounce is the quiet period required before an event is emitted.
	Debounce time.Duration

	Logger *slog.Logger
}

// WatchError reports an OS watch failure on one root.
type WatchError struct {
	Root string
	Err  error
}

func (e *WatchError) Error() string {
	return fmt.Sprintf("watch %s: %v", e.Root, e.Err)
}

func (e *WatchError) Unwrap() error {
	return e.Err
}

// Watcher is an fsnotify-backed Source that watches roots recursively.
type Watcher struct {
	roots    []string
	debounce time.Duration
	ignore   *patternmatcher.PatternMatcher
	logger   *slog.Logger

	fs  *fsnotify.Watcher
	out chan ChangeEvent

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New starts watching roots. Roots that do not exist or cannot be watched
// are logged and skipped; New fails only if the OS watcher cannot be
// created or the ignore patterns are invalid.
func New(roots []string, opts Options) (*Watcher, error) {
	w, err := newWatcher(roots, opts)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fs watcher: %w", err)
	}
	w.fs = fw

	for _, root := range w.roots {
		w.addTree(root)
	}

	w.wg.Add(1)
	go w.loop(fw.Events, fw.Errors)

	return w, nil
}

// newWatcher builds a Watcher without an OS watcher attached.
func newWatcher(roots []string, opts Options) (*Watcher, error) {
	patterns := opts.Ignore
	if patterns == nil {
		patterns = DefaultIgnore
	}
	pm, err := patternmatcher.New(patterns)
	if err != nil {
		return nil, fmt.Errorf("invalid ignore patterns: %w", err)
	}

	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	abs := make([]string, 0, len(roots))
	for _, r := range roots {
		p, err := filepath.Abs(r)
		if err != nil {
			continue
		}
		abs = append(abs, p)
	}

	return &Watcher{
		roots:    abs,
		debounce: debounce,
		ignore:   pm,
		logger:   logger.With("component", "watch"),
		out:      make(chan ChangeEvent, 1),
		limiters: make(map[string]*rate.Limiter),
		done:     make(chan struct{}),
	}, nil
}

// Events implements Source.
func (w *Watcher) Events() <-chan ChangeEvent {
	return w.out
}

// Close implements Source. It stops watching and closes the event channel.
// Safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		if w.fs != nil {
			err = w.fs.Close()
		}
		w.wg.Wait()
		close(w.out)
	})
	return err
}

// addTree registers dir and every non-ignored directory below it.
func (w *Watcher) addTree(dir string) {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logWatchError(&WatchError{Root: path, Err: err})
			if d != nil && d.IsDir() && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && w.ignored(path) {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			w.logWatchError(&WatchError{Root: path, Err: err})
		}
		return nil
	})
	if err != nil {
		w.logWatchError(&WatchError{Root: dir, Err: err})
	}
}

// loop owns the pending set and the debounce timer.
func (w *Watcher) loop(events <-chan fsnotify.Event, errs <-chan error) {
	defer w.wg.Done()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	pending := make(map[string]struct{})

	for {
		select {
		case <-w.done:
			return

		case ev, ok := <-events:
			if !ok {
				return
			}
			if !w.accept(ev) {
				continue
			}
			pending[ev.Name] = struct{}{}
			// Every raw event restarts the stability window.
			timer.Reset(w.debounce)

		case err, ok := <-errs:
			if !ok {
				return
			}
			w.logWatchError(&WatchError{Root: "*", Err: err})

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			pending = make(map[string]struct{})
			w.publish(ChangeEvent{Paths: paths, At: time.Now()})
		}
	}
}

// accept filters one raw event and keeps the recursive watch set current.
func (w *Watcher) accept(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	if w.ignored(ev.Name) {
		return false
	}

	if ev.Op&fsnotify.Create != 0 && w.fs != nil {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			w.addTree(ev.Name)
		}
	}

	if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		for _, root := range w.roots {
			if ev.Name == root {
				w.logWatchError(&WatchError{Root: root, Err: errors.New("watch root removed")})
			}
		}
	}
	return true
}

// publish delivers ev without blocking. If an undelivered event is already
// waiting, it is replaced by the union of both.
func (w *Watcher) publish(ev ChangeEvent) {
	ev.Paths = uniqueSorted(ev.Paths)
	select {
	case w.out <- ev:
		return
	default:
	}

	select {
	case old := <-w.out:
		ev.Paths = uniqueSorted(append(ev.Paths, old.Paths...))
	default:
	}

	// This goroutine is the only sender, so the slot is free now.
	select {
	case w.out <- ev:
	default:
	}
}

// ignored reports whether path matches an ignore pattern relative to its root.
func (w *Watcher) ignored(path string) bool {
	rel := w.relative(path)
	if rel == "." || rel == "" {
		return false
	}
	match, err := w.ignore.MatchesOrParentMatches(rel)
	if err != nil {
		return false
	}
	return match
}

func (w *Watcher) relative(path string) string {
	for _, root := range w.roots {
		if path == root {
			return "."
		}
		if strings.HasPrefix(path, root+string(filepath.Separator)) {
			rel, err := filepath.Rel(root, path)
			if err == nil {
				return rel
			}
		}
	}
	return filepath.Base(path)
}

// logWatchError logs a watch failure, at most once per 30s per root.
func (w *Watcher) logWatchError(err *WatchError) {
	w.limiterMu.Lock()
	lim, ok := w.limiters[err.Root]
	if !ok {
		lim = rate.NewLimiter(rate.Every(30*time.Second), 1)
		w.limiters[err.Root] = lim
	}
	w.limiterMu.Unlock()

	if lim.Allow() {
		w.logger.Warn("watch error, continuing with remaining roots", "root", err.Root, "error", err.Err)
	}
}

func uniqueSorted(paths []string) []string {
	sort.Strings(paths)
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if len(out) > 0 && out[len(out)-1] == p {
			continue
		}
		out = append(out, p)
	}
	return out
}
