// Package watcher re-triggers synchronization when a watched directory
// changes. It watches the directory and its immediate subdirectories, the
// depth the synchronizer maintains, and coalesces bursts of events.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jamesainslie/manifestsync/pkg/manifestsync/logging"
)

// DefaultDebounce is the quiet period before a batch of changes is delivered.
const DefaultDebounce = 500 * time.Millisecond

// ChangeFunc receives the sorted set of paths changed during a quiet period.
type ChangeFunc func(ctx context.Context, changed []string) error

// Watcher watches one directory tree, two levels deep.
type Watcher struct {
	fsw      *fsnotify.Watcher
	root     string
	debounce time.Duration

	mu      sync.Mutex
	paths   map[string]bool
	ignored map[string]bool
	closed  bool
}

// New starts watching root and its immediate subdirectories. A debounce of
// zero or less uses DefaultDebounce.
func New(root string, debounce time.Duration) (*Watcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w := &Watcher{
		fsw:      fsw,
		root:     absRoot,
		debounce: debounce,
		paths:    make(map[string]bool),
		ignored:  make(map[string]bool),
	}

	if err := w.add(absRoot); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	entries, err := os.ReadDir(absRoot)
	if err != nil {
		_ = fsw.Close()
		return nil, err
	}
	for _, e := range entries {
		if e.IsDir() {
			if err := w.add(filepath.Join(absRoot, e.Name())); err != nil {
				_ = fsw.Close()
				return nil, err
			}
		}
	}
	return w, nil
}

// Ignore drops events for the given paths, e.g. a manifest that lives
// inside the watched tree.
func (w *Watcher) Ignore(paths ...string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, p := range paths {
		if abs, err := filepath.Abs(p); err == nil {
			w.ignored[abs] = true
		}
	}
}

// Watched returns the watched directories, sorted.
func (w *Watcher) Watched() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.paths))
	for p := range w.paths {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

func (w *Watcher) add(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || w.paths[dir] {
		return nil
	}
	if err := w.fsw.Add(dir); err != nil {
		logging.Get("watcher").Warn("failed to add watch", "path", dir, "error", err)
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	w.paths[dir] = true
	return nil
}

func (w *Watcher) forget(dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.paths, dir)
}

// Run delivers debounced change batches to onChange until ctx is done.
// Errors from onChange are logged and do not stop the loop.
func (w *Watcher) Run(ctx context.Context, onChange ChangeFunc) error {
	log := logging.Get("watcher")

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	pending := make(map[string]bool)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watcher closed")
			}
			if !w.relevant(event) {
				continue
			}
			w.track(event)
			pending[event.Name] = true
			timer.Reset(w.debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watcher closed")
			}
			log.Error("watcher error", "error", err)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			slices.Sort(changed)
			clear(pending)

			log.Debug("changes settled", "count", len(changed))
			if err := onChange(ctx, changed); err != nil {
				log.Error("change handler failed", "error", err)
			}
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.ignored[event.Name]
}

// track keeps the watch list in step with first-level directories.
func (w *Watcher) track(event fsnotify.Event) {
	switch {
	case event.Has(fsnotify.Create):
		if filepath.Dir(event.Name) != w.root {
			return
		}
		if info, err := os.Lstat(event.Name); err == nil && info.IsDir() {
			_ = w.add(event.Name)
		}
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.forget(event.Name)
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	return w.fsw.Close()
}
