// Package watch marks validated roots stale when the real directory
// changes on disk between validation and apply.
package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"restruct/internal/logger"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

type trackedRoot struct {
	dirs  map[string]struct{}
	stale bool
}

// Tracker watches validated roots recursively. Any event under a
// tracked root flags it stale until it is tracked again.
type Tracker struct {
	fw     *fsnotify.Watcher
	doneCh chan struct{}

	mu    sync.Mutex
	roots map[string]*trackedRoot
}

func New() (*Tracker, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	t := &Tracker{
		fw:     fw,
		doneCh: make(chan struct{}),
		roots:  make(map[string]*trackedRoot),
	}

	go t.run()
	return t, nil
}

// Track (re)arms the watch for root and clears its stale flag. Called
// after each successful validation.
func (t *Tracker) Track(root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.roots[absRoot]; ok {
		for dir := range existing.dirs {
			_ = t.fw.Remove(dir)
		}
	}

	tracked := &trackedRoot{dirs: make(map[string]struct{})}
	err = filepath.WalkDir(absRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}

		if err := t.fw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		tracked.dirs[path] = struct{}{}
		return nil
	})
	if err != nil {
		for dir := range tracked.dirs {
			_ = t.fw.Remove(dir)
		}
		return err
	}

	t.roots[absRoot] = tracked
	logger.Log.Debug("tracking root",
		zap.String("root", absRoot),
		zap.Int("dirs", len(tracked.dirs)))
	return nil
}

// Stale reports whether root changed on disk since it was last tracked.
// Unknown roots are never stale.
func (t *Tracker) Stale(root string) bool {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	tracked, ok := t.roots[absRoot]
	return ok && tracked.stale
}

// Forget drops the watch for root, typically after its session ends.
func (t *Tracker) Forget(root string) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	tracked, ok := t.roots[absRoot]
	if !ok {
		return
	}

	for dir := range tracked.dirs {
		_ = t.fw.Remove(dir)
	}
	delete(t.roots, absRoot)
}

// Roots returns each tracked root with its staleness.
func (t *Tracker) Roots() map[string]bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]bool, len(t.roots))
	for root, tracked := range t.roots {
		out[root] = tracked.stale
	}
	return out
}

func (t *Tracker) Stop() {
	close(t.doneCh)
	_ = t.fw.Close()
}

func (t *Tracker) run() {
	for {
		select {
		case <-t.doneCh:
			return

		case event, ok := <-t.fw.Events:
			if !ok {
				return
			}
			t.handle(event)

		case err, ok := <-t.fw.Errors:
			if !ok {
				return
			}
			logger.Log.Error("watcher error", zap.Error(err))
		}
	}
}

func (t *Tracker) handle(event fsnotify.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for root, tracked := range t.roots {
		if event.Name != root && !strings.HasPrefix(event.Name, root+string(filepath.Separator)) {
			continue
		}

		if !tracked.stale {
			tracked.stale = true
			logger.Log.Info("tracked root changed on disk",
				zap.String("root", root),
				zap.String("path", event.Name))
		}

		if event.Op.Has(fsnotify.Create) {
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				if err := t.fw.Add(event.Name); err == nil {
					tracked.dirs[event.Name] = struct{}{}
				}
			}
		}
	}
}
