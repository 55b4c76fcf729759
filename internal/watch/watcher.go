// Package watch triggers ingestion passes when files under a source root
// change.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"docrag/internal/contextutil"
	"docrag/internal/source"
)

// DefaultDebounce is how long a source must be quiet before a pass runs.
const DefaultDebounce = 500 * time.Millisecond

// TriggerFunc runs an ingestion pass for the source with the given ID.
type TriggerFunc func(ctx context.Context, sourceID string)

// matcher is implemented by sources that filter files by extension.
type matcher interface {
	Matches(path string) bool
}

// Watcher watches the roots of a set of sources recursively and calls a
// TriggerFunc for the owning source once its files stop changing.
// A change that lands while a pass of the same source is running may only be
// picked up by the following pass.
type Watcher struct {
	fsw      *fsnotify.Watcher
	sources  []source.Source
	trigger  TriggerFunc
	debounce time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
	fire   chan string
	done   chan struct{}
	wg     sync.WaitGroup
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before a triggered pass.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// New creates a Watcher for sources. Roots that do not exist yet are
// skipped with a warning; the periodic pass reports them.
func New(ctx context.Context, sources []source.Source, trigger TriggerFunc, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{
		fsw:      fsw,
		sources:  sources,
		trigger:  trigger,
		debounce: DefaultDebounce,
		timers:   make(map[string]*time.Timer),
		fire:     make(chan string, len(sources)+1),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	logger := contextutil.LoggerFromContext(ctx)
	for _, src := range sources {
		if err := w.addRecursive(src.Root()); err != nil {
			logger.WarnContext(ctx, "not watching source root", "source_id", src.ID(), "error", err)
		}
	}
	return w, nil
}

// Run processes file events until ctx is cancelled. It closes the
// underlying watcher and waits for triggered passes before returning.
func (w *Watcher) Run(ctx context.Context) error {
	logger := contextutil.LoggerFromContext(ctx)
	defer func() {
		close(w.done)
		w.stopTimers()
		_ = w.fsw.Close()
		w.wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			sourceID, ok := w.handle(ctx, event)
			if !ok {
				continue
			}
			logger.DebugContext(ctx, "file changed", "source_id", sourceID, "path", event.Name, "op", event.Op.String())
			w.schedule(sourceID)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			logger.WarnContext(ctx, "file watcher error", "error", err)
		case sourceID := <-w.fire:
			w.wg.Add(1)
			go func() {
				defer w.wg.Done()
				w.trigger(ctx, sourceID)
			}()
		}
	}
}

// handle maps an event to the source it concerns. New directories are
// added to the watch list.
func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) (string, bool) {
	if event.Op == fsnotify.Chmod {
		return "", false
	}

	src, ok := w.owner(event.Name)
	if !ok {
		return "", false
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				contextutil.LoggerFromContext(ctx).WarnContext(ctx, "failed to watch new directory", "path", event.Name, "error", err)
			}
			// Files created together with the directory have no events of their own.
			return src.ID(), true
		}
	}

	// A removed or renamed path may have been a directory full of documents.
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		return src.ID(), true
	}

	if m, ok := src.(matcher); ok && !m.Matches(event.Name) {
		return "", false
	}
	return src.ID(), true
}

// owner returns the source with the deepest root containing path.
func (w *Watcher) owner(path string) (source.Source, bool) {
	var best source.Source
	for _, src := range w.sources {
		if _, err := src.Identify(path); err != nil {
			continue
		}
		if best == nil || len(src.Root()) > len(best.Root()) {
			best = src
		}
	}
	return best, best != nil
}

// schedule (re)starts the debounce timer of a source.
func (w *Watcher) schedule(sourceID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[sourceID]; ok {
		t.Reset(w.debounce)
		return
	}
	w.timers[sourceID] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, sourceID)
		w.mu.Unlock()
		select {
		case w.fire <- sourceID:
		case <-w.done:
		}
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for id, t := range w.timers {
		t.Stop()
		delete(w.timers, id)
	}
}

// addRecursive watches dir and every non-hidden directory below it.
func (w *Watcher) addRecursive(dir string) error {
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
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}
