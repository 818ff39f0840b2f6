// Package watcher follows the archive directory with fsnotify and reports
// story files that were written or removed, debounced per file.
package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// Watcher watches one flat directory. Callbacks receive base file names.
type Watcher struct {
	dir         string
	match       func(name string) bool
	onChange    func(name string)
	onRemove    func(name string)
	debounce    time.Duration
	watcher     *fsnotify.Watcher
	mu          sync.Mutex
	debounceMap map[string]*time.Timer
	done        chan struct{}
	stopped     chan struct{}
	started     bool
	closed      bool
	stopOnce    sync.Once
	logger      *zap.Logger
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce sets how long a file must stay quiet before onChange runs.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// NewWatcher creates a watcher for dir. match selects the file names of
// interest; nil matches every file.
func NewWatcher(dir string, match func(name string) bool, onChange, onRemove func(name string), opts ...WatcherOption) *Watcher {
	w := &Watcher{
		dir:         filepath.Clean(dir),
		match:       match,
		onChange:    onChange,
		onRemove:    onRemove,
		debounce:    defaultDebounce,
		debounceMap: make(map[string]*time.Timer),
		done:        make(chan struct{}),
		stopped:     make(chan struct{}),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = zap.NewNop()
	}
	return w
}

// Start creates the directory if needed and begins watching. It runs until
// ctx is cancelled or Stop is called. A stopped Watcher cannot be restarted.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}
	if w.closed {
		return errors.New("watcher already stopped")
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(w.dir); err != nil {
		_ = watcher.Close()
		return err
	}
	w.watcher = watcher
	w.started = true
	w.logger.Debug("watcher starting", zap.String("dir", w.dir), zap.Duration("debounce", w.debounce))
	go w.run(ctx, watcher)
	return nil
}

func (w *Watcher) run(ctx context.Context, watcher *fsnotify.Watcher) {
	defer close(w.stopped)
	for {
		select {
		case <-ctx.Done():
			w.shutdown()
			return
		case <-w.done:
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if filepath.Dir(filepath.Clean(ev.Name)) != w.dir {
		return
	}
	name := filepath.Base(ev.Name)
	if w.match != nil && !w.match(name) {
		return
	}
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("file", name))
	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.cancelDebounce(name)
		if w.onRemove != nil {
			w.onRemove(name)
		}
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			return
		}
		w.debounceChange(name)
	}
}

func (w *Watcher) debounceChange(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	if t, ok := w.debounceMap[name]; ok {
		t.Stop()
	}
	w.debounceMap[name] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.debounceMap, name)
		live := w.started
		w.mu.Unlock()
		if !live {
			return
		}
		w.logger.Debug("watcher file changed (debounced)", zap.String("file", name))
		if w.onChange != nil {
			w.onChange(name)
		}
	})
}

func (w *Watcher) cancelDebounce(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[name]; ok {
		t.Stop()
		delete(w.debounceMap, name)
	}
}

// SyncExisting calls onChange for every matching file already in the directory.
func (w *Watcher) SyncExisting() error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || (w.match != nil && !w.match(e.Name())) {
			continue
		}
		if w.onChange != nil {
			w.onChange(e.Name())
		}
	}
	return nil
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string { return w.dir }

// Stop stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Stop() {
	if !w.shutdown() {
		return
	}
	<-w.stopped
}

// shutdown releases the fsnotify watcher and pending timers. It reports
// whether the watcher was running.
func (w *Watcher) shutdown() bool {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return false
	}
	for name, t := range w.debounceMap {
		t.Stop()
		delete(w.debounceMap, name)
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.closed = true
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
	return true
}
