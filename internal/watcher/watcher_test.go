package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu      sync.Mutex
	changed []string
	removed []string
}

func (r *recorder) change(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changed = append(r.changed, name)
}

func (r *recorder) remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, name)
}

func (r *recorder) snapshot() ([]string, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.changed...), append([]string(nil), r.removed...)
}

func isJSON(name string) bool { return strings.HasSuffix(name, ".json") }

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWatcher_DebounceAndFilter(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	w := NewWatcher(dir, isJSON, rec.change, rec.remove, WithDebounce(100*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "historia_20240101_093000.json")
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte(`{"content":{}}`), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool {
		changed, _ := rec.snapshot()
		return len(changed) > 0
	})
	time.Sleep(250 * time.Millisecond)
	changed, _ := rec.snapshot()
	if len(changed) != 1 || changed[0] != "historia_20240101_093000.json" {
		t.Errorf("changed = %v, want one debounced event for the json file", changed)
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		_, removed := rec.snapshot()
		return len(removed) == 1 && removed[0] == "historia_20240101_093000.json"
	})
}

func TestWatcher_CreatesDirAndSyncsExisting(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "stories")
	rec := &recorder{}
	w := NewWatcher(dir, isJSON, rec.change, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("watched dir not created: %v", err)
	}
	for _, name := range []string{"a.json", "b.json", "c.md"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	w.Stop()

	rec = &recorder{}
	w2 := NewWatcher(dir, isJSON, rec.change, nil)
	if err := w2.SyncExisting(); err != nil {
		t.Fatal(err)
	}
	changed, _ := rec.snapshot()
	if len(changed) != 2 {
		t.Errorf("SyncExisting reported %v", changed)
	}
}

func TestWatcher_StopOnContextCancel(t *testing.T) {
	w := NewWatcher(t.TempDir(), nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()
	select {
	case <-w.stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher goroutine did not exit")
	}
	w.Stop()
}

func TestWatcher_StopIdempotent(t *testing.T) {
	w := NewWatcher(t.TempDir(), nil, nil, nil)
	w.Stop()
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	w.Stop()
	w.Stop()
}

func TestWatcher_NoRestart(t *testing.T) {
	w := NewWatcher(t.TempDir(), nil, nil, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	w.Stop()
	if err := w.Start(context.Background()); err == nil {
		t.Fatal("expected error restarting a stopped watcher")
	}
}
