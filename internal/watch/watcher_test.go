package watch_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"mouthsync/internal/watch"
)

type recorder struct {
	mu      sync.Mutex
	batches [][]string
	notify  chan struct{}
}

func newRecorder() *recorder {
	return &recorder{notify: make(chan struct{}, 16)}
}

func (r *recorder) handle(_ context.Context, changed []string) error {
	r.mu.Lock()
	r.batches = append(r.batches, append([]string(nil), changed...))
	r.mu.Unlock()
	r.notify <- struct{}{}
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func (r *recorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.notify:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change batch")
	}
}

func startWatcher(t *testing.T, paths []string, rec *recorder) context.CancelFunc {
	t.Helper()
	w, err := watch.New(paths, 50*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, rec.handle) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run returned %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("watcher did not stop")
		}
	})
	return cancel
}

func TestWatcherDebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	audio := filepath.Join(dir, "line.wav")
	dialog := filepath.Join(dir, "line.txt")
	if err := os.WriteFile(audio, []byte("v0"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dialog, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := newRecorder()
	startWatcher(t, []string{audio, dialog, ""}, rec)

	for i := 1; i <= 5; i++ {
		if err := os.WriteFile(audio, []byte{'v', byte('0' + i)}, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(dialog, []byte("hello there"), 0o644); err != nil {
		t.Fatal(err)
	}
	rec.wait(t)

	time.Sleep(200 * time.Millisecond)
	if rec.count() != 1 {
		t.Fatalf("expected a single debounced batch, got %d", rec.count())
	}
	rec.mu.Lock()
	batch := rec.batches[0]
	rec.mu.Unlock()
	// Batches are sorted by path: line.txt before line.wav.
	if len(batch) != 2 || batch[0] != dialog || batch[1] != audio {
		t.Fatalf("expected sorted batch [%s %s], got %v", dialog, audio, batch)
	}
}

func TestWatcherIgnoresUnchangedContentAndOtherFiles(t *testing.T) {
	dir := t.TempDir()
	audio := filepath.Join(dir, "line.wav")
	if err := os.WriteFile(audio, []byte("same"), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := newRecorder()
	startWatcher(t, []string{audio}, rec)

	if err := os.WriteFile(audio, []byte("same"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "rig.toml"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)
	if rec.count() != 0 {
		t.Fatalf("expected no batches, got %d", rec.count())
	}

	if err := os.WriteFile(audio, []byte("different"), 0o644); err != nil {
		t.Fatal(err)
	}
	rec.wait(t)
}

func TestWatcherSeesRenameSaves(t *testing.T) {
	dir := t.TempDir()
	audio := filepath.Join(dir, "line.wav")
	if err := os.WriteFile(audio, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := newRecorder()
	startWatcher(t, []string{audio}, rec)

	tmp := filepath.Join(dir, ".line.wav.swp")
	if err := os.WriteFile(tmp, []byte("v2"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, audio); err != nil {
		t.Fatal(err)
	}
	rec.wait(t)
}

func TestNewRequiresFiles(t *testing.T) {
	if _, err := watch.New(nil, 0, nil); err == nil {
		t.Fatal("expected error with no paths")
	}
	if _, err := watch.New([]string{filepath.Join(t.TempDir(), "missing.wav")}, 0, nil); err == nil {
		t.Fatal("expected error for missing file")
	}
}
