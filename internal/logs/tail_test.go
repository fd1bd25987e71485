package logs

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func writeLog(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLatestPicksNewestMatch(t *testing.T) {
	dir := t.TempDir()
	if _, err := Latest(dir, "mouthsync-*.log"); !errors.Is(err, ErrNoLogs) {
		t.Fatalf("expected ErrNoLogs, got %v", err)
	}

	older := filepath.Join(dir, "mouthsync-20260101T000000.000Z.log")
	newer := filepath.Join(dir, "mouthsync-20260102T000000.000Z.log")
	writeLog(t, older, "a\n")
	writeLog(t, newer, "b\n")
	writeLog(t, filepath.Join(dir, "other.log"), "c\n")
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(older, past, past); err != nil {
		t.Fatal(err)
	}

	got, err := Latest(dir, "mouthsync-*.log")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if got != newer {
		t.Fatalf("expected %s, got %s", newer, got)
	}
}

func TestTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	writeLog(t, path, "one\ntwo\nthree\nfour\n")

	lines, offset, err := Tail(path, 2)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if strings.Join(lines, ",") != "three,four" {
		t.Fatalf("unexpected lines %v", lines)
	}
	if offset != int64(len("one\ntwo\nthree\nfour\n")) {
		t.Fatalf("unexpected offset %d", offset)
	}

	lines, _, err = Tail(path, 10)
	if err != nil || len(lines) != 4 {
		t.Fatalf("expected all 4 lines, got %v (%v)", lines, err)
	}

	lines, offset, err = Tail(path, 0)
	if err != nil || lines != nil || offset == 0 {
		t.Fatalf("expected end offset only, got %v %d %v", lines, offset, err)
	}

	if _, _, err := Tail(filepath.Join(t.TempDir(), "missing.log"), 5); err == nil {
		t.Fatal("expected error for missing file")
	}
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestFollowStreamsCompleteLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	writeLog(t, path, "old\n")
	_, offset, err := Tail(path, 0)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	out := &lockedBuffer{}
	done := make(chan error, 1)
	go func() { done <- Follow(ctx, path, offset, out) }()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("new\npart"); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()

	deadline := time.Now().Add(5 * time.Second)
	for out.String() != "new\n" && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Follow: %v", err)
	}
	if out.String() != "new\n" {
		t.Fatalf("expected only the complete new line, got %q", out.String())
	}
}
