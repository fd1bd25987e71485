package main

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"mouthsync/internal/deps"
	"mouthsync/internal/history"
	"mouthsync/internal/preflight"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Rhubarb", statusError, "Not found", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Rhubarb:", "[ERROR] Not found")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Rhubarb", statusOK, "Ready", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestDependencyLines(t *testing.T) {
	statuses := []deps.Status{
		{Name: "Rhubarb Lip Sync", Available: false},
		{Name: "pocketSphinx resources", Available: true, Command: "/opt/rhubarb/res/sphinx"},
		{Name: "ntfy", Available: false, Optional: true, Detail: "not configured"},
	}
	lines := dependencyLines(statuses, false)
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "[ERROR]") || !strings.Contains(lines[0], "1 required missing") {
		t.Fatalf("unexpected summary line %q", lines[0])
	}
	if !strings.Contains(lines[2], "Available (/opt/rhubarb/res/sphinx)") {
		t.Fatalf("unexpected available line %q", lines[2])
	}
	if !strings.Contains(lines[3], "[WARN] not configured") {
		t.Fatalf("unexpected optional line %q", lines[3])
	}

	lines = dependencyLines(statuses[1:], false)
	if !strings.Contains(lines[0], "[WARN] 1 optional missing") {
		t.Fatalf("expected optional summary, got %q", lines[0])
	}
}

func TestCheckLines(t *testing.T) {
	lines := checkLines([]preflight.Result{
		{Name: "State directory", Passed: true, Detail: "/tmp/state (read/write ok)"},
		{Name: "Rhubarb", Detail: "executable_path not configured"},
	}, false)
	if !strings.Contains(lines[0], "[OK]") || !strings.Contains(lines[1], "[ERROR] executable_path") {
		t.Fatalf("unexpected lines %q", lines)
	}
}

func TestRenderRunDetail(t *testing.T) {
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	run := &history.Run{
		RunID:      "0f3c2a1e-aaaa-bbbb-cccc-123456789abc",
		Status:     history.StatusCancelled,
		Mode:       "bone",
		AudioFile:  "/audio/line.wav",
		ErrorText:  "external tool error: rhubarb: analyze: Unsupported file type",
		StartedAt:  started,
		FinishedAt: started.Add(1500 * time.Millisecond),
		CueCount:   9,
	}
	out := renderRunDetail(run, started.Add(time.Hour))
	for _, want := range []string{"Status:      cancelled", "Took:        1.5s", "1 hour ago", "Unsupported file type"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in\n%s", want, out)
		}
	}
	if strings.Contains(out, "Cues:") {
		t.Fatalf("cancelled runs should not report cue counts:\n%s", out)
	}
	if shortID(run.RunID) != "0f3c2a1e" {
		t.Fatalf("unexpected short id %q", shortID(run.RunID))
	}
}
