package lipsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"mouthsync/internal/services"
	"mouthsync/internal/services/rhubarb"
)

func newDriver(t *testing.T, proc *fakeProcess, timers Timers, poses *fakePoses) (*Driver, string) {
	t.Helper()
	return &Driver{
		Host: Host{
			Scene:  fakeScene{fps: 24},
			Poses:  poses,
			Timers: timers,
		},
		Settings: Settings{
			Mode:          ModeBone,
			Shapes:        NewShapeMap(map[string]int{"mouth_a": 0, "mouth_b": 1}),
			HoldThreshold: DefaultHoldThreshold,
			PollTimeout:   time.Millisecond,
		},
		Options: []RunOption{WithLauncher(&fakeLauncher{proc: proc})},
	}, writeAnalyzerFile(t)
}

func TestDriverRunsToCompletion(t *testing.T) {
	proc := &fakeProcess{snapshots: []rhubarb.Snapshot{
		{},
		{Diagnostics: []string{`{"type":"progress","value":0.5}`}},
		{Exited: true, Stdout: []byte(resultAB)},
	}}
	timers := &autoTimers{}
	poses := &fakePoses{selected: 1}
	driver, exe := newDriver(t, proc, timers, poses)

	var started string
	driver.OnStart = func(run *Run) { started = run.ID() }
	ctx := services.WithRunID(context.Background(), "run-fixed")
	outcome := driver.Run(ctx, Request{AudioFile: "line.wav", ExecutablePath: exe})

	if outcome.State != StateFinished || outcome.Err != nil {
		t.Fatalf("outcome = %+v", outcome)
	}
	if outcome.RunID != "run-fixed" || started != "run-fixed" {
		t.Fatalf("run id = %q, started = %q", outcome.RunID, started)
	}
	if outcome.Summary.Cues != 2 || outcome.Summary.Holds != 1 {
		t.Fatalf("summary = %+v", outcome.Summary)
	}
	if proc.polls != 3 {
		t.Fatalf("polls = %d, want 3", proc.polls)
	}
	if timers.stopped != 1 || proc.killed != 1 {
		t.Fatalf("resources not released: timers stopped=%d killed=%d", timers.stopped, proc.killed)
	}
}

func TestDriverContextCancellation(t *testing.T) {
	proc := &fakeProcess{}
	timers := &fakeTimers{}
	poses := &fakePoses{selected: 1}
	driver, exe := newDriver(t, proc, timers, poses)

	ctx, cancel := context.WithCancel(context.Background())
	driver.OnStart = func(*Run) { cancel() }
	outcome := driver.Run(ctx, Request{AudioFile: "line.wav", ExecutablePath: exe})

	if outcome.State != StateCancelled || !errors.Is(outcome.Err, context.Canceled) {
		t.Fatalf("outcome = %+v", outcome)
	}
	if proc.killed != 1 || timers.timers[0].stopped != 1 {
		t.Fatalf("resources not released: killed=%d stopped=%d", proc.killed, timers.timers[0].stopped)
	}
	if len(poses.keys) != 0 {
		t.Fatal("cancelled run must not key the rig")
	}
}

func TestDriverPreconditionFailure(t *testing.T) {
	proc := &fakeProcess{}
	driver, exe := newDriver(t, proc, &fakeTimers{}, &fakePoses{selected: 0})

	outcome := driver.Run(context.Background(), Request{AudioFile: "line.wav", ExecutablePath: exe})
	if outcome.State != StateIdle || !errors.Is(outcome.Err, services.ErrPrecondition) {
		t.Fatalf("outcome = %+v", outcome)
	}
	if services.FailureStatus(outcome.Err) != "rejected" {
		t.Fatalf("precondition failures should be rejected, got %s", services.FailureStatus(outcome.Err))
	}
}
