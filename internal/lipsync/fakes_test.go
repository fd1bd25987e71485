package lipsync

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"mouthsync/internal/services/rhubarb"
)

type fakeProcess struct {
	mu        sync.Mutex
	snapshots []rhubarb.Snapshot
	polls     int
	killed    int
	waits     []time.Duration
}

func (p *fakeProcess) Poll(wait time.Duration) rhubarb.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.waits = append(p.waits, wait)
	p.polls++
	if len(p.snapshots) == 0 {
		return rhubarb.Snapshot{}
	}
	snap := p.snapshots[0]
	if len(p.snapshots) > 1 {
		p.snapshots = p.snapshots[1:]
	}
	return snap
}

func (p *fakeProcess) Kill() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.killed++
	return nil
}

func (p *fakeProcess) Pid() int { return 4242 }

type fakeLauncher struct {
	proc   *fakeProcess
	binary string
	args   []string
	calls  int
}

func (l *fakeLauncher) Launch(_ context.Context, binary string, args []string) (rhubarb.Process, error) {
	l.calls++
	l.binary = binary
	l.args = append([]string(nil), args...)
	return l.proc, nil
}

type fakeTimer struct {
	ch      chan time.Time
	stopped int
}

func (t *fakeTimer) C() <-chan time.Time { return t.ch }

func (t *fakeTimer) Stop() { t.stopped++ }

type fakeTimers struct {
	timers    []*fakeTimer
	intervals []time.Duration
}

func (f *fakeTimers) Add(interval time.Duration) Timer {
	timer := &fakeTimer{ch: make(chan time.Time, 1)}
	f.intervals = append(f.intervals, interval)
	f.timers = append(f.timers, timer)
	return timer
}

// autoTimers fires continuously so Driver.Run advances without waiting.
type autoTimers struct {
	mu      sync.Mutex
	stopped int
}

type autoTimer struct {
	parent *autoTimers
	ch     chan time.Time
	done   chan struct{}
	once   sync.Once
}

func (a *autoTimers) Add(time.Duration) Timer {
	t := &autoTimer{parent: a, ch: make(chan time.Time), done: make(chan struct{})}
	go func() {
		for {
			select {
			case t.ch <- time.Now():
			case <-t.done:
				return
			}
		}
	}()
	return t
}

func (t *autoTimer) C() <-chan time.Time { return t.ch }

func (t *autoTimer) Stop() {
	t.once.Do(func() {
		close(t.done)
		t.parent.mu.Lock()
		t.parent.stopped++
		t.parent.mu.Unlock()
	})
}

type progressEvent struct {
	kind    string
	value   float64
	message string
}

type fakeProgress struct {
	mu     sync.Mutex
	events []progressEvent
}

func (p *fakeProgress) Begin(min, max float64) {
	p.record(progressEvent{kind: "begin", value: max})
}

func (p *fakeProgress) Update(value float64, message string) {
	p.record(progressEvent{kind: "update", value: value, message: message})
}

func (p *fakeProgress) End() { p.record(progressEvent{kind: "end"}) }

func (p *fakeProgress) record(e progressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *fakeProgress) count(kind string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.kind == kind {
			n++
		}
	}
	return n
}

type report struct {
	level   Level
	message string
}

type fakeReporter struct {
	reports []report
}

func (r *fakeReporter) Report(level Level, message string) {
	r.reports = append(r.reports, report{level: level, message: message})
}

type fakeScene struct {
	fps        float64
	startFrame int
}

func (s fakeScene) FPS() float64 { return s.fps }

func (s fakeScene) StartFrame() int { return s.startFrame }

type poseCall struct {
	pose  int
	frame int
}

type fakePoses struct {
	selected int
	current  int
	keys     []poseCall
	applied  []int
	panicAt  int
}

func (p *fakePoses) SelectedCount() int { return p.selected }

func (p *fakePoses) ApplyPose(index int) error {
	p.current = index
	p.applied = append(p.applied, index)
	return nil
}

func (p *fakePoses) KeySelected(frame int) (int, error) {
	if p.panicAt > 0 && frame == p.panicAt {
		panic("bone vanished")
	}
	p.keys = append(p.keys, poseCall{pose: p.current, frame: frame})
	return p.selected * 3, nil
}

type layerKey struct {
	layer  int
	frame  int
	hidden bool
}

type fakeLayers struct {
	hidden []bool
	keys   []layerKey
}

func newFakeLayers(count int) *fakeLayers {
	return &fakeLayers{hidden: make([]bool, count)}
}

func (l *fakeLayers) LayerCount() int { return len(l.hidden) }

func (l *fakeLayers) SetLayerHidden(index int, hidden bool) error {
	l.hidden[index] = hidden
	return nil
}

func (l *fakeLayers) KeyLayerVisibility(index, frame int) error {
	l.keys = append(l.keys, layerKey{layer: index, frame: frame, hidden: l.hidden[index]})
	return nil
}

func writeAnalyzerFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rhubarb")
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o644); err != nil {
		t.Fatalf("write analyzer: %v", err)
	}
	return path
}

const resultAB = `{"metadata":{"soundFile":"line.wav","duration":1.5},"mouthCues":[{"start":0.0,"end":1.0,"value":"A"},{"start":1.0,"end":1.5,"value":"B"}]}`
