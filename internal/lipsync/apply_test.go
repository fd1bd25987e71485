package lipsync

import (
	"reflect"
	"testing"
)

func TestFrameForRoundsHalfToEven(t *testing.T) {
	tests := []struct {
		start      float64
		fps        float64
		startFrame int
		want       int
	}{
		{0, 24, 0, 0},
		{1.0, 24, 0, 24},
		{1.25, 2, 0, 2},
		{1.75, 2, 0, 4},
		{0.5, 1, 10, 10},
		{1.5, 1, 10, 12},
		{0.3, 24, 1, 8},
	}
	for _, tt := range tests {
		if got := FrameFor(tt.start, tt.fps, tt.startFrame); got != tt.want {
			t.Fatalf("FrameFor(%v, %v, %d) = %d, want %d", tt.start, tt.fps, tt.startFrame, got, tt.want)
		}
	}
}

func TestApplyCuesBoneModeInsertsHoldKey(t *testing.T) {
	poses := &fakePoses{selected: 2}
	applier := Applier{
		Mode:          ModeBone,
		Shapes:        NewShapeMap(map[string]int{"mouth_a": 1, "mouth_b": 2}),
		HoldThreshold: DefaultHoldThreshold,
		Poses:         poses,
	}
	cues := []Cue{{Start: 0.0, End: 1.0, Value: "A"}, {Start: 1.0, End: 1.5, Value: "B"}}

	summary, err := applier.ApplyCues(cues, 24, 0)
	if err != nil {
		t.Fatalf("ApplyCues returned error: %v", err)
	}
	want := []poseCall{{pose: 1, frame: 0}, {pose: 1, frame: 20}, {pose: 2, frame: 24}}
	if !reflect.DeepEqual(poses.keys, want) {
		t.Fatalf("keys = %+v, want %+v", poses.keys, want)
	}
	if summary.Cues != 2 || summary.Holds != 1 || summary.Keys != 3*2*3 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.FirstFrame != 0 || summary.LastFrame != 24 {
		t.Fatalf("frames = %d..%d", summary.FirstFrame, summary.LastFrame)
	}
	labels := []string{}
	for _, step := range summary.Steps {
		labels = append(labels, step.Label)
	}
	if !reflect.DeepEqual(labels, []string{"mouth_a", "mouth_a", "mouth_b"}) {
		t.Fatalf("labels = %v", labels)
	}
	if !summary.Steps[1].Hold {
		t.Fatal("expected second step to be the hold key")
	}
}

func TestApplyCuesHoldUsesRestPoseBeforeFirstLateCue(t *testing.T) {
	poses := &fakePoses{selected: 1}
	applier := Applier{Mode: ModeBone, Shapes: NewShapeMap(map[string]int{"mouth_x": 5}), HoldThreshold: 4, Poses: poses}

	if _, err := applier.ApplyCues([]Cue{{Start: 0.5, Value: "X"}}, 24, 0); err != nil {
		t.Fatalf("ApplyCues: %v", err)
	}
	want := []poseCall{{pose: 0, frame: 8}, {pose: 5, frame: 12}}
	if !reflect.DeepEqual(poses.keys, want) {
		t.Fatalf("keys = %+v, want %+v", poses.keys, want)
	}
}

func TestApplyCuesFramesNonDecreasingWithStartFrame(t *testing.T) {
	poses := &fakePoses{selected: 1}
	applier := Applier{Mode: ModeBone, Shapes: NewShapeMap(nil), HoldThreshold: 4, Poses: poses}
	cues := []Cue{{Start: 0, Value: "X"}, {Start: 0.04, Value: "A"}, {Start: 0.08, Value: "B"}, {Start: 0.5, Value: "C"}}

	summary, err := applier.ApplyCues(cues, 25, 100)
	if err != nil {
		t.Fatalf("ApplyCues: %v", err)
	}
	last := -1
	for _, key := range poses.keys {
		if key.frame < last {
			t.Fatalf("frames decreased: %+v", poses.keys)
		}
		last = key.frame
	}
	if summary.FirstFrame != 96 {
		t.Fatalf("first frame = %d; the first cue at 100 follows a hold at 96", summary.FirstFrame)
	}
}

func TestApplyCuesUnmappedFallsBackToPoseZero(t *testing.T) {
	poses := &fakePoses{selected: 1}
	applier := Applier{Mode: ModeBone, Shapes: NewShapeMap(map[string]int{"mouth_a": 3}), HoldThreshold: 4, Poses: poses}

	summary, err := applier.ApplyCues([]Cue{{Start: 0, Value: "A"}, {Start: 0.1, Value: "Q"}, {Start: 0.15, Value: "q"}}, 24, 0)
	if err != nil {
		t.Fatalf("ApplyCues: %v", err)
	}
	if !reflect.DeepEqual(poses.applied, []int{3, 0, 0}) {
		t.Fatalf("applied poses = %v", poses.applied)
	}
	if !reflect.DeepEqual(summary.Unmapped, []string{"mouth_q"}) {
		t.Fatalf("unmapped = %v", summary.Unmapped)
	}
}

func TestApplyCuesLayerMode(t *testing.T) {
	layers := newFakeLayers(3)
	applier := Applier{
		Mode: ModeLayer,
		Shapes: NewShapeMap(map[string]int{
			"mouth_a": 0,
			"mouth_b": 1,
			"mouth_x": 2,
			"mouth_e": 7, // out of range, skipped
		}),
		HoldThreshold: 4,
		Layers:        layers,
	}
	cues := []Cue{{Start: 0, Value: "B"}, {Start: 1, Value: "Q"}}

	summary, err := applier.ApplyCues(cues, 24, 0)
	if err != nil {
		t.Fatalf("ApplyCues: %v", err)
	}
	if summary.Holds != 0 {
		t.Fatalf("layer mode must not insert holds, got %d", summary.Holds)
	}
	if summary.Keys != 6 {
		t.Fatalf("keys = %d, want 6 (3 in-range layers x 2 cues)", summary.Keys)
	}
	want := []layerKey{
		{layer: 0, frame: 0, hidden: true},
		{layer: 1, frame: 0, hidden: false},
		{layer: 2, frame: 0, hidden: true},
		{layer: 0, frame: 24, hidden: true},
		{layer: 1, frame: 24, hidden: true},
		{layer: 2, frame: 24, hidden: true},
	}
	if !reflect.DeepEqual(layers.keys, want) {
		t.Fatalf("layer keys = %+v, want %+v", layers.keys, want)
	}
	if !reflect.DeepEqual(summary.Unmapped, []string{"mouth_q"}) {
		t.Fatalf("unmapped = %v", summary.Unmapped)
	}
}

func TestApplyCuesRequiresTarget(t *testing.T) {
	if _, err := (Applier{Mode: ModeBone}).ApplyCues([]Cue{{Value: "A"}}, 24, 0); err == nil {
		t.Fatal("expected error without pose target")
	}
	if _, err := (Applier{Mode: ModeLayer}).ApplyCues([]Cue{{Value: "A"}}, 24, 0); err == nil {
		t.Fatal("expected error without layer target")
	}
}

func TestPlanIsPure(t *testing.T) {
	applier := Applier{Mode: ModeBone, Shapes: NewShapeMap(map[string]int{"mouth_a": 1}), HoldThreshold: 4}
	steps := applier.Plan([]Cue{{Start: 0, Value: "A"}, {Start: 1, Value: "B"}}, 24, 0)
	if len(steps) != 3 || steps[1].Frame != 20 || steps[1].Label != "mouth_a" || !steps[1].Hold {
		t.Fatalf("unexpected plan %+v", steps)
	}
}
