package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/qmuntal/gltf"

	"mouthsync/internal/lipsync"
	"mouthsync/internal/rig"
)

func boneRig(t *testing.T) *rig.Rig {
	t.Helper()
	doc := &rig.Document{
		Scene:       rig.Scene{FPS: 24},
		MouthShapes: rig.MouthShapes{SoundFile: "/audio/line.wav", Shapes: map[string]int{"mouth_a": 1, "mouth_b": 2}},
		Bones: []rig.Bone{
			{Name: "jaw", Selected: true, RotationMode: "XYZ", Transform: rest()},
			{Name: "lip", Selected: true, RotationMode: rig.RotationQuaternion, Transform: rest()},
			{Name: "brow", Selected: false, RotationMode: "XYZ", Transform: rest()},
		},
		Poses: []rig.Pose{
			{Name: "rest"},
			{Name: "open", Bones: []rig.PoseBone{
				{Name: "jaw", Transform: rig.Transform{RotationEuler: []float64{0.5, 0, 0}}},
				{Name: "lip", Transform: rig.Transform{Location: []float64{0, 0.1, 0}}},
			}},
			{Name: "wide", Bones: []rig.PoseBone{
				{Name: "jaw", Transform: rig.Transform{RotationEuler: []float64{0.2, 0, 0}}},
			}},
		},
	}
	return rig.New(filepath.Join(t.TempDir(), "rig.toml"), doc)
}

func rest() rig.Transform {
	return rig.Transform{
		Location:           []float64{0, 0, 0},
		RotationEuler:      []float64{0, 0, 0},
		RotationQuaternion: []float64{1, 0, 0, 0},
		Scale:              []float64{1, 1, 1},
	}
}

func applyAB(t *testing.T, r *rig.Rig) lipsync.Summary {
	t.Helper()
	applier := lipsync.Applier{
		Mode:          lipsync.ModeBone,
		Shapes:        lipsync.NewShapeMap(r.Shapes()),
		HoldThreshold: lipsync.DefaultHoldThreshold,
		Poses:         r,
	}
	summary, err := applier.ApplyCues([]lipsync.Cue{
		{Start: 0, End: 1, Value: "A"},
		{Start: 1, End: 1.5, Value: "B"},
	}, r.FPS(), r.StartFrame())
	if err != nil {
		t.Fatalf("ApplyCues: %v", err)
	}
	return summary
}

func TestBuildDopeSheet(t *testing.T) {
	r := boneRig(t)
	summary := applyAB(t, r)

	sheet := BuildDopeSheet(r, &summary)
	if sheet.FPS != 24 || sheet.FirstFrame != 0 || sheet.LastFrame != 24 {
		t.Fatalf("unexpected timing: %+v", sheet)
	}
	if len(sheet.Cues) != 3 {
		t.Fatalf("expected 3 cue marks (A, hold, B), got %d", len(sheet.Cues))
	}
	hold := sheet.Cues[1]
	if !hold.Hold || hold.Frame != 20 || hold.Shape != "mouth_a" {
		t.Fatalf("unexpected hold mark: %+v", hold)
	}
	if sheet.Cues[2].Start != 1 || sheet.Cues[2].Shape != "mouth_b" {
		t.Fatalf("unexpected cue mark: %+v", sheet.Cues[2])
	}

	var jawX *Channel
	for i := range sheet.Channels {
		ch := &sheet.Channels[i]
		if ch.Owner == "brow" {
			t.Fatalf("unselected bone was keyed: %+v", ch)
		}
		if ch.Owner == "jaw" && ch.DataPath == rig.PathRotationEuler && ch.Index == 0 {
			jawX = ch
		}
	}
	if jawX == nil {
		t.Fatal("expected jaw rotation_euler[0] channel")
	}
	want := []Key{{Frame: 0, Value: 0.5}, {Frame: 20, Value: 0.5}, {Frame: 24, Value: 0.2}}
	if len(jawX.Keys) != len(want) {
		t.Fatalf("expected %d keys, got %+v", len(want), jawX.Keys)
	}
	for i := range want {
		if jawX.Keys[i] != want[i] {
			t.Fatalf("key %d: got %+v want %+v", i, jawX.Keys[i], want[i])
		}
	}
}

func TestWriteAndSaveDopeSheet(t *testing.T) {
	r := boneRig(t)
	applyAB(t, r)
	sheet := BuildDopeSheet(r, nil)

	var buf bytes.Buffer
	if err := WriteDopeSheet(&buf, sheet); err != nil {
		t.Fatalf("WriteDopeSheet: %v", err)
	}
	var decoded DopeSheet
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded.Channels) != len(sheet.Channels) || decoded.Cues != nil {
		t.Fatalf("unexpected round trip: %d channels, cues %v", len(decoded.Channels), decoded.Cues)
	}

	path := filepath.Join(t.TempDir(), "sheet.json")
	if err := SaveDopeSheet(path, sheet); err != nil {
		t.Fatalf("SaveDopeSheet: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(bytes.TrimSpace(data), bytes.TrimSpace(buf.Bytes())) {
		t.Fatal("saved sheet differs from written sheet")
	}
}

func TestBuildGLTF(t *testing.T) {
	r := boneRig(t)
	applyAB(t, r)

	doc, stats, err := BuildGLTF(r, GLTFOptions{})
	if err != nil {
		t.Fatalf("BuildGLTF: %v", err)
	}
	if stats.Bones != 3 || stats.NewNodes != 3 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	// jaw and lip each key translation, rotation and scale.
	if stats.Channels != 6 {
		t.Fatalf("expected 6 channels, got %d", stats.Channels)
	}
	if math.Abs(stats.Duration-1.0) > 1e-6 {
		t.Fatalf("expected 1s duration, got %v", stats.Duration)
	}
	if len(doc.Animations) != 1 || doc.Animations[0].Name != "line" {
		t.Fatalf("unexpected animations: %+v", doc.Animations)
	}
	anim := doc.Animations[0]
	if len(anim.Samplers) != 6 || len(anim.Channels) != 6 {
		t.Fatalf("unexpected animation shape: %d samplers, %d channels", len(anim.Samplers), len(anim.Channels))
	}
	for i, sampler := range anim.Samplers {
		if sampler.Interpolation != gltf.InterpolationStep {
			t.Fatalf("sampler %d interpolation %v", i, sampler.Interpolation)
		}
	}
	names := map[string]bool{}
	for _, node := range doc.Nodes {
		names[node.Name] = true
	}
	for _, name := range []string{"jaw", "lip", "brow"} {
		if !names[name] {
			t.Fatalf("missing node %q", name)
		}
	}

	// First accessor is the jaw time input: frames 0, 20, 24 at 24fps.
	input := doc.Accessors[0]
	if input.Count != 3 || input.Type != gltf.AccessorScalar {
		t.Fatalf("unexpected input accessor: %+v", input)
	}
	if len(input.Max) != 1 || math.Abs(input.Max[0]-1.0) > 1e-6 {
		t.Fatalf("unexpected input max: %v", input.Max)
	}
	if len(doc.Buffers) != 1 || doc.Buffers[0].ByteLength != len(doc.Buffers[0].Data) {
		t.Fatalf("unexpected buffers: %+v", doc.Buffers)
	}
}

func TestBuildGLTFLayerActionFails(t *testing.T) {
	doc := &rig.Document{
		Scene:  rig.Scene{FPS: 12},
		Layers: []rig.Layer{{Name: "A"}},
	}
	r := rig.New(filepath.Join(t.TempDir(), "rig.toml"), doc)
	if err := r.KeyLayerVisibility(0, 3); err != nil {
		t.Fatal(err)
	}
	if _, _, err := BuildGLTF(r, GLTFOptions{}); !errors.Is(err, ErrNoBoneAnimation) {
		t.Fatalf("expected ErrNoBoneAnimation, got %v", err)
	}
}

func TestSaveGLTFWithBase(t *testing.T) {
	dir := t.TempDir()
	base := &gltf.Document{
		Asset: gltf.Asset{Version: "2.0", Generator: "test"},
		Nodes: []*gltf.Node{
			{Name: "head", Rotation: [4]float64{0, 0, 0, 1}, Scale: [3]float64{1, 1, 1}},
			{Name: "jaw", Rotation: [4]float64{0, 0, 0, 1}, Scale: [3]float64{1, 1, 1}},
		},
		Scene:  gltf.Index(0),
		Scenes: []*gltf.Scene{{Name: "Root Scene", Nodes: []int{0, 1}}},
	}
	basePath := filepath.Join(dir, "base.gltf")
	if err := gltf.Save(base, basePath); err != nil {
		t.Fatalf("save base: %v", err)
	}

	r := boneRig(t)
	applyAB(t, r)
	doc, stats, err := BuildGLTF(r, GLTFOptions{Base: basePath, Name: "take1"})
	if err != nil {
		t.Fatalf("BuildGLTF: %v", err)
	}
	if stats.NewNodes != 2 {
		t.Fatalf("expected lip and brow to be added, got %d new nodes", stats.NewNodes)
	}
	if len(doc.Nodes) != 4 {
		t.Fatalf("expected 4 nodes, got %d", len(doc.Nodes))
	}

	for _, name := range []string{"out.gltf", "out.glb"} {
		out := filepath.Join(dir, name)
		if err := SaveGLTF(out, doc); err != nil {
			t.Fatalf("SaveGLTF %s: %v", name, err)
		}
		loaded, err := gltf.Open(out)
		if err != nil {
			t.Fatalf("reopen %s: %v", name, err)
		}
		if len(loaded.Animations) != 1 || loaded.Animations[0].Name != "take1" {
			t.Fatalf("%s: unexpected animations %+v", name, loaded.Animations)
		}
		if len(loaded.Accessors) != len(doc.Accessors) {
			t.Fatalf("%s: accessor count %d != %d", name, len(loaded.Accessors), len(doc.Accessors))
		}
	}
}

func TestBoneQuaternion(t *testing.T) {
	s := math.Sqrt2 / 2
	cases := []struct {
		name  string
		mode  string
		euler []float64
		quat  []float64
		want  [4]float64
	}{
		{name: "identity euler", mode: "XYZ", euler: []float64{0, 0, 0}, want: [4]float64{0, 0, 0, 1}},
		{name: "z quarter turn", mode: "XYZ", euler: []float64{0, 0, math.Pi / 2}, want: [4]float64{0, 0, s, s}},
		{name: "x quarter turn", mode: "ZYX", euler: []float64{math.Pi / 2, 0, 0}, want: [4]float64{s, 0, 0, s}},
		{name: "quaternion reorders", mode: rig.RotationQuaternion, quat: []float64{s, 0, s, 0}, want: [4]float64{0, s, 0, s}},
		{name: "zero quaternion", mode: rig.RotationQuaternion, quat: []float64{0, 0, 0, 0}, want: [4]float64{0, 0, 0, 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := boneQuaternion(tc.mode, tc.euler, tc.quat)
			for i := range got {
				if math.Abs(got[i]-tc.want[i]) > 1e-9 {
					t.Fatalf("got %v want %v", got, tc.want)
				}
			}
		})
	}
}

func TestBoneQuaternionOrder(t *testing.T) {
	// XYZ applies X first: the result is Rz*Ry*Rx.
	euler := []float64{math.Pi / 2, 0, math.Pi / 2}
	xyz := boneQuaternion("XYZ", euler, nil)
	zyx := boneQuaternion("ZYX", euler, nil)
	same := true
	for i := range xyz {
		if math.Abs(xyz[i]-zyx[i]) > 1e-9 {
			same = false
		}
	}
	if same {
		t.Fatalf("expected rotation order to matter, both gave %v", xyz)
	}
}
