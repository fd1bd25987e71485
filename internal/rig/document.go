package rig

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"mouthsync/internal/fileutil"
)

// RotationQuaternion selects quaternion rotation keys; every other mode keys
// euler rotation.
const RotationQuaternion = "QUATERNION"

// Scene holds scene timing.
type Scene struct {
	FPS float64 `toml:"fps"`
}

// MouthShapes holds the lip-sync inputs attached to the rig.
type MouthShapes struct {
	SoundFile  string         `toml:"sound_file"`
	DialogFile string         `toml:"dialog_file,omitempty"`
	StartFrame int            `toml:"start_frame"`
	Shapes     map[string]int `toml:"shapes"`
}

// Transform is a bone's local transform.
type Transform struct {
	Location           []float64 `toml:"location,omitempty"`
	RotationEuler      []float64 `toml:"rotation_euler,omitempty"`
	RotationQuaternion []float64 `toml:"rotation_quaternion,omitempty"`
	Scale              []float64 `toml:"scale,omitempty"`
}

// Bone is a pose bone.
type Bone struct {
	Name         string `toml:"name"`
	Selected     bool   `toml:"selected"`
	RotationMode string `toml:"rotation_mode,omitempty"`
	Transform
}

// PoseBone is the transform a pose assigns to one bone. Omitted channels
// leave the bone unchanged.
type PoseBone struct {
	Name string `toml:"name"`
	Transform
}

// Pose is a pose-library entry.
type Pose struct {
	Name  string     `toml:"name"`
	Bones []PoseBone `toml:"bones"`
}

// Layer is a 2D drawing layer.
type Layer struct {
	Name string `toml:"name"`
	Hide bool   `toml:"hide"`
}

// Document is the on-disk rig.
type Document struct {
	Scene       Scene       `toml:"scene"`
	MouthShapes MouthShapes `toml:"mouth_shapes"`
	Bones       []Bone      `toml:"bones,omitempty"`
	Poses       []Pose      `toml:"poses,omitempty"`
	Layers      []Layer     `toml:"layers,omitempty"`
	Action      Action      `toml:"action,omitempty"`
}

// ReadDocument decodes a rig document and fills transform defaults.
func ReadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rig: %w", err)
	}
	var doc Document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse rig %s: %w", path, err)
	}
	if err := doc.normalize(); err != nil {
		return nil, fmt.Errorf("rig %s: %w", path, err)
	}
	return &doc, nil
}

func (d *Document) normalize() error {
	seen := make(map[string]struct{}, len(d.Bones))
	for i := range d.Bones {
		bone := &d.Bones[i]
		bone.Name = strings.TrimSpace(bone.Name)
		if bone.Name == "" {
			return fmt.Errorf("bone %d has no name", i)
		}
		if _, dup := seen[bone.Name]; dup {
			return fmt.Errorf("duplicate bone %q", bone.Name)
		}
		seen[bone.Name] = struct{}{}
		bone.RotationMode = strings.ToUpper(strings.TrimSpace(bone.RotationMode))
		if bone.RotationMode == "" {
			bone.RotationMode = "XYZ"
		}
		bone.Location = fill(bone.Location, 3, 0)
		bone.RotationEuler = fill(bone.RotationEuler, 3, 0)
		bone.RotationQuaternion = fill(bone.RotationQuaternion, 4, 0)
		if isZero(bone.RotationQuaternion) {
			bone.RotationQuaternion[0] = 1
		}
		bone.Scale = fill(bone.Scale, 3, 1)
	}
	for i, pose := range d.Poses {
		for _, pb := range pose.Bones {
			if _, ok := seen[pb.Name]; !ok {
				return fmt.Errorf("pose %d (%s) references unknown bone %q", i, pose.Name, pb.Name)
			}
			if err := checkLen("location", pb.Location, 3); err != nil {
				return fmt.Errorf("pose %s bone %s: %w", pose.Name, pb.Name, err)
			}
			if err := checkLen("rotation_euler", pb.RotationEuler, 3); err != nil {
				return fmt.Errorf("pose %s bone %s: %w", pose.Name, pb.Name, err)
			}
			if err := checkLen("rotation_quaternion", pb.RotationQuaternion, 4); err != nil {
				return fmt.Errorf("pose %s bone %s: %w", pose.Name, pb.Name, err)
			}
			if err := checkLen("scale", pb.Scale, 3); err != nil {
				return fmt.Errorf("pose %s bone %s: %w", pose.Name, pb.Name, err)
			}
		}
	}
	// Layer hide curves are keyed by name.
	layers := make(map[string]struct{}, len(d.Layers))
	for i := range d.Layers {
		layer := &d.Layers[i]
		layer.Name = strings.TrimSpace(layer.Name)
		if layer.Name == "" {
			return fmt.Errorf("layer %d has no name", i)
		}
		if _, dup := layers[layer.Name]; dup {
			return fmt.Errorf("duplicate layer %q", layer.Name)
		}
		layers[layer.Name] = struct{}{}
	}
	d.Action.reindex()
	return nil
}

// WriteDocument encodes doc to path atomically.
func WriteDocument(path string, doc *Document) error {
	if doc == nil {
		return errors.New("write rig: nil document")
	}
	doc.Action.sort()
	data, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode rig: %w", err)
	}
	if err := fileutil.WriteAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("write rig: %w", err)
	}
	return nil
}

func fill(values []float64, n int, def float64) []float64 {
	if len(values) == n {
		return values
	}
	out := make([]float64, n)
	for i := range out {
		if i < len(values) {
			out[i] = values[i]
		} else {
			out[i] = def
		}
	}
	return out
}

func isZero(values []float64) bool {
	for _, v := range values {
		if v != 0 {
			return false
		}
	}
	return true
}

func checkLen(name string, values []float64, n int) error {
	if values != nil && len(values) != n {
		return fmt.Errorf("%s needs %d values, got %d", name, n, len(values))
	}
	return nil
}
