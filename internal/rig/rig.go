package rig

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"mouthsync/internal/logging"
)

// Data paths keyed on bones and layers.
const (
	PathLocation           = "location"
	PathRotationEuler      = "rotation_euler"
	PathRotationQuaternion = "rotation_quaternion"
	PathScale              = "scale"
	PathHide               = "hide"
)

// Rig is a loaded rig document acting as a lip-sync host.
type Rig struct {
	path       string
	doc        *Document
	defaultFPS float64
	logger     *slog.Logger
	boneIndex  map[string]int
}

// Option configures a Rig.
type Option func(*Rig)

// WithDefaultFPS sets the frame rate used when the scene declares none.
func WithDefaultFPS(fps float64) Option {
	return func(r *Rig) {
		if fps > 0 {
			r.defaultFPS = fps
		}
	}
}

// WithLogger sets the rig logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Rig) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Load reads the rig at path.
func Load(path string, opts ...Option) (*Rig, error) {
	doc, err := ReadDocument(path)
	if err != nil {
		return nil, err
	}
	return New(path, doc, opts...), nil
}

// New wraps an in-memory document.
func New(path string, doc *Document, opts ...Option) *Rig {
	r := &Rig{path: path, doc: doc, defaultFPS: 24, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	r.boneIndex = make(map[string]int, len(doc.Bones))
	for i, bone := range doc.Bones {
		r.boneIndex[bone.Name] = i
	}
	return r
}

// Path returns the document location.
func (r *Rig) Path() string { return r.path }

// Document exposes the underlying document.
func (r *Rig) Document() *Document { return r.doc }

// Save writes the document back to its path.
func (r *Rig) Save() error {
	return WriteDocument(r.path, r.doc)
}

// FPS implements lipsync.Scene.
func (r *Rig) FPS() float64 {
	if r.doc.Scene.FPS > 0 {
		return r.doc.Scene.FPS
	}
	return r.defaultFPS
}

// StartFrame implements lipsync.Scene.
func (r *Rig) StartFrame() int { return r.doc.MouthShapes.StartFrame }

// SoundFile returns the sound file recorded on the rig.
func (r *Rig) SoundFile() string { return r.doc.MouthShapes.SoundFile }

// DialogFile returns the optional dialog transcript recorded on the rig.
func (r *Rig) DialogFile() string { return r.doc.MouthShapes.DialogFile }

// ResolvePath returns p made absolute relative to the rig's directory, the way
// sound_file and dialog_file are interpreted. Empty stays empty.
func (r *Rig) ResolvePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(r.path), p)
}

// Shapes returns the raw mouth-shape mapping.
func (r *Rig) Shapes() map[string]int { return r.doc.MouthShapes.Shapes }

// SelectedBones returns the names of selected bones in document order.
func (r *Rig) SelectedBones() []string {
	var names []string
	for _, bone := range r.doc.Bones {
		if bone.Selected {
			names = append(names, bone.Name)
		}
	}
	return names
}

// SelectedCount implements lipsync.PoseTarget.
func (r *Rig) SelectedCount() int { return len(r.SelectedBones()) }

// Select marks exactly the named bones as selected. Unknown names are an error.
func (r *Rig) Select(names ...string) error {
	want := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if _, ok := r.boneIndex[name]; !ok {
			return fmt.Errorf("unknown bone %q", name)
		}
		want[name] = true
	}
	for i := range r.doc.Bones {
		r.doc.Bones[i].Selected = want[r.doc.Bones[i].Name]
	}
	return nil
}

// ApplyPose implements lipsync.PoseTarget. Bones the pose does not mention
// keep their transforms.
func (r *Rig) ApplyPose(index int) error {
	if index < 0 || index >= len(r.doc.Poses) {
		return fmt.Errorf("pose index %d out of range (%d poses)", index, len(r.doc.Poses))
	}
	for _, pb := range r.doc.Poses[index].Bones {
		i, ok := r.boneIndex[pb.Name]
		if !ok {
			continue
		}
		bone := &r.doc.Bones[i]
		if pb.Location != nil {
			bone.Location = append([]float64(nil), pb.Location...)
		}
		if pb.RotationEuler != nil {
			bone.RotationEuler = append([]float64(nil), pb.RotationEuler...)
		}
		if pb.RotationQuaternion != nil {
			bone.RotationQuaternion = append([]float64(nil), pb.RotationQuaternion...)
		}
		if pb.Scale != nil {
			bone.Scale = append([]float64(nil), pb.Scale...)
		}
	}
	return nil
}

// KeySelected implements lipsync.PoseTarget. Each selected bone gets
// location, rotation and scale keys; the count returned is per property.
func (r *Rig) KeySelected(frame int) (int, error) {
	keys := 0
	for _, bone := range r.doc.Bones {
		if !bone.Selected {
			continue
		}
		r.keyVector(OwnerBone, bone.Name, PathLocation, frame, bone.Location)
		if bone.RotationMode == RotationQuaternion {
			r.keyVector(OwnerBone, bone.Name, PathRotationQuaternion, frame, bone.RotationQuaternion)
		} else {
			r.keyVector(OwnerBone, bone.Name, PathRotationEuler, frame, bone.RotationEuler)
		}
		r.keyVector(OwnerBone, bone.Name, PathScale, frame, bone.Scale)
		keys += 3
	}
	return keys, nil
}

func (r *Rig) keyVector(kind, owner, path string, frame int, values []float64) {
	for i, v := range values {
		r.doc.Action.Insert(kind, owner, path, i, frame, v)
	}
}

// LayerCount implements lipsync.LayerTarget.
func (r *Rig) LayerCount() int { return len(r.doc.Layers) }

// SetLayerHidden implements lipsync.LayerTarget.
func (r *Rig) SetLayerHidden(index int, hidden bool) error {
	if index < 0 || index >= len(r.doc.Layers) {
		return fmt.Errorf("layer index %d out of range (%d layers)", index, len(r.doc.Layers))
	}
	r.doc.Layers[index].Hide = hidden
	return nil
}

// KeyLayerVisibility implements lipsync.LayerTarget.
func (r *Rig) KeyLayerVisibility(index, frame int) error {
	if index < 0 || index >= len(r.doc.Layers) {
		return fmt.Errorf("layer index %d out of range (%d layers)", index, len(r.doc.Layers))
	}
	layer := r.doc.Layers[index]
	value := 0.0
	if layer.Hide {
		value = 1
	}
	r.doc.Action.Insert(OwnerLayer, layer.Name, PathHide, 0, frame, value)
	return nil
}

// Action returns the recorded action.
func (r *Rig) Action() *Action { return &r.doc.Action }

// ClearAction drops previously recorded keys before a fresh run.
func (r *Rig) ClearAction() {
	r.doc.Action.Clear()
	r.logger.Debug("rig action cleared", logging.String("rig", r.path))
}
