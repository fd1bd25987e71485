package export

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/qmuntal/gltf"

	"mouthsync/internal/rig"
)

// ErrNoBoneAnimation reports an action with no bone keys, e.g. after a
// layer-mode run.
var ErrNoBoneAnimation = errors.New("action has no bone keys")

// GLTFOptions controls glTF export.
type GLTFOptions struct {
	// Base is an optional glTF or GLB whose nodes are matched to bones by name.
	Base string
	// Name labels the animation. Defaults to the sound file's base name.
	Name string
}

// GLTFStats describes an exported animation.
type GLTFStats struct {
	Bones    int
	NewNodes int
	Channels int
	Duration float64
}

// BuildGLTF converts the rig's bone fcurves into a glTF animation. Every bone
// becomes (or is matched to) a node; keyed properties become STEP channels.
func BuildGLTF(r *rig.Rig, opts GLTFOptions) (*gltf.Document, GLTFStats, error) {
	var stats GLTFStats
	fps := r.FPS()
	if fps <= 0 {
		return nil, stats, fmt.Errorf("invalid fps %v", fps)
	}
	action := r.Action()
	frames := boneFrames(action)
	if len(frames) == 0 {
		return nil, stats, ErrNoBoneAnimation
	}

	doc, err := baseDocument(opts.Base)
	if err != nil {
		return nil, stats, err
	}

	nodeByName := make(map[string]int, len(doc.Nodes))
	for i, node := range doc.Nodes {
		if node != nil && node.Name != "" {
			if _, dup := nodeByName[node.Name]; !dup {
				nodeByName[node.Name] = i
			}
		}
	}

	offset := 0
	for _, bone := range r.Document().Bones {
		for _, f := range frames[bone.Name] {
			if f < offset {
				offset = f
			}
		}
	}

	packer := &bufferPacker{}
	anim := animationJSON{Name: animationName(opts.Name, r.SoundFile())}
	for _, bone := range r.Document().Bones {
		nodeIdx, ok := nodeByName[bone.Name]
		if !ok {
			nodeIdx = addNode(doc, bone)
			nodeByName[bone.Name] = nodeIdx
			stats.NewNodes++
		}
		stats.Bones++

		keyed := frames[bone.Name]
		if len(keyed) == 0 {
			continue
		}
		times := make([]float32, len(keyed))
		for i, f := range keyed {
			times[i] = float32(float64(f-offset) / fps)
		}
		if d := float64(times[len(times)-1]); d > stats.Duration {
			stats.Duration = d
		}

		for _, target := range boneTargets(action, bone) {
			values := make([]float32, 0, len(keyed)*target.width)
			for _, f := range keyed {
				for _, v := range target.sample(f) {
					values = append(values, float32(v))
				}
			}
			input := packer.accessor(times, 1, true)
			output := packer.accessor(values, target.width, false)
			sampler := len(anim.Samplers)
			anim.Samplers = append(anim.Samplers, samplerJSON{Input: input, Output: output, Interpolation: "STEP"})
			anim.Channels = append(anim.Channels, channelJSON{
				Sampler: sampler,
				Target:  targetJSON{Node: nodeIdx, Path: target.path},
			})
		}
	}
	if len(anim.Channels) == 0 {
		return nil, stats, ErrNoBoneAnimation
	}
	stats.Channels = len(anim.Channels)

	base := len(doc.Accessors)
	for i := range anim.Samplers {
		anim.Samplers[i].Input += base
		anim.Samplers[i].Output += base
	}
	packer.flush(doc)
	animation, err := anim.decode()
	if err != nil {
		return nil, stats, err
	}
	doc.Animations = append(doc.Animations, animation)
	return doc, stats, nil
}

// SaveGLTF writes doc as GLB when path ends in .glb and as glTF JSON otherwise.
// Buffers without a URI are embedded as data URIs, except the first buffer of
// a GLB which becomes the binary chunk.
func SaveGLTF(path string, doc *gltf.Document) error {
	binaryOut := strings.EqualFold(filepath.Ext(path), ".glb")
	for i, buf := range doc.Buffers {
		if buf.URI != "" || (binaryOut && i == 0) {
			continue
		}
		buf.URI = "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(buf.Data)
	}
	var err error
	if binaryOut {
		err = gltf.SaveBinary(doc, path)
	} else {
		err = gltf.Save(doc, path)
	}
	if err != nil {
		return fmt.Errorf("save gltf %s: %w", filepath.Base(path), err)
	}
	return nil
}

func baseDocument(path string) (*gltf.Document, error) {
	if path == "" {
		doc := gltf.NewDocument()
		doc.Asset.Generator = "mouthsync"
		// NewDocument may seed an empty buffer; nothing references it yet.
		if len(doc.BufferViews) == 0 {
			doc.Buffers = nil
		}
		return doc, nil
	}
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open base gltf: %w", err)
	}
	return doc, nil
}

func addNode(doc *gltf.Document, bone rig.Bone) int {
	rot := boneQuaternion(bone.RotationMode, bone.RotationEuler, bone.RotationQuaternion)
	node := &gltf.Node{
		Name:        bone.Name,
		Translation: [3]float64{at(bone.Location, 0, 0), at(bone.Location, 1, 0), at(bone.Location, 2, 0)},
		Rotation:    rot,
		Scale:       [3]float64{at(bone.Scale, 0, 1), at(bone.Scale, 1, 1), at(bone.Scale, 2, 1)},
	}
	doc.Nodes = append(doc.Nodes, node)
	idx := len(doc.Nodes) - 1

	if len(doc.Scenes) == 0 {
		doc.Scenes = append(doc.Scenes, &gltf.Scene{Name: "Root Scene"})
		doc.Scene = gltf.Index(0)
	}
	scene := 0
	if doc.Scene != nil && *doc.Scene < len(doc.Scenes) {
		scene = *doc.Scene
	}
	doc.Scenes[scene].Nodes = append(doc.Scenes[scene].Nodes, idx)
	return idx
}

func animationName(name, soundFile string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	if soundFile == "" {
		return "mouth"
	}
	base := filepath.Base(soundFile)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// boneFrames returns the sorted distinct keyed frames per bone.
func boneFrames(action *rig.Action) map[string][]int {
	sets := map[string]map[int]struct{}{}
	for _, curve := range action.FCurves {
		if curve.Kind != rig.OwnerBone {
			continue
		}
		set := sets[curve.Owner]
		if set == nil {
			set = map[int]struct{}{}
			sets[curve.Owner] = set
		}
		for _, kf := range curve.Keyframes {
			set[kf.Frame] = struct{}{}
		}
	}
	out := make(map[string][]int, len(sets))
	for owner, set := range sets {
		frames := make([]int, 0, len(set))
		for f := range set {
			frames = append(frames, f)
		}
		sort.Ints(frames)
		out[owner] = frames
	}
	return out
}

type boneTarget struct {
	path   string
	width  int
	sample func(frame int) []float64
}

// boneTargets lists the glTF properties keyed on bone. Channels missing from
// the action fall back to the bone's current transform.
func boneTargets(action *rig.Action, bone rig.Bone) []boneTarget {
	vector := func(path string, rest []float64) func(int) []float64 {
		return func(frame int) []float64 {
			out := make([]float64, len(rest))
			for i := range rest {
				out[i] = rest[i]
				if v, ok := action.Curve(rig.OwnerBone, bone.Name, path, i).ValueAt(frame); ok {
					out[i] = v
				}
			}
			return out
		}
	}
	keyed := func(path string) bool {
		for i := 0; i < 4; i++ {
			if action.Curve(rig.OwnerBone, bone.Name, path, i) != nil {
				return true
			}
		}
		return false
	}

	var targets []boneTarget
	if keyed(rig.PathLocation) {
		targets = append(targets, boneTarget{path: "translation", width: 3, sample: vector(rig.PathLocation, bone.Location)})
	}
	switch {
	case keyed(rig.PathRotationQuaternion):
		quat := vector(rig.PathRotationQuaternion, bone.RotationQuaternion)
		targets = append(targets, boneTarget{path: "rotation", width: 4, sample: func(frame int) []float64 {
			q := boneQuaternion(rig.RotationQuaternion, nil, quat(frame))
			return q[:]
		}})
	case keyed(rig.PathRotationEuler):
		euler := vector(rig.PathRotationEuler, bone.RotationEuler)
		targets = append(targets, boneTarget{path: "rotation", width: 4, sample: func(frame int) []float64 {
			q := boneQuaternion(bone.RotationMode, euler(frame), nil)
			return q[:]
		}})
	}
	if keyed(rig.PathScale) {
		targets = append(targets, boneTarget{path: "scale", width: 3, sample: vector(rig.PathScale, bone.Scale)})
	}
	return targets
}

// boneQuaternion returns a glTF (x, y, z, w) rotation. Quaternion mode reads
// (w, x, y, z); euler modes apply axes in the order the mode names them.
func boneQuaternion(mode string, euler, quat []float64) [4]float64 {
	if mode == rig.RotationQuaternion {
		q := mgl64.Quat{W: at(quat, 0, 1), V: mgl64.Vec3{at(quat, 1, 0), at(quat, 2, 0), at(quat, 3, 0)}}
		if q.Len() == 0 {
			q = mgl64.QuatIdent()
		}
		q = q.Normalize()
		return [4]float64{q.V[0], q.V[1], q.V[2], q.W}
	}
	if len(mode) != 3 {
		mode = "XYZ"
	}
	q := mgl64.QuatIdent()
	for _, axis := range mode {
		var r mgl64.Quat
		switch axis {
		case 'X':
			r = mgl64.QuatRotate(at(euler, 0, 0), mgl64.Vec3{1, 0, 0})
		case 'Y':
			r = mgl64.QuatRotate(at(euler, 1, 0), mgl64.Vec3{0, 1, 0})
		default:
			r = mgl64.QuatRotate(at(euler, 2, 0), mgl64.Vec3{0, 0, 1})
		}
		q = r.Mul(q)
	}
	q = q.Normalize()
	return [4]float64{q.V[0], q.V[1], q.V[2], q.W}
}

func at(values []float64, i int, def float64) float64 {
	if i < len(values) {
		return values[i]
	}
	return def
}

// bufferPacker accumulates float accessors into a single new buffer.
type bufferPacker struct {
	data      []byte
	views     []*gltf.BufferView
	accessors []*gltf.Accessor
}

// accessor packs values and returns the accessor's index relative to the
// packer. Time inputs carry min and max.
func (p *bufferPacker) accessor(values []float32, width int, bounds bool) int {
	offset := len(p.data)
	for _, v := range values {
		p.data = binary.LittleEndian.AppendUint32(p.data, math.Float32bits(v))
	}
	p.views = append(p.views, &gltf.BufferView{ByteOffset: offset, ByteLength: len(p.data) - offset})

	acc := &gltf.Accessor{
		ComponentType: gltf.ComponentFloat,
		Count:         len(values) / width,
		Type:          accessorType(width),
	}
	if bounds && len(values) > 0 {
		lo, hi := float64(values[0]), float64(values[0])
		for _, v := range values[1:] {
			lo = math.Min(lo, float64(v))
			hi = math.Max(hi, float64(v))
		}
		acc.Min = []float64{lo}
		acc.Max = []float64{hi}
	}
	p.accessors = append(p.accessors, acc)
	return len(p.accessors) - 1
}

// flush appends the packed buffer, views and accessors to doc. Accessor
// indices shift by the number of accessors doc already had.
func (p *bufferPacker) flush(doc *gltf.Document) {
	bufIdx := len(doc.Buffers)
	doc.Buffers = append(doc.Buffers, &gltf.Buffer{ByteLength: len(p.data), Data: p.data})
	viewBase := len(doc.BufferViews)
	for i, view := range p.views {
		view.Buffer = bufIdx
		doc.BufferViews = append(doc.BufferViews, view)
		p.accessors[i].BufferView = gltf.Index(viewBase + i)
	}
	doc.Accessors = append(doc.Accessors, p.accessors...)
}

func accessorType(width int) gltf.AccessorType {
	switch width {
	case 3:
		return gltf.AccessorVec3
	case 4:
		return gltf.AccessorVec4
	default:
		return gltf.AccessorScalar
	}
}

type animationJSON struct {
	Name     string        `json:"name,omitempty"`
	Channels []channelJSON `json:"channels"`
	Samplers []samplerJSON `json:"samplers"`
}

type channelJSON struct {
	Sampler int        `json:"sampler"`
	Target  targetJSON `json:"target"`
}

type targetJSON struct {
	Node int    `json:"node"`
	Path string `json:"path"`
}

type samplerJSON struct {
	Input         int    `json:"input"`
	Output        int    `json:"output"`
	Interpolation string `json:"interpolation"`
}

// decode builds the gltf.Animation through its JSON schema, which also
// applies the library's field defaults.
func (a animationJSON) decode() (*gltf.Animation, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode animation: %w", err)
	}
	var anim gltf.Animation
	if err := json.Unmarshal(data, &anim); err != nil {
		return nil, fmt.Errorf("decode animation: %w", err)
	}
	return &anim, nil
}
