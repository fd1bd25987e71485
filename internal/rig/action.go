package rig

import (
	"sort"
)

// Owner kinds for fcurves.
const (
	OwnerBone  = "bone"
	OwnerLayer = "layer"
)

// Keyframe is one sample on an fcurve.
type Keyframe struct {
	Frame int     `toml:"frame"`
	Value float64 `toml:"value"`
}

// FCurve is the keyed history of one channel of one property.
type FCurve struct {
	Kind      string     `toml:"kind"`
	Owner     string     `toml:"owner"`
	DataPath  string     `toml:"data_path"`
	Index     int        `toml:"array_index"`
	Keyframes []Keyframe `toml:"keyframes"`
}

// Action is the set of fcurves recorded on a rig.
type Action struct {
	FCurves []*FCurve `toml:"fcurves,omitempty"`

	index map[curveKey]*FCurve
}

type curveKey struct {
	kind  string
	owner string
	path  string
	index int
}

func (a *Action) reindex() {
	a.index = make(map[curveKey]*FCurve, len(a.FCurves))
	for _, curve := range a.FCurves {
		a.index[curveKey{curve.Kind, curve.Owner, curve.DataPath, curve.Index}] = curve
	}
}

// Curve returns the fcurve for a channel, or nil.
func (a *Action) Curve(kind, owner, dataPath string, index int) *FCurve {
	if a.index == nil {
		a.reindex()
	}
	return a.index[curveKey{kind, owner, dataPath, index}]
}

// Insert keys value at frame. Keying an existing frame replaces its value.
func (a *Action) Insert(kind, owner, dataPath string, index, frame int, value float64) {
	curve := a.Curve(kind, owner, dataPath, index)
	if curve == nil {
		curve = &FCurve{Kind: kind, Owner: owner, DataPath: dataPath, Index: index}
		a.FCurves = append(a.FCurves, curve)
		a.index[curveKey{kind, owner, dataPath, index}] = curve
	}
	pos := sort.Search(len(curve.Keyframes), func(i int) bool { return curve.Keyframes[i].Frame >= frame })
	if pos < len(curve.Keyframes) && curve.Keyframes[pos].Frame == frame {
		curve.Keyframes[pos].Value = value
		return
	}
	curve.Keyframes = append(curve.Keyframes, Keyframe{})
	copy(curve.Keyframes[pos+1:], curve.Keyframes[pos:])
	curve.Keyframes[pos] = Keyframe{Frame: frame, Value: value}
}

// Clear removes every fcurve.
func (a *Action) Clear() {
	a.FCurves = nil
	a.reindex()
}

// KeyCount returns the total number of keyframes.
func (a *Action) KeyCount() int {
	n := 0
	for _, curve := range a.FCurves {
		n += len(curve.Keyframes)
	}
	return n
}

// FrameRange returns the first and last keyed frames.
func (a *Action) FrameRange() (first, last int, ok bool) {
	for _, curve := range a.FCurves {
		for _, key := range curve.Keyframes {
			if !ok || key.Frame < first {
				first = key.Frame
			}
			if !ok || key.Frame > last {
				last = key.Frame
			}
			ok = true
		}
	}
	return first, last, ok
}

// ValueAt returns the stepped value of curve at frame: the value of the last
// key at or before frame, or the first key's value before the curve starts.
func (c *FCurve) ValueAt(frame int) (float64, bool) {
	if c == nil || len(c.Keyframes) == 0 {
		return 0, false
	}
	pos := sort.Search(len(c.Keyframes), func(i int) bool { return c.Keyframes[i].Frame > frame })
	if pos == 0 {
		return c.Keyframes[0].Value, true
	}
	return c.Keyframes[pos-1].Value, true
}

// sort orders curves by kind, owner, path and channel for stable output.
func (a *Action) sort() {
	sort.SliceStable(a.FCurves, func(i, j int) bool {
		ci, cj := a.FCurves[i], a.FCurves[j]
		if ci.Kind != cj.Kind {
			return ci.Kind < cj.Kind
		}
		if ci.Owner != cj.Owner {
			return ci.Owner < cj.Owner
		}
		if ci.DataPath != cj.DataPath {
			return ci.DataPath < cj.DataPath
		}
		return ci.Index < cj.Index
	})
}
