package lipsync

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// ShapePrefix is prepended to analyzer labels before lookup.
const ShapePrefix = "mouth_"

// ExtendedShapeSet lists every label Rhubarb emits with extended shapes GHX.
var ExtendedShapeSet = []string{"A", "B", "C", "D", "E", "F", "G", "H", "X"}

var folder = cases.Fold()

// ShapeKey returns the normalized lookup key for an analyzer label.
func ShapeKey(value string) string {
	return ShapePrefix + strings.ToLower(strings.TrimSpace(value))
}

// ShapeMap maps normalized mouth-shape keys to pose or layer indices.
// Keys are stored case-folded so rigs may spell them "Mouth_A" or "mouth_a".
type ShapeMap struct {
	entries map[string]int
}

// NewShapeMap builds a ShapeMap from raw rig entries. Keys that do not start
// with the mouth_ prefix (in any case) are ignored.
func NewShapeMap(raw map[string]int) ShapeMap {
	entries := make(map[string]int, len(raw))
	for key, index := range raw {
		folded := folder.String(strings.TrimSpace(key))
		if !strings.HasPrefix(folded, ShapePrefix) || len(folded) == len(ShapePrefix) {
			continue
		}
		entries[folded] = index
	}
	return ShapeMap{entries: entries}
}

// Lookup resolves an analyzer label such as "A" to its index.
func (m ShapeMap) Lookup(value string) (int, bool) {
	index, ok := m.entries[folder.String(ShapeKey(value))]
	return index, ok
}

// Len returns the number of mapped shapes.
func (m ShapeMap) Len() int {
	return len(m.entries)
}

// Keys returns the mapped shape keys in sorted order.
func (m ShapeMap) Keys() []string {
	keys := make([]string, 0, len(m.entries))
	for key := range m.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Indices returns the distinct mapped indices in ascending order.
func (m ShapeMap) Indices() []int {
	seen := make(map[int]struct{}, len(m.entries))
	indices := make([]int, 0, len(m.entries))
	for _, index := range m.entries {
		if _, ok := seen[index]; ok {
			continue
		}
		seen[index] = struct{}{}
		indices = append(indices, index)
	}
	sort.Ints(indices)
	return indices
}

// Missing reports the extended shape labels that have no mapping.
func (m ShapeMap) Missing() []string {
	var missing []string
	for _, label := range ExtendedShapeSet {
		if _, ok := m.Lookup(label); !ok {
			missing = append(missing, label)
		}
	}
	return missing
}
