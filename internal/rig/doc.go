// Package rig is the file-backed animation host used by the CLI.
//
// A rig document is a TOML file describing a scene, a pose-library rig
// (bones and poses) or a 2D layer rig, the mouth-shape mapping, and the
// recorded action. Rig implements the lipsync host interfaces: applying a
// pose copies its transforms onto bones, and keying appends keyframes to the
// action's fcurves. Documents are saved atomically and guarded by an
// exclusive file lock while a run mutates them.
package rig
