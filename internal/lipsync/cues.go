package lipsync

import (
	"math"

	"mouthsync/internal/services/rhubarb"
)

// Cue is a timed mouth shape produced by the analyzer.
type Cue = rhubarb.Cue

// FrameFor converts a cue start time into a scene frame. Halves round to the
// nearest even frame.
func FrameFor(start, fps float64, startFrame int) int {
	return int(math.RoundToEven(start*fps)) + startFrame
}
