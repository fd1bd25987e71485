package lipsync

import (
	"fmt"
	"log/slog"
	"sort"

	"mouthsync/internal/logging"
)

// Mode selects how cues become keyframes.
type Mode string

const (
	// ModeBone applies pose-library poses to selected bones.
	ModeBone Mode = "bone"
	// ModeLayer toggles layer visibility.
	ModeLayer Mode = "layer"
)

// DefaultHoldThreshold is the frame gap above which a hold key is inserted.
const DefaultHoldThreshold = 4

// Step is one planned keying operation.
type Step struct {
	Frame int
	// Label is the normalized shape key, e.g. "mouth_a".
	Label  string
	Index  int
	Mapped bool
	// Hold marks a key that repeats the previous shape before a long gap.
	Hold bool
	Cue  Cue
}

// Summary describes an ApplyCues call.
type Summary struct {
	Cues       int
	Keys       int
	Holds      int
	FirstFrame int
	LastFrame  int
	Unmapped   []string
	Steps      []Step
}

// Applier turns cues into host keyframes.
type Applier struct {
	Mode          Mode
	Shapes        ShapeMap
	HoldThreshold int
	Poses         PoseTarget
	Layers        LayerTarget
	Logger        *slog.Logger
}

// Plan computes the keying steps for cues without touching the host.
func (a Applier) Plan(cues []Cue, fps float64, startFrame int) []Step {
	steps := make([]Step, 0, len(cues)+len(cues)/2)
	lastFrame := 0
	prevIndex := 0
	prevLabel := ""
	prevMapped := false
	for _, cue := range cues {
		frame := FrameFor(cue.Start, fps, startFrame)
		if a.Mode == ModeBone && frame-lastFrame > a.HoldThreshold {
			steps = append(steps, Step{
				Frame:  frame - a.HoldThreshold,
				Label:  prevLabel,
				Index:  prevIndex,
				Mapped: prevMapped,
				Hold:   true,
			})
		}

		label := ShapeKey(cue.Value)
		index, mapped := a.Shapes.Lookup(cue.Value)
		if !mapped {
			index = 0
		}
		steps = append(steps, Step{Frame: frame, Label: label, Index: index, Mapped: mapped, Cue: cue})

		prevIndex, prevLabel, prevMapped = index, label, mapped
		lastFrame = frame
	}
	return steps
}

// ApplyCues keys every cue onto the host in order. Bone mode inserts hold
// keys; layer mode shows at most one mapped layer per cue.
func (a Applier) ApplyCues(cues []Cue, fps float64, startFrame int) (Summary, error) {
	logger := a.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	steps := a.Plan(cues, fps, startFrame)
	summary := Summary{Cues: len(cues), Steps: steps}

	unmapped := map[string]struct{}{}
	for i, step := range steps {
		if i == 0 {
			summary.FirstFrame = step.Frame
		}
		summary.LastFrame = step.Frame
		if !step.Hold && !step.Mapped {
			unmapped[step.Label] = struct{}{}
		}

		var (
			keys int
			err  error
		)
		switch a.Mode {
		case ModeBone:
			keys, err = a.applyBoneStep(step)
		case ModeLayer:
			keys, err = a.applyLayerStep(step, logger)
		default:
			return summary, fmt.Errorf("unsupported mode %q", a.Mode)
		}
		if err != nil {
			return summary, fmt.Errorf("frame %d %s: %w", step.Frame, step.Label, err)
		}
		summary.Keys += keys
		if step.Hold {
			summary.Holds++
			logger.Debug("hold key", logging.Int("frame", step.Frame), logging.String("shape", step.Label))
		} else {
			logger.Debug("cue keyed",
				logging.Float64("start", step.Cue.Start),
				logging.Int("frame", step.Frame),
				logging.String("shape", step.Label),
				logging.Bool("mapped", step.Mapped),
			)
		}
	}
	for label := range unmapped {
		summary.Unmapped = append(summary.Unmapped, label)
	}
	sort.Strings(summary.Unmapped)
	return summary, nil
}

func (a Applier) applyBoneStep(step Step) (int, error) {
	if a.Poses == nil {
		return 0, fmt.Errorf("bone mode requires a pose target")
	}
	if err := a.Poses.ApplyPose(step.Index); err != nil {
		return 0, fmt.Errorf("apply pose %d: %w", step.Index, err)
	}
	keys, err := a.Poses.KeySelected(step.Frame)
	if err != nil {
		return 0, fmt.Errorf("key selected bones: %w", err)
	}
	return keys, nil
}

func (a Applier) applyLayerStep(step Step, logger *slog.Logger) (int, error) {
	if a.Layers == nil {
		return 0, fmt.Errorf("layer mode requires a layer target")
	}
	count := a.Layers.LayerCount()
	indices := a.Shapes.Indices()
	for _, index := range indices {
		if index < 0 || index >= count {
			logger.Debug("skipping layer index out of range", logging.Int("layer", index), logging.Int("layers", count))
			continue
		}
		if err := a.Layers.SetLayerHidden(index, true); err != nil {
			return 0, fmt.Errorf("hide layer %d: %w", index, err)
		}
	}
	if step.Mapped {
		if step.Index >= 0 && step.Index < count {
			if err := a.Layers.SetLayerHidden(step.Index, false); err != nil {
				return 0, fmt.Errorf("show layer %d: %w", step.Index, err)
			}
		} else {
			logger.Debug("skipping layer index out of range", logging.Int("layer", step.Index), logging.Int("layers", count))
		}
	}
	keys := 0
	for _, index := range indices {
		if index < 0 || index >= count {
			continue
		}
		if err := a.Layers.KeyLayerVisibility(index, step.Frame); err != nil {
			return keys, fmt.Errorf("key layer %d: %w", index, err)
		}
		keys++
	}
	return keys, nil
}
