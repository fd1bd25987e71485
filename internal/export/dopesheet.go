package export

import (
	"encoding/json"
	"fmt"
	"io"

	"mouthsync/internal/fileutil"
	"mouthsync/internal/lipsync"
	"mouthsync/internal/rig"
)

// DopeSheet is the JSON form of a recorded action.
type DopeSheet struct {
	Rig        string    `json:"rig,omitempty"`
	SoundFile  string    `json:"sound_file,omitempty"`
	FPS        float64   `json:"fps"`
	StartFrame int       `json:"start_frame"`
	FirstFrame int       `json:"first_frame"`
	LastFrame  int       `json:"last_frame"`
	Cues       []CueMark `json:"cues,omitempty"`
	Unmapped   []string  `json:"unmapped,omitempty"`
	Channels   []Channel `json:"channels"`
}

// CueMark is one keying step as it appeared on the timeline.
type CueMark struct {
	Frame  int     `json:"frame"`
	Shape  string  `json:"shape"`
	Start  float64 `json:"start,omitempty"`
	End    float64 `json:"end,omitempty"`
	Mapped bool    `json:"mapped"`
	Hold   bool    `json:"hold,omitempty"`
}

// Channel is one fcurve.
type Channel struct {
	Kind     string `json:"kind"`
	Owner    string `json:"owner"`
	DataPath string `json:"data_path"`
	Index    int    `json:"array_index"`
	Keys     []Key  `json:"keys"`
}

// Key is a frame/value pair.
type Key struct {
	Frame int     `json:"frame"`
	Value float64 `json:"value"`
}

// BuildDopeSheet collects the rig's action and, when summary is non-nil, the
// steps that produced it.
func BuildDopeSheet(r *rig.Rig, summary *lipsync.Summary) DopeSheet {
	sheet := DopeSheet{
		Rig:        r.Path(),
		SoundFile:  r.SoundFile(),
		FPS:        r.FPS(),
		StartFrame: r.StartFrame(),
		Channels:   []Channel{},
	}
	action := r.Action()
	if first, last, ok := action.FrameRange(); ok {
		sheet.FirstFrame, sheet.LastFrame = first, last
	}
	for _, curve := range action.FCurves {
		ch := Channel{
			Kind:     curve.Kind,
			Owner:    curve.Owner,
			DataPath: curve.DataPath,
			Index:    curve.Index,
			Keys:     make([]Key, 0, len(curve.Keyframes)),
		}
		for _, kf := range curve.Keyframes {
			ch.Keys = append(ch.Keys, Key{Frame: kf.Frame, Value: kf.Value})
		}
		sheet.Channels = append(sheet.Channels, ch)
	}
	if summary != nil {
		sheet.Unmapped = append([]string(nil), summary.Unmapped...)
		for _, step := range summary.Steps {
			mark := CueMark{Frame: step.Frame, Shape: step.Label, Mapped: step.Mapped, Hold: step.Hold}
			if !step.Hold {
				mark.Start, mark.End = step.Cue.Start, step.Cue.End
			}
			sheet.Cues = append(sheet.Cues, mark)
		}
	}
	return sheet
}

// WriteDopeSheet encodes sheet as indented JSON.
func WriteDopeSheet(w io.Writer, sheet DopeSheet) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(sheet); err != nil {
		return fmt.Errorf("encode dope sheet: %w", err)
	}
	return nil
}

// SaveDopeSheet writes sheet to path atomically.
func SaveDopeSheet(path string, sheet DopeSheet) error {
	data, err := json.MarshalIndent(sheet, "", "  ")
	if err != nil {
		return fmt.Errorf("encode dope sheet: %w", err)
	}
	data = append(data, '\n')
	return fileutil.WriteAtomic(path, data, 0o644)
}
