package rhubarb

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// EventType classifies a machine-readable diagnostic line.
type EventType string

const (
	EventStart    EventType = "start"
	EventProgress EventType = "progress"
	EventFailure  EventType = "failure"
	EventSuccess  EventType = "success"
	EventLog      EventType = "log"
)

// LogEntry is the nested log record carried by most diagnostics.
type LogEntry struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Event is one decoded stderr line.
type Event struct {
	Type   EventType `json:"type"`
	File   string    `json:"file,omitempty"`
	Value  *float64  `json:"value,omitempty"`
	Reason string    `json:"reason,omitempty"`
	Log    *LogEntry `json:"log,omitempty"`
}

// Message returns the human-readable text of the event.
func (e Event) Message() string {
	if e.Log != nil && strings.TrimSpace(e.Log.Message) != "" {
		return strings.TrimSpace(e.Log.Message)
	}
	return strings.TrimSpace(e.Reason)
}

// Fraction returns the reported progress in [0,1] when present.
func (e Event) Fraction() (float64, bool) {
	if e.Value == nil {
		return 0, false
	}
	v := *e.Value
	switch {
	case v < 0:
		v = 0
	case v > 1:
		v = 1
	}
	return v, true
}

// ParseDiagnostic decodes a stderr line. Lines that are blank, not JSON, or
// missing a type report false and should be ignored.
func ParseDiagnostic(line string) (Event, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || !strings.HasPrefix(trimmed, "{") {
		return Event{}, false
	}
	var event Event
	if err := json.Unmarshal([]byte(trimmed), &event); err != nil {
		return Event{}, false
	}
	if event.Type == "" {
		return Event{}, false
	}
	return event, true
}

// Cue is a single timed mouth shape.
type Cue struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Value string  `json:"value"`
}

// Metadata describes the analyzed recording.
type Metadata struct {
	SoundFile string  `json:"soundFile"`
	Duration  float64 `json:"duration"`
}

// Result is the analyzer's stdout document.
type Result struct {
	Metadata  Metadata `json:"metadata"`
	MouthCues []Cue    `json:"mouthCues"`
}

// ErrMalformedResult reports stdout that is not a complete result document.
var ErrMalformedResult = errors.New("malformed analyzer result")

// ParseResult decodes the analyzer's stdout. Empty, partial, or non-JSON
// output and documents without mouthCues are rejected.
func ParseResult(data []byte) (Result, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Result{}, fmt.Errorf("%w: empty output", ErrMalformedResult)
	}
	var raw struct {
		Metadata  Metadata `json:"metadata"`
		MouthCues *[]Cue   `json:"mouthCues"`
	}
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedResult, err)
	}
	if raw.MouthCues == nil {
		return Result{}, fmt.Errorf("%w: missing mouthCues", ErrMalformedResult)
	}
	return Result{Metadata: raw.Metadata, MouthCues: *raw.MouthCues}, nil
}
