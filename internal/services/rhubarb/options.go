package rhubarb

import (
	"errors"
	"strings"
)

// DefaultExtendedShapes enables every optional Rhubarb mouth shape.
const DefaultExtendedShapes = "GHX"

// Options describes a single analyzer invocation.
type Options struct {
	AudioFile      string
	DialogFile     string
	Recognizer     string
	ExtendedShapes string
	ExtraArgs      []string
}

// BuildArgs renders the analyzer command line, excluding the executable.
//
//	-f json --machineReadable --extendedShapes GHX -r <recognizer> <audio> [--dialogFile <dialog>]
func BuildArgs(opts Options) ([]string, error) {
	audio := strings.TrimSpace(opts.AudioFile)
	if audio == "" {
		return nil, errors.New("audio file required")
	}
	shapes := strings.TrimSpace(opts.ExtendedShapes)
	if shapes == "" {
		shapes = DefaultExtendedShapes
	}

	args := []string{"-f", "json", "--machineReadable", "--extendedShapes", shapes}
	if recognizer := strings.TrimSpace(opts.Recognizer); recognizer != "" {
		args = append(args, "-r", recognizer)
	}
	for _, extra := range opts.ExtraArgs {
		if trimmed := strings.TrimSpace(extra); trimmed != "" {
			args = append(args, trimmed)
		}
	}
	args = append(args, audio)
	if dialog := strings.TrimSpace(opts.DialogFile); dialog != "" {
		args = append(args, "--dialogFile", dialog)
	}
	return args, nil
}
