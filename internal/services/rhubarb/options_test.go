package rhubarb_test

import (
	"reflect"
	"testing"

	"mouthsync/internal/services/rhubarb"
)

func TestBuildArgs(t *testing.T) {
	tests := []struct {
		name string
		opts rhubarb.Options
		want []string
	}{
		{
			name: "audio only",
			opts: rhubarb.Options{AudioFile: "/a/line.wav", Recognizer: "pocketSphinx"},
			want: []string{"-f", "json", "--machineReadable", "--extendedShapes", "GHX", "-r", "pocketSphinx", "/a/line.wav"},
		},
		{
			name: "dialog appended after audio",
			opts: rhubarb.Options{AudioFile: "/a/line.wav", DialogFile: "/a/line.txt", Recognizer: "phonetic"},
			want: []string{"-f", "json", "--machineReadable", "--extendedShapes", "GHX", "-r", "phonetic", "/a/line.wav", "--dialogFile", "/a/line.txt"},
		},
		{
			name: "empty recognizer omitted",
			opts: rhubarb.Options{AudioFile: "x.wav", ExtendedShapes: "GX", ExtraArgs: []string{" --quiet ", ""}},
			want: []string{"-f", "json", "--machineReadable", "--extendedShapes", "GX", "--quiet", "x.wav"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := rhubarb.BuildArgs(tt.opts)
			if err != nil {
				t.Fatalf("BuildArgs returned error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("BuildArgs = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildArgsRequiresAudio(t *testing.T) {
	if _, err := rhubarb.BuildArgs(rhubarb.Options{AudioFile: "  "}); err == nil {
		t.Fatal("expected error without audio file")
	}
}
