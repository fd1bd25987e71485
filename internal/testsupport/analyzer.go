package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// AnalyzerStub describes the behavior of a fake analyzer executable.
type AnalyzerStub struct {
	// Stdout is printed once the diagnostics have been written.
	Stdout string
	// Stderr lines are printed one per line before Stdout.
	Stderr []string
	// ExitCode is returned after output is written.
	ExitCode int
	// Sleep delays exit, in seconds (fractions allowed).
	Sleep string
	// ArgsFile, when set, receives the command line one argument per line.
	ArgsFile string
	// Version is printed for --version.
	Version string
}

// WriteAnalyzer writes a /bin/sh analyzer stub into dir and returns its path.
// The file is written without the execute bit so callers exercise the
// executable fix-up.
func WriteAnalyzer(t testing.TB, dir string, stub AnalyzerStub) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	version := stub.Version
	if version == "" {
		version = "Rhubarb Lip Sync version 1.13.0"
	}

	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	fmt.Fprintf(&b, "if [ \"$1\" = \"--version\" ]; then echo %q; exit 0; fi\n", version)
	if stub.ArgsFile != "" {
		fmt.Fprintf(&b, "for a in \"$@\"; do echo \"$a\" >> %q; done\n", stub.ArgsFile)
	}
	for _, line := range stub.Stderr {
		fmt.Fprintf(&b, "echo '%s' >&2\n", strings.ReplaceAll(line, "'", `'\''`))
	}
	if stub.Sleep != "" {
		fmt.Fprintf(&b, "sleep %s\n", stub.Sleep)
	}
	if stub.Stdout != "" {
		b.WriteString("cat <<'MOUTHSYNC_EOF'\n")
		b.WriteString(stub.Stdout)
		if !strings.HasSuffix(stub.Stdout, "\n") {
			b.WriteString("\n")
		}
		b.WriteString("MOUTHSYNC_EOF\n")
	}
	fmt.Fprintf(&b, "exit %d\n", stub.ExitCode)

	path := filepath.Join(dir, "rhubarb")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write analyzer stub: %v", err)
	}
	return path
}

// ResultJSON renders an analyzer result document for the given cues, given as
// alternating start seconds and shape labels.
func ResultJSON(soundFile string, cues ...any) string {
	var parts []string
	for i := 0; i+1 < len(cues); i += 2 {
		start, _ := cues[i].(float64)
		value, _ := cues[i+1].(string)
		end := start + 0.1
		if i+2 < len(cues) {
			if next, ok := cues[i+2].(float64); ok {
				end = next
			}
		}
		parts = append(parts, fmt.Sprintf(`{"start": %.2f, "end": %.2f, "value": %q}`, start, end, value))
	}
	return fmt.Sprintf(`{"metadata": {"soundFile": %q, "duration": 1.50}, "mouthCues": [%s]}`,
		soundFile, strings.Join(parts, ", "))
}
