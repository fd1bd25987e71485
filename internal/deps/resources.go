package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// sphinxResourceDir is where Rhubarb release archives keep the acoustic model
// used by the pocketSphinx recognizer, relative to the executable.
const sphinxResourceDir = "res/sphinx"

// CheckRecognizerResources reports whether the pocketSphinx model shipped with
// the analyzer is present. The phonetic recognizer needs no resources.
func CheckRecognizerResources(rhubarbCommand, recognizer string) Status {
	result := Status{
		Name:        "Recognizer resources",
		Description: "Acoustic model for the " + recognizer + " recognizer",
	}
	if !strings.EqualFold(strings.TrimSpace(recognizer), "pocketSphinx") {
		result.Available = true
		result.Detail = "not required"
		return result
	}

	binary := strings.TrimSpace(rhubarbCommand)
	if binary == "" {
		result.Detail = "analyzer not configured"
		return result
	}
	resolved := binary
	if found, err := exec.LookPath(binary); err == nil {
		resolved = found
	}
	if real, err := filepath.EvalSymlinks(resolved); err == nil {
		resolved = real
	}
	candidate := filepath.Join(filepath.Dir(resolved), filepath.FromSlash(sphinxResourceDir))
	result.Command = candidate
	info, err := os.Stat(candidate)
	if err != nil || !info.IsDir() {
		result.Detail = fmt.Sprintf("%s missing next to analyzer", sphinxResourceDir)
		return result
	}
	result.Available = true
	return result
}
