package preflight

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"mouthsync/internal/config"
	"mouthsync/internal/deps"
	"mouthsync/internal/services/rhubarb"
)

const versionCheckTimeout = 10 * time.Second

// CheckAnalyzer verifies the analyzer binary responds to --version.
func CheckAnalyzer(ctx context.Context, binary string) Result {
	const name = "Rhubarb"

	binary = strings.TrimSpace(binary)
	if binary == "" {
		return Result{Name: name, Detail: "executable_path not configured (set rhubarb.executable_path or RHUBARB_PATH)"}
	}
	if strings.ContainsRune(binary, os.PathSeparator) {
		if err := deps.EnsureExecutable(binary); err != nil {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", binary, err)}
		}
	}

	client, err := rhubarb.New(binary, rhubarb.WithVersionTimeout(versionCheckTimeout))
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	version, err := client.Version(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Result{Name: name, Detail: "version check timed out"}
		}
		return Result{Name: name, Detail: fmt.Sprintf("version check failed (%v)", err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (version %s)", binary, version)}
}

// CheckRecognizer verifies the recognizer name and, for pocketSphinx, the
// acoustic model shipped beside the analyzer.
func CheckRecognizer(binary, recognizer string) Result {
	const name = "Recognizer"

	switch strings.TrimSpace(recognizer) {
	case config.RecognizerPocketSphinx, config.RecognizerPhonetic:
	default:
		return Result{Name: name, Detail: fmt.Sprintf("unknown recognizer %q", recognizer)}
	}
	status := deps.CheckRecognizerResources(binary, recognizer)
	if !status.Available {
		return Result{Name: name, Detail: fmt.Sprintf("%s: %s", recognizer, status.Detail)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", recognizer, firstNonEmpty(status.Detail, "resources ok"))}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFileReadable verifies that path is a readable regular file.
func CheckFileReadable(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not set"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.Mode().IsRegular() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not a regular file)", path)}
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not readable: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckInputs verifies the per-run inputs. The dialog file is optional.
func CheckInputs(soundFile, dialogFile string) []Result {
	results := []Result{CheckFileReadable("Sound file", soundFile)}
	if strings.TrimSpace(dialogFile) != "" {
		results = append(results, CheckFileReadable("Dialog file", dialogFile))
	}
	return results
}

// CheckSystemDeps lists the external binaries mouthsync needs. Both the run
// path and the CLI status command use this to avoid duplicating the list.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "Rhubarb Lip Sync",
			Command:     cfg.Rhubarb.ExecutablePath,
			Description: "Required for mouth cue analysis",
		},
	}
	statuses := deps.CheckBinaries(requirements)
	return append(statuses, deps.CheckRecognizerResources(cfg.Rhubarb.ExecutablePath, cfg.Rhubarb.Recognizer))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
