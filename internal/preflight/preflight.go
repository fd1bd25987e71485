package preflight

import (
	"context"
	"fmt"
	"strings"

	"mouthsync/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the environment checks for the given config: directories,
// the analyzer binary and its recognizer resources.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckAnalyzer(ctx, cfg.Rhubarb.ExecutablePath),
		CheckRecognizer(cfg.Rhubarb.ExecutablePath, cfg.Rhubarb.Recognizer),
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

// Summary joins failed results into one line for error messages.
func Summary(results []Result) string {
	parts := make([]string, 0, len(results))
	for _, r := range Failed(results) {
		parts = append(parts, fmt.Sprintf("%s: %s", r.Name, r.Detail))
	}
	return strings.Join(parts, "; ")
}

// NotificationStatus describes which notifiers are configured.
func NotificationStatus(cfg *config.Config) Result {
	const name = "Notifications"
	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	var sinks []string
	if cfg.Notifications.NtfyTopic != "" {
		sinks = append(sinks, "ntfy")
	}
	if cfg.Notifications.Desktop {
		sinks = append(sinks, "desktop")
	}
	if len(sinks) == 0 {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	var events []string
	if cfg.Notifications.OnFinish {
		events = append(events, "finish")
	}
	if cfg.Notifications.OnCancel {
		events = append(events, "cancel")
	}
	if len(events) == 0 {
		events = append(events, "test only")
	}
	return Result{
		Name:   name,
		Passed: true,
		Detail: fmt.Sprintf("%s (%s)", strings.Join(sinks, " + "), strings.Join(events, ", ")),
	}
}
