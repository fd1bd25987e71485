// Package logging assembles structured slog loggers and formatting helpers used
// across mouthsync.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so driver code can automatically
// tag log lines with run IDs and animation modes. The package also provides a
// no-op logger for tests and wiring code that cannot fail, a progress sampler
// that keeps analyzer progress from flooding the log, and retention pruning
// for per-run log files.
package logging
