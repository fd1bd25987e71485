// Package rhubarb mediates access to the Rhubarb Lip Sync command line tool.
//
// It builds the analyzer command line, launches the process behind a Launcher
// interface so tests can substitute scripted processes, and decodes both the
// machine-readable diagnostics written to stderr and the JSON result document
// written to stdout.
//
// A launched Process is polled rather than waited on: Poll blocks for at most
// the supplied duration and returns any diagnostic lines received since the
// previous call. This matches the timer-driven loop in internal/lipsync, which
// must never block the host for longer than one poll timeout.
package rhubarb
