// Package lipsync drives the Rhubarb analyzer and turns its mouth cues into
// keyframes on a host rig.
//
// A Run moves through idle, running, pass-through, finished and cancelled.
// Start validates preconditions, launches the analyzer and registers a
// recurring host timer. Each timer tick calls Poll, which drains analyzer
// diagnostics, waits a bounded time for the process to exit, and on exit
// parses the result and applies it with ApplyCues. Every terminal path
// releases the timer, the progress indicator and the process.
//
// Hosts are reached only through the small interfaces in hosts.go so the same
// driver serves bone rigs (pose-library keys) and 2D layer rigs (visibility
// keys).
package lipsync
