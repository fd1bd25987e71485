// Package main hosts the mouthsync CLI entrypoint and command graph.
//
// The Cobra-based command tree drives lip-sync runs against rig documents,
// prints analyzer cues, watches sound files for changes, reads the run
// journal, and scaffolds configuration. It centralizes configuration
// resolution and per-run logging so subcommands can focus on user experience
// instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
