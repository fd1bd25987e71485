// Package services defines shared utilities consumed by the lip-sync driver and
// its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, animation modes, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent journal statuses (rejected vs cancelled).
//   - Thin abstractions over external tools (see the rhubarb subpackage) that
//     keep command execution and diagnostic streaming testable.
package services
