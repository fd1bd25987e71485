// Package config loads, normalizes, and validates mouthsync configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// RHUBARB_PATH. The Config type centralizes every knob the CLI and the
// lip-sync driver need, so the analyzer location, polling cadence, and
// animation defaults are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
