// Package config loads, normalizes, and validates beatcut configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// BEATCUT_FFMPEG and BEATCUT_SCAN_DB. The Config type centralizes every knob
// the CLI and the run workflow need, so analysis, selection, alignment and
// render settings are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical enum values, and clear validation errors.
package config
