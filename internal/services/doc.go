// Package services defines shared utilities consumed by the run workflow and
// the stage packages.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs and stage names for logging.
//   - Structured error markers plus the Wrap helper, so a failed run can be
//     classified as an analysis, library, selection, alignment or render
//     failure without string matching.
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
