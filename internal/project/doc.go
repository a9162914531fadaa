// Package project persists analyzed music as a project directory: a copy of
// the audio, manifest.json with the analysis, and timecodes.txt listing the
// suggested segments. Generation can start from a project instead of
// re-analyzing the audio.
package project
