// Package ffprobe wraps the ffprobe CLI to extract clip and audio metadata.
//
// Inspect runs ffprobe with JSON output and decodes streams and container
// fields. Helpers expose the first video/audio stream, frame rate, sample
// rate and duration so the clip library can fill in metadata the scanner
// database does not record.
package ffprobe
