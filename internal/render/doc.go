// Package render realizes an edit list as a single media file by driving an
// external encoder.
//
// The Encoder interface is the process boundary. FFmpegEncoder trims and
// normalizes every entry into its own intermediate file, joins them with the
// concat demuxer, then muxes the result with the track audio. Pipeline wraps
// an Encoder with the run-level guarantees: a private temporary workspace
// that is always removed, a timeout, and publication of the output only once
// the encoder has succeeded and the file has been verified.
package render
