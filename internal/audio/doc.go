// Package audio turns a music file into a Track: global tempo, a beat grid
// with per-beat intensity and local tempo, onset peaks, and a normalized RMS
// energy curve.
//
// Decoding is delegated to a Decoder (ffmpeg piping mono float PCM by
// default). The signal processing runs entirely in-process: a Hann-windowed
// STFT feeds a log spectral-flux onset envelope, tempo comes from the
// envelope's autocorrelation weighted by a log-normal prior, and beats are
// placed by dynamic programming. Segments derives cut suggestions from a
// Track for project manifests and timecode files.
package audio
