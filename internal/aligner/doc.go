// Package aligner builds the beat-synchronized cut grid for a track and
// turns a selection plan into a gap-free edit list.
//
// CutGrid walks the beat grid a configurable number of beats at a time,
// halving the stride in loud passages and doubling it in quiet ones. Align
// then trims each chosen clip to its slot, keeping away from the clip's
// first and last EdgeGuard fraction, and applies the short-clip policy when
// a clip cannot cover its slot.
package aligner
