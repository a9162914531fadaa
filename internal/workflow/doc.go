// Package workflow drives one beatcut run through its state machine:
// analyzing, selecting, aligning, rendering, reporting and finally done, or
// failed from whichever stage raised the error.
//
// The Runner owns the per-run resources: the run id stamped on every log
// line, the seeded random source threaded through selection and alignment,
// and the run row in the store that records each transition. A failure at
// any stage stops the run without retries, still writes a report naming the
// failed stage and error kind, and leaves no rendered output behind. Clip
// usage is recorded only after the render succeeded.
package workflow
