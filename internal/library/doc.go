// Package library indexes the clips available to a run.
//
// Clip metadata comes from one of two sources: the SQLite database maintained
// by the external library scanner (table "sources"), or a YAML/JSON catalog
// file. Durations and dimensions the source does not record are filled in
// with ffprobe and cached in the usage store. Usage counts live in the store
// too, so they survive across runs and are shared by concurrent runs.
//
// ListCandidates returns a finite, restartable sequence over a snapshot of
// the index; RecordUsage is the only mutation.
package library
