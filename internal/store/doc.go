// Package store persists clip usage, cooldown history, probe results and run
// history in SQLite.
//
// Usage counts are the only state shared between concurrent runs. Every
// read-modify-write goes through one transaction guarded by an in-process
// mutex and a cross-process file lock next to the database, so two runs
// finishing together never lose an increment. Busy databases are retried with
// exponential backoff.
//
// Schema changes bump schemaVersion in schema.go; users delete the database
// to adopt the new schema. Usage history is lost when that happens.
package store
