// Package report builds and renders the human-readable summary written at the
// end of every run, successful or not.
//
// Build is pure: it folds run metadata, the edit list and the collected
// warnings into an immutable RunReport. Render formats that value as text
// tables and Write persists it. Callers treat Write failures as warnings
// rather than run failures.
package report
