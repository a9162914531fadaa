// Package preflight provides readiness checks for the external binaries,
// directories and clip catalog a beatcut run depends on.
//
// The CLI "beatcut doctor" command runs every check; the run workflow uses
// CheckFreeSpace before rendering so a nearly full work volume is reported
// before the encoder starts.
package preflight
