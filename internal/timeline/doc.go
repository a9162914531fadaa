// Package timeline holds the value types passed between selection,
// alignment, rendering and reporting: cut slots on the output timeline, the
// clip segments chosen for them, and the final edit list.
package timeline
