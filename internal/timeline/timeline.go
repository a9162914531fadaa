package timeline

import (
	"errors"
	"fmt"
	"math"

	"beatcut/internal/library"
)

// epsilon absorbs floating point drift when comparing timeline positions.
const epsilon = 1e-6

// Slot is one cut on the output timeline.
type Slot struct {
	Index int
	Start float64
	End   float64
	// Beats is the number of beats the slot spans.
	Beats int
	// Energy is the mean normalized energy of the music under the slot.
	Energy float64
}

// Duration returns End - Start.
func (s Slot) Duration() float64 {
	return s.End - s.Start
}

// Segment is a sub-interval of a clip chosen for a slot. End never exceeds
// the clip duration.
type Segment struct {
	Clip  library.Clip
	Start float64
	End   float64
	Slot  Slot
}

// Duration returns End - Start.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// Warning is a non-fatal observation collected during a run.
type Warning struct {
	Stage   string `json:"stage"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("[%s] %s: %s", w.Stage, w.Code, w.Message)
}

// Warning codes.
const (
	WarnCooldownRelaxed = "cooldown_relaxed"
	WarnLowVariety      = "low_variety"
	WarnClipReplaced    = "clip_replaced"
	WarnClipLooped      = "clip_looped"
	WarnShortClip       = "short_clip"
	WarnLowDiskSpace    = "low_disk_space"
	WarnReportWrite     = "report_write_failed"
	WarnClipSkipped     = "clip_skipped"
	WarnUsageRecord     = "usage_record_failed"
)

// Plan is the Clip Selector's output: one segment per slot, in order.
type Plan struct {
	Segments []Segment
	// Cooldown is the cooldown window actually enforced after relaxation.
	Cooldown int
	Warnings []Warning
}

// EditEntry places a clip interval on the output timeline.
type EditEntry struct {
	Index int
	Clip  library.Clip
	// SourceIn and SourceOut bound the interval read from the clip.
	SourceIn  float64
	SourceOut float64
	// Start and Duration position the entry on the output timeline.
	Start    float64
	Duration float64
	// Loop repeats [SourceIn, SourceOut) until Duration is filled.
	Loop bool
}

// End returns Start + Duration.
func (e EditEntry) End() float64 {
	return e.Start + e.Duration
}

// EditList is the ordered, gap-free sequence of entries covering a track.
type EditList struct {
	Entries       []EditEntry
	TrackDuration float64
	FrameInterval float64
}

// Duration returns the end of the last entry.
func (l EditList) Duration() float64 {
	if len(l.Entries) == 0 {
		return 0
	}
	return l.Entries[len(l.Entries)-1].End()
}

// ClipIDs lists the clip id of every entry in timeline order.
func (l EditList) ClipIDs() []string {
	ids := make([]string, len(l.Entries))
	for i, e := range l.Entries {
		ids[i] = e.Clip.ID
	}
	return ids
}

// Validate checks that entries are contiguous from zero, that every source
// interval fits its clip, and that the list ends within one frame of the
// track duration.
func (l EditList) Validate() error {
	if len(l.Entries) == 0 {
		return errors.New("edit list is empty")
	}
	tolerance := math.Max(l.FrameInterval, epsilon)
	cursor := 0.0
	for i, e := range l.Entries {
		if e.Duration <= 0 {
			return fmt.Errorf("entry %d has non-positive duration %.6f", i, e.Duration)
		}
		if math.Abs(e.Start-cursor) > epsilon {
			return fmt.Errorf("entry %d starts at %.6f, expected %.6f", i, e.Start, cursor)
		}
		if e.SourceIn < -epsilon || e.SourceOut <= e.SourceIn {
			return fmt.Errorf("entry %d has invalid source interval [%.6f, %.6f)", i, e.SourceIn, e.SourceOut)
		}
		if e.Clip.Duration > 0 && e.SourceOut > e.Clip.Duration+epsilon {
			return fmt.Errorf("entry %d reads past the end of clip %s", i, e.Clip.ID)
		}
		if !e.Loop && math.Abs((e.SourceOut-e.SourceIn)-e.Duration) > epsilon {
			return fmt.Errorf("entry %d source length %.6f differs from duration %.6f", i, e.SourceOut-e.SourceIn, e.Duration)
		}
		cursor = e.End()
	}
	if math.Abs(cursor-l.TrackDuration) > tolerance {
		return fmt.Errorf("edit list ends at %.6f, track is %.6f", cursor, l.TrackDuration)
	}
	return nil
}
