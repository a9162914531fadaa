package audio

import (
	"math"
	"strings"
)

// Segmentation modes.
const (
	ModeBeat    = "beat"
	ModeOnset   = "onset"
	ModeUniform = "uniform"
)

// Segment is a suggested cut span with its mean intensity.
type Segment struct {
	Index     int     `json:"index"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	Duration  float64 `json:"duration"`
	Intensity float64 `json:"intensity"`
}

// SegmentOptions controls Segments.
type SegmentOptions struct {
	Mode          string
	TargetSegment float64
	Sensitivity   float64
}

// BaseLength is the nominal segment length: TargetSegment divided by
// Sensitivity, never below 0.2s.
func (o SegmentOptions) BaseLength() float64 {
	sensitivity := o.Sensitivity
	if sensitivity <= 0 {
		sensitivity = 1
	}
	return math.Max(0.2, o.TargetSegment/sensitivity)
}

// Segments splits the track into spans. Beat and onset modes start from one
// span per beat (or onset peak) and merge neighbors until each span reaches a
// minimum length that shrinks as the music gets louder. Uniform mode cuts
// fixed-length spans. Unknown modes fall back to beat.
func Segments(track *Track, opts SegmentOptions) []Segment {
	if track == nil {
		return nil
	}
	base := opts.BaseLength()
	switch strings.ToLower(strings.TrimSpace(opts.Mode)) {
	case ModeUniform:
		return uniformSegments(track.Duration, base)
	case ModeOnset:
		if len(track.Onsets) == 0 {
			return uniformSegments(track.Duration, base)
		}
		strengths := make([]float64, len(track.Onsets))
		for i := range strengths {
			strengths[i] = 1
		}
		segs := mergeByDuration(
			spanSegments(track.Onsets, strengths, base),
			base,
			dynamicMinLengths(track, track.Onsets, base),
		)
		if len(segs) == 0 {
			return uniformSegments(track.Duration, base)
		}
		return segs
	default:
		times := track.BeatTimes()
		strengths := make([]float64, len(track.Beats))
		for i, b := range track.Beats {
			strengths[i] = b.Intensity
		}
		return mergeByDuration(
			spanSegments(times, strengths, base),
			base,
			dynamicMinLengths(track, times, base),
		)
	}
}

// spanSegments makes one segment from each time to the next; the last one
// lasts defaultLen.
func spanSegments(times, strengths []float64, defaultLen float64) []Segment {
	segs := make([]Segment, 0, len(times))
	for i, start := range times {
		end := start + defaultLen
		if i+1 < len(times) {
			end = times[i+1]
		}
		intensity := 0.0
		if i < len(strengths) {
			intensity = strengths[i]
		}
		segs = append(segs, Segment{
			Index:     i,
			Start:     round3(start),
			End:       round3(end),
			Duration:  round3(math.Max(0.1, end-start)),
			Intensity: round3(intensity),
		})
	}
	return segs
}

// mergeByDuration accumulates consecutive segments until the running length
// reaches the threshold in effect where the accumulation started. Intensity is
// the duration-weighted mean.
func mergeByDuration(segs []Segment, minLen float64, dynamic []float64) []Segment {
	if len(segs) == 0 {
		return nil
	}
	var (
		merged    []Segment
		open      bool
		accStart  float64
		accEnd    float64
		accLen    float64
		accEnergy float64
		threshold float64
	)
	flush := func() {
		if open && accLen > 0 {
			merged = append(merged, Segment{
				Index:     len(merged),
				Start:     round3(accStart),
				End:       round3(accEnd),
				Duration:  round3(accLen),
				Intensity: round3(math.Max(0, math.Min(1, accEnergy/accLen))),
			})
		}
		open = false
		accLen, accEnergy = 0, 0
	}
	for i, seg := range segs {
		if !open {
			open = true
			accStart = seg.Start
			threshold = math.Max(0.1, minLen)
			if i < len(dynamic) {
				threshold = math.Max(0.1, dynamic[i])
			}
		}
		accEnd = seg.End
		accLen += seg.Duration
		accEnergy += seg.Intensity * seg.Duration
		if accLen >= threshold {
			flush()
		}
	}
	flush()
	if len(merged) == 0 {
		return segs
	}
	return merged
}

// dynamicMinLengths interpolates each time's minimum segment length between
// slow (quiet) and fast (loud) bounds from the track energy. Without an
// energy curve every minimum is base.
func dynamicMinLengths(track *Track, times []float64, base float64) []float64 {
	out := make([]float64, len(times))
	if len(track.RMS) == 0 {
		for i := range out {
			out[i] = base
		}
		return out
	}
	fast := math.Max(0.35, base*0.5)
	slow := math.Max(base, base*1.8)
	for i, t := range times {
		energy := math.Max(0, math.Min(1, track.EnergyAt(t)))
		out[i] = slow + (fast-slow)*energy
	}
	return out
}

func uniformSegments(total, length float64) []Segment {
	if total <= 0 {
		return nil
	}
	step := math.Max(0.5, length)
	var segs []Segment
	for start := 0.0; start < total; {
		end := math.Min(total, start+step)
		segs = append(segs, Segment{
			Index:     len(segs),
			Start:     round3(start),
			End:       round3(end),
			Duration:  round3(math.Max(0.1, end-start)),
			Intensity: 1,
		})
		start = end
	}
	return segs
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
