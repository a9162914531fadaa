package aligner

import (
	"cmp"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"beatcut/internal/audio"
	"beatcut/internal/config"
	"beatcut/internal/library"
	"beatcut/internal/services"
	"beatcut/internal/timeline"
)

// Short-clip policies.
const (
	PolicyReplace         = "replace"
	PolicyLoop            = "loop"
	PolicyReplaceThenLoop = "replace_then_loop"
)

const stageName = "alignment"

// Aligner places clips on the beat grid.
type Aligner struct {
	cfg config.Alignment
	fps int
}

// New returns an aligner producing boundaries on a fps frame grid.
func New(cfg config.Alignment, fps int) *Aligner {
	if fps <= 0 {
		fps = 30
	}
	return &Aligner{cfg: cfg, fps: fps}
}

// FrameInterval is the duration of one output frame.
func (a *Aligner) FrameInterval() float64 {
	return 1 / float64(a.fps)
}

// CutGrid returns contiguous slots covering [0, track.Duration]. Boundaries
// fall on beats, quantized to the frame grid; the first slot starts at 0 and
// the last ends at the track duration. Tracks with fewer than two beats get a
// single slot.
func (a *Aligner) CutGrid(track *audio.Track) []timeline.Slot {
	if track == nil || track.Duration <= 0 {
		return nil
	}
	beats := track.BeatTimes()
	frame := a.FrameInterval()
	adaptive := a.cfg.EnergyAdaptive && len(track.RMS) > 0

	bounds := []float64{0}
	strides := []int{}
	for i := 0; i < len(beats); {
		stride := max(1, a.cfg.BeatsPerCut)
		if adaptive {
			end := track.Duration
			if j := i + stride; j < len(beats) {
				end = beats[j]
			}
			stride = a.adaptStride(stride, track.MeanEnergy(beats[i], end))
		}
		next := i + stride
		if next >= len(beats) {
			break
		}
		t := quantize(beats[next], a.fps)
		if t-bounds[len(bounds)-1] >= frame/2 && track.Duration-t >= frame/2 {
			bounds = append(bounds, t)
			strides = append(strides, next-i)
		}
		i = next
	}
	bounds = append(bounds, track.Duration)

	slots := make([]timeline.Slot, 0, len(bounds)-1)
	for i := 0; i+1 < len(bounds); i++ {
		beatsInSlot := max(1, a.cfg.BeatsPerCut)
		if i < len(strides) {
			beatsInSlot = strides[i]
		}
		slots = append(slots, timeline.Slot{
			Index:  i,
			Start:  bounds[i],
			End:    bounds[i+1],
			Beats:  beatsInSlot,
			Energy: track.MeanEnergy(bounds[i], bounds[i+1]),
		})
	}
	return slots
}

func (a *Aligner) adaptStride(stride int, energy float64) int {
	switch {
	case energy >= a.cfg.HighEnergy:
		stride /= 2
	case energy <= a.cfg.LowEnergy:
		stride *= 2
	}
	lo := max(1, a.cfg.MinBeatsPerCut)
	hi := max(lo, a.cfg.MaxBeatsPerCut)
	return min(hi, max(lo, stride))
}

// Align converts the plan into an edit list. pool supplies replacement
// clips for the replace policies. The plan's cooldown window also applies to
// replacements; it shrinks one step at a time when no long-enough clip lies
// outside it.
func (a *Aligner) Align(track *audio.Track, plan timeline.Plan, pool []library.Clip, rng *rand.Rand) (timeline.EditList, []timeline.Warning, error) {
	list := timeline.EditList{FrameInterval: a.FrameInterval()}
	if track == nil {
		return list, nil, services.Wrap(services.ErrAlignment, stageName, "align", "No track to align to", nil)
	}
	list.TrackDuration = track.Duration
	if len(plan.Segments) == 0 {
		return list, nil, services.Wrap(services.ErrAlignment, stageName, "align", "Selection plan is empty", nil)
	}
	if rng == nil {
		return list, nil, services.Wrap(services.ErrConfiguration, stageName, "align", "Random source is required", nil)
	}

	usage := make(map[string]int, len(pool))
	for _, clip := range pool {
		usage[clip.ID] = clip.UsageCount
	}
	for _, seg := range plan.Segments {
		usage[seg.Clip.ID]++
	}

	var warnings []timeline.Warning
	entries := make([]timeline.EditEntry, 0, len(plan.Segments))
	for i, seg := range plan.Segments {
		target := seg.Slot.Duration()
		clip := seg.Clip
		loop := false

		if clip.Duration < target {
			resolved, looped, notes, err := a.resolveShort(i, clip, target, entries, plan, pool, usage)
			warnings = append(warnings, notes...)
			if err != nil {
				return list, warnings, err
			}
			clip, loop = resolved, looped
		}

		entry := timeline.EditEntry{
			Index:    i,
			Clip:     clip,
			Start:    seg.Slot.Start,
			Duration: target,
			Loop:     loop,
		}
		if loop {
			entry.SourceIn, entry.SourceOut = 0, clip.Duration
		} else {
			entry.SourceIn = a.inPoint(clip.Duration, target, rng)
			entry.SourceOut = entry.SourceIn + target
		}
		entries = append(entries, entry)
	}

	list.Entries = entries
	if err := list.Validate(); err != nil {
		return list, warnings, services.Wrap(services.ErrAlignment, stageName, "validate", "Edit list is inconsistent", err)
	}
	return list, warnings, nil
}

// inPoint chooses where to start reading a clip of length clipLen for
// target seconds. The start is drawn uniformly from the window that keeps the
// trimmed interval clear of the first and last EdgeGuard fraction of the
// clip; the guard shrinks evenly when the clip has less slack than that.
func (a *Aligner) inPoint(clipLen, target float64, rng *rand.Rand) float64 {
	slack := clipLen - target
	if slack <= 0 {
		return 0
	}
	guard := math.Min(a.cfg.EdgeGuard*clipLen, slack/2)
	lo := guard
	hi := slack - guard
	in := lo
	if hi > lo {
		in = lo + rng.Float64()*(hi-lo)
	}
	in = math.Floor(in*1000) / 1000
	return math.Max(0, math.Min(in, slack))
}

// resolveShort applies the short-clip policy to slot i.
func (a *Aligner) resolveShort(i int, clip library.Clip, target float64, placed []timeline.EditEntry, plan timeline.Plan, pool []library.Clip, usage map[string]int) (library.Clip, bool, []timeline.Warning, error) {
	policy := a.cfg.ShortClipPolicy
	if policy == "" {
		policy = PolicyReplace
	}

	if policy == PolicyReplace || policy == PolicyReplaceThenLoop {
		for window := max(0, plan.Cooldown); window >= 0; window-- {
			replacement, ok := replacementFor(i, target, window, placed, plan, pool, usage)
			if !ok {
				continue
			}
			usage[clip.ID]--
			usage[replacement.ID]++
			var notes []timeline.Warning
			if window < plan.Cooldown {
				notes = append(notes, timeline.Warning{
					Stage:   stageName,
					Code:    timeline.WarnCooldownRelaxed,
					Message: fmt.Sprintf("slot %d: no clip of at least %.2fs outside cooldown %d; relaxed to %d", i, target, plan.Cooldown, window),
				})
			}
			notes = append(notes, timeline.Warning{
				Stage:   stageName,
				Code:    timeline.WarnClipReplaced,
				Message: fmt.Sprintf("slot %d: clip %s (%.2fs) shorter than %.2fs, replaced by %s", i, clip.ID, clip.Duration, target, replacement.ID),
			})
			return replacement, false, notes, nil
		}
		if policy == PolicyReplace {
			return clip, false, nil, services.Wrap(services.ErrAlignment, stageName, "replace",
				fmt.Sprintf("No clip of at least %.2fs available for slot %d", target, i), nil)
		}
	}

	if clip.Duration < a.FrameInterval() {
		return clip, false, nil, services.Wrap(services.ErrAlignment, stageName, "loop",
			fmt.Sprintf("Clip %s is too short to loop for slot %d", clip.ID, i), nil)
	}
	return clip, true, []timeline.Warning{{
		Stage:   stageName,
		Code:    timeline.WarnClipLooped,
		Message: fmt.Sprintf("slot %d: clip %s (%.2fs) looped to fill %.2fs", i, clip.ID, clip.Duration, target),
	}}, nil
}

// replacementFor returns the least-used clip at least target seconds long
// that is outside a cooldown window of the given size around slot i. Ties go
// to the earliest last use, then the clip id.
func replacementFor(i int, target float64, window int, placed []timeline.EditEntry, plan timeline.Plan, pool []library.Clip, usage map[string]int) (library.Clip, bool) {
	blocked := make(map[string]bool)
	for j := max(0, i-window); j < i; j++ {
		blocked[placed[j].Clip.ID] = true
	}
	for j := i + 1; j <= i+window && j < len(plan.Segments); j++ {
		blocked[plan.Segments[j].Clip.ID] = true
	}

	var options []library.Clip
	for _, clip := range pool {
		if clip.Duration >= target && !blocked[clip.ID] {
			options = append(options, clip)
		}
	}
	if len(options) == 0 {
		return library.Clip{}, false
	}
	slices.SortFunc(options, func(x, y library.Clip) int {
		if c := cmp.Compare(usage[x.ID], usage[y.ID]); c != 0 {
			return c
		}
		if c := x.LastUsedAt.Compare(y.LastUsedAt); c != 0 {
			return c
		}
		return cmp.Compare(x.ID, y.ID)
	})
	return options[0], true
}

// quantize snaps t to the nearest frame boundary at fps.
func quantize(t float64, fps int) float64 {
	return math.Round(t*float64(fps)) / float64(fps)
}
