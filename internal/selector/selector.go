package selector

import (
	"cmp"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"beatcut/internal/library"
	"beatcut/internal/services"
	"beatcut/internal/timeline"
)

// Strategies.
const (
	StrategyWeighted   = "weighted"
	StrategyRoundRobin = "round_robin"
)

const stageName = "selection"

// Request describes what to select for.
type Request struct {
	// Slots are the cut slots to fill. When empty, nominal slots of
	// NominalSegment seconds are generated to cover TrackDuration.
	Slots          []timeline.Slot
	TrackDuration  float64
	NominalSegment float64
	Strategy       string
	Cooldown       int
	// TagWeights scales the weighted strategy per tag. Clips without a
	// weighted tag count as 1; a clip with several weighted tags takes the
	// largest.
	TagWeights map[string]float64
	// Tags fixes the round-robin tag order. Defaults to every pool tag in
	// sorted order.
	Tags []string
	// History lists clip ids used by previous runs, oldest first.
	History []string
}

// Select fills every slot with a clip from pool. It fails with a
// SelectionError only when pool is empty.
func Select(req Request, pool []library.Clip, rng *rand.Rand) (timeline.Plan, error) {
	if len(pool) == 0 {
		return timeline.Plan{}, services.Wrap(services.ErrSelection, stageName, "select", "Candidate pool is empty", nil)
	}
	if rng == nil {
		return timeline.Plan{}, services.Wrap(services.ErrConfiguration, stageName, "select", "Random source is required", nil)
	}
	slots := req.Slots
	if len(slots) == 0 {
		slots = NominalSlots(req.TrackDuration, req.NominalSegment)
	}
	if len(slots) == 0 {
		return timeline.Plan{}, services.Wrap(services.ErrSelection, stageName, "select", "Nothing to fill: track has no duration", nil)
	}

	s := newState(pool, req.Cooldown, req.History)
	var warnings []timeline.Warning
	if s.cooldown < req.Cooldown {
		warnings = append(warnings, timeline.Warning{
			Stage: stageName,
			Code:  timeline.WarnCooldownRelaxed,
			Message: fmt.Sprintf("pool of %d clips cannot honor cooldown %d; relaxed to %d",
				len(pool), req.Cooldown, s.cooldown),
		})
	}

	var pick func(candidates []*candidate) *candidate
	switch req.Strategy {
	case StrategyRoundRobin:
		rr := newRoundRobin(req.Tags, pool)
		pick = rr.pick
	default:
		pick = func(candidates []*candidate) *candidate {
			return pickWeighted(candidates, req.TagWeights, rng)
		}
	}

	segments := make([]timeline.Segment, 0, len(slots))
	for _, slot := range slots {
		candidates := s.eligible(slot.Duration())
		chosen := pick(candidates)
		s.use(chosen)
		segments = append(segments, timeline.Segment{
			Clip:  chosen.clip,
			Start: 0,
			End:   math.Min(chosen.clip.Duration, slot.Duration()),
			Slot:  slot,
		})
	}

	if distinct := s.distinctUsed(); len(segments) >= 3 && distinct < 3 {
		warnings = append(warnings, timeline.Warning{
			Stage:   stageName,
			Code:    timeline.WarnLowVariety,
			Message: fmt.Sprintf("only %d distinct clips fill %d slots", distinct, len(segments)),
		})
	}

	return timeline.Plan{Segments: segments, Cooldown: s.cooldown, Warnings: warnings}, nil
}

// NominalSlots splits duration into consecutive slots of length seconds; the
// last slot absorbs the remainder.
func NominalSlots(duration, length float64) []timeline.Slot {
	if duration <= 0 {
		return nil
	}
	if length <= 0 {
		length = duration
	}
	count := max(1, int(math.Round(duration/length)))
	slots := make([]timeline.Slot, count)
	for i := range slots {
		slots[i] = timeline.Slot{Index: i, Start: float64(i) * length, End: float64(i+1) * length}
	}
	slots[count-1].End = duration
	return slots
}

// candidate tracks a clip's usage as selection proceeds.
type candidate struct {
	clip     library.Clip
	usage    int
	lastUsed time.Time
	picked   int
}

// less orders candidates least recently used first: lowest usage count,
// then earliest last use (never used first), then clip id.
func less(a, b *candidate) int {
	if c := cmp.Compare(a.usage, b.usage); c != 0 {
		return c
	}
	if c := a.lastUsed.Compare(b.lastUsed); c != 0 {
		return c
	}
	return cmp.Compare(a.clip.ID, b.clip.ID)
}

type state struct {
	all      []*candidate
	byID     map[string]*candidate
	cooldown int
	recent   []string
	clock    time.Time
}

func newState(pool []library.Clip, cooldown int, history []string) *state {
	s := &state{byID: make(map[string]*candidate, len(pool))}
	for _, clip := range pool {
		if _, dup := s.byID[clip.ID]; dup {
			continue
		}
		c := &candidate{clip: clip, usage: clip.UsageCount, lastUsed: clip.LastUsedAt}
		s.all = append(s.all, c)
		s.byID[clip.ID] = c
		if clip.LastUsedAt.After(s.clock) {
			s.clock = clip.LastUsedAt
		}
	}
	slices.SortFunc(s.all, func(a, b *candidate) int { return cmp.Compare(a.clip.ID, b.clip.ID) })

	s.cooldown = max(0, cooldown)
	if s.cooldown >= len(s.all) {
		s.cooldown = len(s.all) - 1
	}
	if s.cooldown > 0 && len(history) > 0 {
		start := max(0, len(history)-s.cooldown)
		s.recent = append(s.recent, history[start:]...)
	}
	return s
}

// eligible returns the candidates outside the cooldown window, preferring
// those at least as long as need. The result is in tie-break order.
func (s *state) eligible(need float64) []*candidate {
	blocked := make(map[string]bool, len(s.recent))
	for _, id := range s.recent {
		blocked[id] = true
	}
	var open, long []*candidate
	for _, c := range s.all {
		if blocked[c.clip.ID] {
			continue
		}
		open = append(open, c)
		if c.clip.Duration >= need {
			long = append(long, c)
		}
	}
	if len(open) == 0 {
		open = slices.Clone(s.all)
	}
	result := open
	if len(long) > 0 {
		result = long
	}
	slices.SortFunc(result, less)
	return result
}

func (s *state) use(c *candidate) {
	c.usage++
	c.picked++
	s.clock = s.clock.Add(time.Nanosecond)
	c.lastUsed = s.clock
	if s.cooldown == 0 {
		return
	}
	s.recent = append(s.recent, c.clip.ID)
	if len(s.recent) > s.cooldown {
		s.recent = s.recent[len(s.recent)-s.cooldown:]
	}
}

func (s *state) distinctUsed() int {
	n := 0
	for _, c := range s.all {
		if c.picked > 0 {
			n++
		}
	}
	return n
}

// pickWeighted draws a candidate with probability proportional to its
// weight. candidates must be in tie-break order: a draw landing on a weight
// shared with earlier candidates resolves to the first of them, and when
// every weight is zero the first one wins.
func pickWeighted(candidates []*candidate, tagWeights map[string]float64, rng *rand.Rand) *candidate {
	weights := make([]float64, len(candidates))
	var total float64
	for i, c := range candidates {
		weights[i] = tagWeight(c.clip, tagWeights) / float64(1+c.usage)
		total += weights[i]
	}
	if total <= 0 {
		return candidates[0]
	}
	r := rng.Float64() * total
	drawn := len(candidates) - 1
	for i, w := range weights {
		if r < w {
			drawn = i
			break
		}
		r -= w
	}
	for j := range drawn {
		if weights[j] == weights[drawn] {
			return candidates[j]
		}
	}
	return candidates[drawn]
}

func tagWeight(clip library.Clip, tagWeights map[string]float64) float64 {
	weight := -1.0
	for _, tag := range clip.Tags {
		if w, ok := tagWeights[tag]; ok && w > weight {
			weight = w
		}
	}
	if weight < 0 {
		return 1
	}
	return weight
}

type roundRobin struct {
	tags   []string
	cursor int
}

func newRoundRobin(order []string, pool []library.Clip) *roundRobin {
	tags := slices.Clone(order)
	if len(tags) == 0 {
		for _, clip := range pool {
			for _, tag := range clip.Tags {
				if !slices.Contains(tags, tag) {
					tags = append(tags, tag)
				}
			}
		}
		slices.Sort(tags)
	}
	return &roundRobin{tags: tags}
}

// pick takes the first candidate carrying the current tag, advancing past
// tags no candidate carries. Without any tag match the least recently used
// candidate wins.
func (r *roundRobin) pick(candidates []*candidate) *candidate {
	for range r.tags {
		tag := r.tags[r.cursor%len(r.tags)]
		r.cursor++
		for _, c := range candidates {
			if c.clip.HasTag(tag) {
				return c
			}
		}
	}
	return candidates[0]
}
