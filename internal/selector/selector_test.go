package selector_test

import (
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beatcut/internal/library"
	"beatcut/internal/selector"
	"beatcut/internal/services"
	"beatcut/internal/timeline"
)

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

func makePool(n int, duration float64) []library.Clip {
	pool := make([]library.Clip, n)
	for i := range pool {
		pool[i] = library.Clip{ID: fmt.Sprintf("c%02d", i+1), Duration: duration}
	}
	return pool
}

func ids(plan timeline.Plan) []string {
	out := make([]string, len(plan.Segments))
	for i, seg := range plan.Segments {
		out[i] = seg.Clip.ID
	}
	return out
}

func TestSelectEmptyPool(t *testing.T) {
	_, err := selector.Select(selector.Request{TrackDuration: 10, NominalSegment: 2}, nil, seeded(1))
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrSelection)
	assert.Equal(t, services.KindSelection, services.Kind(err))
}

func TestTwoClipsWithCooldownThreeAlternate(t *testing.T) {
	for _, strategy := range []string{selector.StrategyWeighted, selector.StrategyRoundRobin} {
		t.Run(strategy, func(t *testing.T) {
			req := selector.Request{TrackDuration: 20, NominalSegment: 2, Strategy: strategy, Cooldown: 3}
			plan, err := selector.Select(req, makePool(2, 10), seeded(7))
			require.NoError(t, err)
			require.Len(t, plan.Segments, 10)
			assert.Equal(t, 1, plan.Cooldown)

			got := ids(plan)
			for i := 1; i < len(got); i++ {
				assert.NotEqual(t, got[i-1], got[i], "clip repeated at %d: %v", i, got)
			}
			require.NotEmpty(t, plan.Warnings)
			assert.Equal(t, timeline.WarnCooldownRelaxed, plan.Warnings[0].Code)
		})
	}
}

func TestCooldownHoldsWhenPoolIsLargeEnough(t *testing.T) {
	const window = 4
	for _, strategy := range []string{selector.StrategyWeighted, selector.StrategyRoundRobin} {
		for seed := uint64(1); seed <= 5; seed++ {
			req := selector.Request{TrackDuration: 100, NominalSegment: 2, Strategy: strategy, Cooldown: window}
			plan, err := selector.Select(req, makePool(window+1, 10), seeded(seed))
			require.NoError(t, err)
			assert.Empty(t, plan.Warnings)

			got := ids(plan)
			for i := range got {
				for j := i + 1; j <= i+window && j < len(got); j++ {
					require.NotEqual(t, got[i], got[j], "%s seed %d: %s reused within window at %d and %d", strategy, seed, got[i], i, j)
				}
			}
		}
	}
}

func TestSelectIsDeterministicForSeed(t *testing.T) {
	pool := makePool(8, 10)
	pool[2].Tags = []string{"favorite"}
	pool[5].UsageCount = 4
	req := selector.Request{
		TrackDuration:  60,
		NominalSegment: 2,
		Strategy:       selector.StrategyWeighted,
		Cooldown:       2,
		TagWeights:     map[string]float64{"favorite": 3},
	}

	first, err := selector.Select(req, pool, seeded(42))
	require.NoError(t, err)
	second, err := selector.Select(req, pool, seeded(42))
	require.NoError(t, err)
	assert.Equal(t, ids(first), ids(second))
}

func TestHistorySeedsCooldownWindow(t *testing.T) {
	req := selector.Request{
		TrackDuration:  2,
		NominalSegment: 2,
		Strategy:       selector.StrategyRoundRobin,
		Cooldown:       2,
		History:        []string{"c03", "c01", "c02"},
	}
	plan, err := selector.Select(req, makePool(4, 10), seeded(1))
	require.NoError(t, err)
	assert.Equal(t, []string{"c03"}, ids(plan))
}

func TestTieBreakPrefersLeastRecentlyUsed(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	pool := []library.Clip{
		{ID: "a", Duration: 10, UsageCount: 3, LastUsedAt: now},
		{ID: "b", Duration: 10, UsageCount: 1, LastUsedAt: now.Add(time.Hour)},
		{ID: "c", Duration: 10, UsageCount: 1, LastUsedAt: now},
		{ID: "d", Duration: 10, UsageCount: 1},
	}
	req := selector.Request{TrackDuration: 8, NominalSegment: 2, Strategy: selector.StrategyRoundRobin}
	plan, err := selector.Select(req, pool, seeded(1))
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "c", "b", "d"}, ids(plan))
}

func TestWeightedTieBreakPrefersLeastRecentlyUsed(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	pool := []library.Clip{
		{ID: "a-recent", Duration: 10, UsageCount: 2, LastUsedAt: now.Add(time.Hour)},
		{ID: "b-stale", Duration: 10, UsageCount: 2, LastUsedAt: now},
	}
	req := selector.Request{TrackDuration: 2, NominalSegment: 2, Strategy: selector.StrategyWeighted}
	for seed := uint64(1); seed <= 100; seed++ {
		plan, err := selector.Select(req, pool, seeded(seed))
		require.NoError(t, err)
		require.Equal(t, []string{"b-stale"}, ids(plan), "seed %d", seed)
	}
}

func TestWeightedDrawStillFavorsHeavierClips(t *testing.T) {
	pool := []library.Clip{
		{ID: "heavy", Duration: 10, Tags: []string{"favorite"}},
		{ID: "light", Duration: 10},
	}
	req := selector.Request{
		TrackDuration:  2,
		NominalSegment: 2,
		Strategy:       selector.StrategyWeighted,
		TagWeights:     map[string]float64{"favorite": 9},
	}
	counts := map[string]int{}
	for seed := uint64(1); seed <= 200; seed++ {
		plan, err := selector.Select(req, pool, seeded(seed))
		require.NoError(t, err)
		counts[ids(plan)[0]]++
	}
	assert.Greater(t, counts["heavy"], counts["light"])
	assert.Positive(t, counts["light"], "distinct weights must still be drawn at random")
}

func TestPrefersClipsLongEnoughForSlot(t *testing.T) {
	pool := []library.Clip{{ID: "short", Duration: 2}, {ID: "long", Duration: 6}}
	req := selector.Request{TrackDuration: 20, NominalSegment: 5, Strategy: selector.StrategyWeighted}
	plan, err := selector.Select(req, pool, seeded(3))
	require.NoError(t, err)
	for _, seg := range plan.Segments {
		assert.Equal(t, "long", seg.Clip.ID)
		assert.Equal(t, 5.0, seg.End)
	}
}

func TestZeroTagWeightExcludesClip(t *testing.T) {
	pool := []library.Clip{{ID: "a", Duration: 5, Tags: []string{"skip"}}, {ID: "b", Duration: 5}}
	req := selector.Request{TrackDuration: 10, NominalSegment: 1, TagWeights: map[string]float64{"skip": 0}}
	plan, err := selector.Select(req, pool, seeded(9))
	require.NoError(t, err)
	for _, id := range ids(plan) {
		assert.Equal(t, "b", id)
	}
}

func TestRoundRobinCyclesTags(t *testing.T) {
	pool := []library.Clip{
		{ID: "d1", Duration: 5, Tags: []string{"dance"}},
		{ID: "d2", Duration: 5, Tags: []string{"dance"}},
		{ID: "n1", Duration: 5, Tags: []string{"neon"}},
	}
	req := selector.Request{
		TrackDuration:  4,
		NominalSegment: 1,
		Strategy:       selector.StrategyRoundRobin,
		Tags:           []string{"dance", "neon"},
	}
	plan, err := selector.Select(req, pool, seeded(1))
	require.NoError(t, err)
	assert.Equal(t, []string{"d1", "n1", "d2", "n1"}, ids(plan))
}

func TestNominalSlotsCoverDuration(t *testing.T) {
	slots := selector.NominalSlots(10, 3)
	require.Len(t, slots, 3)
	assert.Equal(t, 0.0, slots[0].Start)
	assert.Equal(t, 6.0, slots[2].Start)
	assert.Equal(t, 10.0, slots[2].End)
	assert.Empty(t, selector.NominalSlots(0, 3))
}
