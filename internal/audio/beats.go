package audio

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// trackBeats places beats on the onset envelope by dynamic programming.
// period is the expected inter-beat interval in frames; tightness penalizes
// deviation from it on a log scale, which lets the grid follow gradual tempo
// changes. Returns beat frame indices in increasing order.
func trackBeats(onset []float64, period, tightness float64) []int {
	if len(onset) == 0 || period <= 0 {
		return nil
	}
	std := stat.StdDev(onset, nil)
	if std == 0 || math.IsNaN(std) {
		return nil
	}
	norm := make([]float64, len(onset))
	for i, v := range onset {
		norm[i] = v / std
	}

	// Local score favors onsets near beat-sized bumps.
	radius := int(math.Round(period))
	kernel := make([]float64, 2*radius+1)
	for i := range kernel {
		x := float64(i-radius) * 32 / period
		kernel[i] = math.Exp(-0.5 * x * x)
	}
	local := convolveSame(norm, kernel)

	n := len(local)
	cum := make([]float64, n)
	back := make([]int, n)
	far := int(math.Round(2 * period))
	near := max(1, int(math.Round(period/2)))
	for i := range n {
		best := math.Inf(-1)
		bestIdx := -1
		for j := max(0, i-far); j <= i-near; j++ {
			score := cum[j] - tightness*sq(math.Log(float64(i-j)/period))
			if score > best {
				best = score
				bestIdx = j
			}
		}
		if bestIdx < 0 || best < 0 {
			cum[i] = local[i]
			back[i] = -1
			continue
		}
		cum[i] = local[i] + best
		back[i] = bestIdx
	}

	last := lastBeat(cum)
	if last < 0 {
		return nil
	}
	var beats []int
	for i := last; i >= 0; i = back[i] {
		beats = append(beats, i)
	}
	slices.Reverse(beats)
	return trimWeakBeats(beats, local)
}

// lastBeat picks the final local maximum of the cumulative score that reaches
// half the median of all local maxima.
func lastBeat(cum []float64) int {
	var peaks []int
	for i := range cum {
		left := i == 0 || cum[i] > cum[i-1]
		right := i == len(cum)-1 || cum[i] >= cum[i+1]
		if left && right {
			peaks = append(peaks, i)
		}
	}
	if len(peaks) == 0 {
		return -1
	}
	values := make([]float64, len(peaks))
	for i, p := range peaks {
		values[i] = cum[p]
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	threshold := 0.5 * sorted[len(sorted)/2]
	for i := len(peaks) - 1; i >= 0; i-- {
		if values[i] >= threshold {
			return peaks[i]
		}
	}
	return peaks[len(peaks)-1]
}

// trimWeakBeats drops leading and trailing beats whose local score falls below
// half the RMS of the local score at all beats.
func trimWeakBeats(beats []int, local []float64) []int {
	if len(beats) == 0 {
		return beats
	}
	var sum float64
	for _, b := range beats {
		sum += local[b] * local[b]
	}
	threshold := 0.5 * math.Sqrt(sum/float64(len(beats)))
	start, end := 0, len(beats)
	for start < end && local[beats[start]] < threshold {
		start++
	}
	for end > start && local[beats[end-1]] < threshold {
		end--
	}
	return beats[start:end]
}

func sq(v float64) float64 { return v * v }
