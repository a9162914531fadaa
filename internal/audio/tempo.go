package audio

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// tempoPriorOctaves is the standard deviation of the log-normal tempo prior.
const tempoPriorOctaves = 1.0

// estimateTempo returns the global tempo in BPM. The onset envelope is
// smoothed and mean-removed, autocorrelated over the lag range allowed by
// [minBPM, maxBPM], and each lag is weighted by a log-normal prior centered
// on startBPM. Returns 0 when the envelope carries no periodicity.
func estimateTempo(onset []float64, frameRate, minBPM, maxBPM, startBPM float64) float64 {
	if len(onset) < 4 || frameRate <= 0 {
		return 0
	}
	env := gaussianSmooth(onset, 2)
	mean := stat.Mean(env, nil)
	for i := range env {
		env[i] -= mean
	}

	minLag := max(1, int(math.Floor(60*frameRate/maxBPM)))
	maxLag := min(len(env)-1, int(math.Ceil(60*frameRate/minBPM)))
	if maxLag <= minLag {
		return 0
	}

	scores := make([]float64, maxLag+2)
	best := -1
	for lag := minLag; lag <= maxLag; lag++ {
		n := len(env) - lag
		ac := floats.Dot(env[:n], env[lag:]) / float64(n)
		bpm := 60 * frameRate / float64(lag)
		if bpm < minBPM || bpm > maxBPM {
			continue
		}
		scores[lag] = ac * tempoPrior(bpm, startBPM)
		if scores[lag] > 0 && (best < 0 || scores[lag] > scores[best]) {
			best = lag
		}
	}
	if best < 0 {
		return 0
	}

	lag := float64(best)
	if best > minLag && best < maxLag {
		lag += parabolicOffset(scores[best-1], scores[best], scores[best+1])
	}
	bpm := 60 * frameRate / lag
	return math.Max(minBPM, math.Min(maxBPM, bpm))
}

func tempoPrior(bpm, startBPM float64) float64 {
	if startBPM <= 0 {
		return 1
	}
	z := math.Log2(bpm/startBPM) / tempoPriorOctaves
	return math.Exp(-0.5 * z * z)
}

// parabolicOffset returns the vertex offset in [-0.5, 0.5] of the parabola
// through three equally spaced samples.
func parabolicOffset(left, center, right float64) float64 {
	denom := left - 2*center + right
	if denom == 0 {
		return 0
	}
	offset := 0.5 * (left - right) / denom
	return math.Max(-0.5, math.Min(0.5, offset))
}
