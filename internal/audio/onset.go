package audio

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
)

// logGain compresses spectral magnitudes before differencing.
const logGain = 100.0

// features holds the frame-level curves derived from one STFT pass.
type features struct {
	onset []float64
	rms   []float64
}

// extractFeatures computes the spectral-flux onset envelope and frame RMS.
// Frames are centered: frame i covers samples around i*hop, with the signal
// zero-padded by frameSize/2 on both sides.
func extractFeatures(samples []float64, frameSize, hop int) features {
	if len(samples) == 0 || frameSize <= 0 || hop <= 0 {
		return features{}
	}
	pad := frameSize / 2
	nFrames := 1 + len(samples)/hop
	window := hann(frameSize)
	fft := fourier.NewFFT(frameSize)

	frame := make([]float64, frameSize)
	coeffs := make([]complex128, frameSize/2+1)
	prev := make([]float64, frameSize/2+1)
	cur := make([]float64, frameSize/2+1)

	out := features{
		onset: make([]float64, nFrames),
		rms:   make([]float64, nFrames),
	}
	for i := range nFrames {
		start := i*hop - pad
		var energy float64
		for j := range frameSize {
			idx := start + j
			v := 0.0
			if idx >= 0 && idx < len(samples) {
				v = samples[idx]
			}
			energy += v * v
			frame[j] = v * window[j]
		}
		out.rms[i] = math.Sqrt(energy / float64(frameSize))

		coeffs = fft.Coefficients(coeffs, frame)
		for k, c := range coeffs {
			cur[k] = math.Log1p(logGain * cmplx.Abs(c))
		}
		if i > 0 {
			var flux float64
			for k := range cur {
				if d := cur[k] - prev[k]; d > 0 {
					flux += d
				}
			}
			out.onset[i] = flux / float64(len(cur))
		}
		prev, cur = cur, prev
	}
	return out
}

func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

// normalizeMax scales values so the maximum is 1. All-zero input is returned
// unchanged.
func normalizeMax(values []float64) []float64 {
	out := append([]float64(nil), values...)
	if len(out) == 0 {
		return out
	}
	if peak := floats.Max(out); peak > 0 {
		for i := range out {
			out[i] /= peak
		}
	}
	return out
}

// gaussianSmooth convolves values with a normalized Gaussian of the given
// standard deviation in frames.
func gaussianSmooth(values []float64, sigma float64) []float64 {
	if sigma <= 0 || len(values) == 0 {
		return append([]float64(nil), values...)
	}
	radius := int(math.Ceil(3 * sigma))
	kernel := make([]float64, 2*radius+1)
	for i := range kernel {
		x := float64(i - radius)
		kernel[i] = math.Exp(-0.5 * x * x / (sigma * sigma))
	}
	floats.Scale(1/floats.Sum(kernel), kernel)
	return convolveSame(values, kernel)
}

// convolveSame returns the centered part of the full convolution, the same
// length as values.
func convolveSame(values, kernel []float64) []float64 {
	out := make([]float64, len(values))
	radius := len(kernel) / 2
	for i := range values {
		var acc float64
		for k, w := range kernel {
			j := i + k - radius
			if j < 0 || j >= len(values) {
				continue
			}
			acc += values[j] * w
		}
		out[i] = acc
	}
	return out
}

// pickPeaks returns frame indices of onset peaks: local maxima within
// preMax/postMax frames that exceed the local mean by delta, at least wait
// frames apart. env should be normalized to [0, 1].
func pickPeaks(env []float64, preMax, postMax, preAvg, postAvg, wait int, delta float64) []int {
	var peaks []int
	last := -wait - 1
	for i, v := range env {
		if v <= 0 {
			continue
		}
		lo := max(0, i-preMax)
		hi := min(len(env), i+postMax+1)
		if v < floats.Max(env[lo:hi]) {
			continue
		}
		lo = max(0, i-preAvg)
		hi = min(len(env), i+postAvg+1)
		if v < floats.Sum(env[lo:hi])/float64(hi-lo)+delta {
			continue
		}
		if i-last <= wait {
			continue
		}
		peaks = append(peaks, i)
		last = i
	}
	return peaks
}
