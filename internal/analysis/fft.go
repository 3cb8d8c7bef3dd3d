package analysis

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// Spectrum returns the one-sided amplitude spectrum of samples taken every
// dt, with the mean removed. freqs[k] is in cycles per time unit.
func Spectrum(samples []float64, dt float64) (freqs, power []float64) {
	n := len(samples)
	if n < 2 || dt <= 0 {
		return nil, nil
	}

	mean := 0.0
	for _, s := range samples {
		mean += s
	}
	mean /= float64(n)
	centered := make([]float64, n)
	for i, s := range samples {
		centered[i] = s - mean
	}

	coeffs := fft.FFTReal(centered)
	half := n/2 + 1
	freqs = make([]float64, half)
	power = make([]float64, half)
	for k := 0; k < half; k++ {
		freqs[k] = float64(k) / (float64(n) * dt)
		power[k] = cmplx.Abs(coeffs[k]) / float64(n)
	}
	return freqs, power
}

// DominantFrequency returns the frequency of the largest non-DC peak, or 0
// for constant or too short input.
func DominantFrequency(samples []float64, dt float64) float64 {
	freqs, power := Spectrum(samples, dt)
	best, at := 0.0, 0
	for k := 1; k < len(power); k++ {
		if power[k] > best {
			best, at = power[k], k
		}
	}
	if at == 0 || best < 1e-12 {
		return 0
	}
	return freqs[at]
}

// Column extracts column k of rows. Short rows give 0.
func Column(rows [][]float64, k int) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		if k < len(r) {
			out[i] = r[k]
		}
	}
	return out
}
