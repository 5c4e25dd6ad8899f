package dsp

import "math"

// Band is a named frequency range for band-power aggregation.
type Band struct {
	Name   string
	LoHz   float64
	HiHz   float64
}

// EEGBands are the five canonical EEG bands the pipeline reports.
var EEGBands = []Band{
	{"delta", 1, 4},
	{"theta", 4, 8},
	{"alpha", 8, 13},
	{"beta", 13, 30},
	{"gamma", 30, 45},
}

// PSD is a Welch-style power spectral density estimate: one averaged
// periodogram over Hann-windowed, 50%-overlapping segments.
type PSD struct {
	Frequencies []float64
	Power       []float64
}

// WelchPSD computes a Welch periodogram of x sampled at sampleRateHz,
// using segments of segLen samples with 50% overlap.
func WelchPSD(x []float64, sampleRateHz float64, segLen int) PSD {
	if segLen <= 0 || segLen > len(x) {
		segLen = len(x)
	}
	if segLen < 2 {
		return PSD{}
	}

	window := hann(segLen)
	windowPower := 0.0
	for _, w := range window {
		windowPower += w * w
	}

	step := segLen / 2
	if step < 1 {
		step = 1
	}

	nBins := segLen/2 + 1
	acc := make([]float64, nBins)
	segments := 0

	for start := 0; start+segLen <= len(x); start += step {
		seg := make([]float64, segLen)
		for i := 0; i < segLen; i++ {
			seg[i] = x[start+i] * window[i]
		}
		re, im := dft(seg)
		for k := 0; k < nBins; k++ {
			mag2 := re[k]*re[k] + im[k]*im[k]
			acc[k] += mag2 / (sampleRateHz * windowPower)
		}
		segments++
	}

	if segments == 0 {
		re, im := dft(mulWindow(x, hann(len(x))))
		wp := 0.0
		for _, w := range hann(len(x)) {
			wp += w * w
		}
		nBins = len(x)/2 + 1
		acc = make([]float64, nBins)
		for k := 0; k < nBins; k++ {
			acc[k] = (re[k]*re[k] + im[k]*im[k]) / (sampleRateHz * wp)
		}
		segments = 1
		segLen = len(x)
	}

	freqs := make([]float64, nBins)
	power := make([]float64, nBins)
	for k := 0; k < nBins; k++ {
		freqs[k] = float64(k) * sampleRateHz / float64(segLen)
		power[k] = acc[k] / float64(segments)
	}

	return PSD{Frequencies: freqs, Power: power}
}

// BandPower integrates a PSD's power between loHz and hiHz (trapezoidal).
func BandPower(psd PSD, loHz, hiHz float64) float64 {
	total := 0.0
	for i := 1; i < len(psd.Frequencies); i++ {
		f0, f1 := psd.Frequencies[i-1], psd.Frequencies[i]
		if f1 < loHz || f0 > hiHz {
			continue
		}
		total += 0.5 * (psd.Power[i-1] + psd.Power[i]) * (f1 - f0)
	}
	return total
}

func mulWindow(x, w []float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		out[i] = x[i] * w[i]
	}
	return out
}

func hann(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := 0; i < n; i++ {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// dft is a direct (O(n^2)) discrete Fourier transform, adequate for the
// short, infrequent windows these pipelines process (a handful of FFTs per
// second, not a hot loop).
func dft(x []float64) (re, im []float64) {
	n := len(x)
	re = make([]float64, n)
	im = make([]float64, n)
	for k := 0; k < n; k++ {
		var sr, si float64
		for t := 0; t < n; t++ {
			theta := -2 * math.Pi * float64(k) * float64(t) / float64(n)
			sr += x[t] * math.Cos(theta)
			si += x[t] * math.Sin(theta)
		}
		re[k] = sr
		im[k] = si
	}
	return
}
