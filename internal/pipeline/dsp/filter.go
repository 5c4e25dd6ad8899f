// Package dsp implements the small set of signal-processing primitives the
// EEG/PPG/ACC pipelines need: IIR band-pass/notch filtering and a
// Welch-style power spectral density estimate. These are narrow,
// spec-pinned computations; deliberately hand-rolled rather than pulled
// from a general numerical package (see DESIGN.md).
package dsp

import "math"

// Biquad is a single second-order IIR section in Direct Form I.
type Biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
	x1, x2     float64
	y1, y2     float64
}

// Apply filters one sample through the section, updating its state.
func (f *Biquad) Apply(x float64) float64 {
	y := f.b0*x + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2
	f.x2, f.x1 = f.x1, x
	f.y2, f.y1 = f.y1, y
	return y
}

// ApplyAll filters an entire slice in place order, returning a new slice.
func (f *Biquad) ApplyAll(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = f.Apply(x)
	}
	return out
}

// NewBandpass builds a cascaded band-pass filter (high-pass then low-pass
// Butterworth sections) for [loHz, hiHz] at the given sample rate.
func NewBandpass(loHz, hiHz, sampleRateHz float64) []*Biquad {
	return []*Biquad{
		newHighpass(loHz, sampleRateHz),
		newLowpass(hiHz, sampleRateHz),
	}
}

// NewNotch builds a narrow-band reject filter centered at centerHz (e.g.
// 50/60 Hz mains hum) with the given quality factor.
func NewNotch(centerHz, sampleRateHz, q float64) *Biquad {
	w0 := 2 * math.Pi * centerHz / sampleRateHz
	alpha := math.Sin(w0) / (2 * q)
	cosw0 := math.Cos(w0)

	b0, b1, b2 := 1.0, -2*cosw0, 1.0
	a0, a1, a2 := 1+alpha, -2*cosw0, 1-alpha

	return &Biquad{
		b0: b0 / a0, b1: b1 / a0, b2: b2 / a0,
		a1: a1 / a0, a2: a2 / a0,
	}
}

func newLowpass(cutoffHz, sampleRateHz float64) *Biquad {
	w0 := 2 * math.Pi * cutoffHz / sampleRateHz
	alpha := math.Sin(w0) / math.Sqrt2
	cosw0 := math.Cos(w0)

	b0 := (1 - cosw0) / 2
	b1 := 1 - cosw0
	b2 := (1 - cosw0) / 2
	a0 := 1 + alpha
	a1 := -2 * cosw0
	a2 := 1 - alpha

	return &Biquad{
		b0: b0 / a0, b1: b1 / a0, b2: b2 / a0,
		a1: a1 / a0, a2: a2 / a0,
	}
}

func newHighpass(cutoffHz, sampleRateHz float64) *Biquad {
	w0 := 2 * math.Pi * cutoffHz / sampleRateHz
	alpha := math.Sin(w0) / math.Sqrt2
	cosw0 := math.Cos(w0)

	b0 := (1 + cosw0) / 2
	b1 := -(1 + cosw0)
	b2 := (1 + cosw0) / 2
	a0 := 1 + alpha
	a1 := -2 * cosw0
	a2 := 1 - alpha

	return &Biquad{
		b0: b0 / a0, b1: b1 / a0, b2: b2 / a0,
		a1: a1 / a0, a2: a2 / a0,
	}
}

// FilterCascade runs xs through each section of a cascade in order.
func FilterCascade(sections []*Biquad, xs []float64) []float64 {
	out := xs
	for _, sec := range sections {
		out = sec.ApplyAll(out)
	}
	return out
}
