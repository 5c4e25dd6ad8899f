package pipeline

import (
	"math"
	"sort"
	"time"

	"github.com/linkband-io/linkband-server/internal/device"
	"github.com/linkband-io/linkband-server/internal/pipeline/dsp"
	"github.com/sirupsen/logrus"
)

const ppgWindowSize = 60 * time.Second
const ppgSampleRateHz = 50
const minBeatsForHRV = 20

// PPGPipeline filters, windows, and derives heart-rate/HRV metrics from PPG
// samples.
type PPGPipeline struct {
	r *runner
}

// NewPPGPipeline constructs the PPG pipeline publishing to bus.
func NewPPGPipeline(bus Publisher, logger *logrus.Logger) *PPGPipeline {
	p := &PPGPipeline{}
	p.r = &runner{
		kind:       device.SensorPPG,
		windowSize: ppgWindowSize,
		logger:     logger,
		bus:        bus,
		compute:    p.compute,
	}
	return p
}

// Runner exposes the generic windowing harness for the engine to start.
func (p *PPGPipeline) Runner() *runner { return p.r }

func (p *PPGPipeline) compute(window []device.Sample, windowEndUs int64) (any, bool) {
	minSamples := int(ppgSampleRateHz * 60 * 0.9) // allow some tolerance below a full window

	var raw []float64
	var hostTimes []int64
	for _, s := range window {
		g, ok := s.(device.PPGSample)
		if !ok {
			continue
		}
		raw = append(raw, g.IR)
		hostTimes = append(hostTimes, g.THost)
	}
	if len(raw) < minSamples {
		return nil, false
	}

	bandpass := dsp.NewBandpass(0.5, 8, ppgSampleRateHz)
	filtered := dsp.FilterCascade(bandpass, raw)

	sqi := make([]float64, len(filtered))
	for i := range filtered {
		sqi[i] = 1.0
	}

	frame := &PPGProcessed{
		THost:       windowEndUs,
		FilteredPPG: filtered,
		PPGSQI:      sqi,
	}

	peakIdx := detectPeaks(filtered)
	// Eviction keeps a full window's span just under ppgWindowSize, so the
	// span check allows the same 90% tolerance as minSamples.
	fullSpanUs := int64(float64(ppgWindowSize.Microseconds()) * 0.9)
	if len(peakIdx) < minBeatsForHRV || hostTimes[len(hostTimes)-1]-hostTimes[0] < fullSpanUs {
		// Not enough beats, or less than a full 60s window of data yet.
		return frame, true
	}

	rr := make([]float64, 0, len(peakIdx)-1)
	for i := 1; i < len(peakIdx); i++ {
		dtUs := hostTimes[peakIdx[i]] - hostTimes[peakIdx[i-1]]
		rr = append(rr, float64(dtUs)/1e3) // milliseconds
	}

	bpm := medianBPM(rr)
	sdnn := stddev(rr)
	rmssd := rmssdOf(rr)
	pnn50 := pnn50Of(rr)
	sdsd := sdsdOf(rr)
	lf, hf := lfhfOf(rr, hostTimes[peakIdx[0]])

	frame.BPM = ptr(bpm)
	frame.SDNN = ptr(sdnn)
	frame.RMSSD = ptr(rmssd)
	frame.PNN50 = ptr(pnn50)
	frame.SDSD = ptr(sdsd)
	frame.LF = ptr(lf)
	frame.HF = ptr(hf)
	if lf+hf > 0 {
		frame.LFHFRatio = ptr(lf / hf)
	}

	return frame, true
}

// detectPeaks finds local maxima above a dynamic threshold, a simple
// single-pass systolic-peak detector adequate for a band-limited PPG signal.
func detectPeaks(xs []float64) []int {
	if len(xs) < 3 {
		return nil
	}
	mean, sd := meanStd(xs)
	threshold := mean + 0.5*sd

	var peaks []int
	minDistance := ppgSampleRateHz / 3 // refractory period, ~333ms at 50Hz
	last := -minDistance
	for i := 1; i < len(xs)-1; i++ {
		if xs[i] > threshold && xs[i] > xs[i-1] && xs[i] >= xs[i+1] && i-last >= minDistance {
			peaks = append(peaks, i)
			last = i
		}
	}
	return peaks
}

func meanStd(xs []float64) (mean, sd float64) {
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	for _, x := range xs {
		d := x - mean
		sd += d * d
	}
	sd = math.Sqrt(sd / float64(len(xs)))
	return
}

func medianBPM(rrMs []float64) float64 {
	rates := make([]float64, len(rrMs))
	for i, rr := range rrMs {
		rates[i] = 60000.0 / rr
	}
	sort.Float64s(rates)
	n := len(rates)
	if n%2 == 0 {
		return (rates[n/2-1] + rates[n/2]) / 2
	}
	return rates[n/2]
}

func stddev(xs []float64) float64 {
	_, sd := meanStd(xs)
	return sd
}

func rmssdOf(rrMs []float64) float64 {
	if len(rrMs) < 2 {
		return 0
	}
	sumSq := 0.0
	for i := 1; i < len(rrMs); i++ {
		d := rrMs[i] - rrMs[i-1]
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(rrMs)-1))
}

func sdsdOf(rrMs []float64) float64 {
	if len(rrMs) < 2 {
		return 0
	}
	diffs := make([]float64, len(rrMs)-1)
	for i := 1; i < len(rrMs); i++ {
		diffs[i-1] = rrMs[i] - rrMs[i-1]
	}
	return stddev(diffs)
}

func pnn50Of(rrMs []float64) float64 {
	if len(rrMs) < 2 {
		return 0
	}
	count := 0
	for i := 1; i < len(rrMs); i++ {
		if math.Abs(rrMs[i]-rrMs[i-1]) > 50 {
			count++
		}
	}
	return 100 * float64(count) / float64(len(rrMs)-1)
}

// lfhfOf resamples the RR-interval series onto an evenly-spaced 4 Hz grid
// (step resampling: each RR value is held constant between beats, with no
// interpolation) and integrates its PSD over the LF (0.04-0.15Hz) and HF
// (0.15-0.4Hz) bands.
func lfhfOf(rrMs []float64, startUs int64) (lf, hf float64) {
	const resampleHz = 4.0
	if len(rrMs) < 2 {
		return 0, 0
	}

	cumMs := make([]float64, len(rrMs))
	cumMs[0] = rrMs[0]
	for i := 1; i < len(rrMs); i++ {
		cumMs[i] = cumMs[i-1] + rrMs[i]
	}
	totalMs := cumMs[len(cumMs)-1]

	n := int(totalMs / 1000 * resampleHz)
	if n < 4 {
		return 0, 0
	}
	resampled := make([]float64, n)
	j := 0
	for i := 0; i < n; i++ {
		tMs := float64(i) / resampleHz * 1000
		for j < len(cumMs)-1 && cumMs[j+1] < tMs {
			j++
		}
		if j >= len(rrMs) {
			j = len(rrMs) - 1
		}
		resampled[i] = rrMs[j]
	}

	psd := dsp.WelchPSD(resampled, resampleHz, n)
	lf = dsp.BandPower(psd, 0.04, 0.15)
	hf = dsp.BandPower(psd, 0.15, 0.4)
	return
}
