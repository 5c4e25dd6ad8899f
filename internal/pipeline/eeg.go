package pipeline

import (
	"math"
	"sync"
	"time"

	"github.com/linkband-io/linkband-server/internal/device"
	"github.com/linkband-io/linkband-server/internal/pipeline/dsp"
	"github.com/sirupsen/logrus"
)

const eegWindowSize = 10 * time.Second
const eegSampleRateHz = 250

// leadoffEventInterval caps how often error.leadoff republishes while a
// channel stays bad, per-pipeline across its two channels.
const leadoffEventInterval = 5 * time.Second

// EEGPipeline filters, windows, and spectrally analyzes EEG samples into
// EEGProcessed frames.
type EEGPipeline struct {
	r *runner

	mu             sync.Mutex
	lastLeadoffPub time.Time
}

// NewEEGPipeline constructs the EEG pipeline publishing to bus.
func NewEEGPipeline(bus Publisher, logger *logrus.Logger) *EEGPipeline {
	p := &EEGPipeline{}
	p.r = &runner{
		kind:       device.SensorEEG,
		windowSize: eegWindowSize,
		logger:     logger,
		bus:        bus,
		compute:    p.compute,
	}
	return p
}

// Runner exposes the generic windowing harness for the engine to start.
func (p *EEGPipeline) Runner() *runner { return p.r }

func (p *EEGPipeline) compute(window []device.Sample, windowEndUs int64) (any, bool) {
	minSamples := int(eegSampleRateHz * 10 * 0.9) // allow some tolerance below a full window
	if len(window) < minSamples {
		return nil, false
	}

	var ch1, ch2 []float64
	var leadoff1, leadoff2 int
	for _, s := range window {
		e, ok := s.(device.EEGSample)
		if !ok {
			continue
		}
		ch1 = append(ch1, e.Ch1Raw)
		ch2 = append(ch2, e.Ch2Raw)
		if e.LeadoffCh1 {
			leadoff1++
		}
		if e.LeadoffCh2 {
			leadoff2++
		}
	}
	if len(ch1) == 0 {
		return nil, false
	}

	ch1Bad := float64(leadoff1)/float64(len(ch1)) > 0.5
	ch2Bad := float64(leadoff2)/float64(len(ch2)) > 0.5
	if ch1Bad || ch2Bad {
		p.publishLeadoffEvent(ch1Bad, ch2Bad)
	}

	bandpass := func(xs []float64) []float64 {
		sections := dsp.NewBandpass(1, 45, eegSampleRateHz)
		notch := dsp.NewNotch(50, eegSampleRateHz, 30)
		filtered := dsp.FilterCascade(sections, xs)
		return notch.ApplyAll(filtered)
	}

	ch1Filtered := bandpass(ch1)
	ch2Filtered := bandpass(ch2)

	psd1 := dsp.WelchPSD(ch1Filtered, eegSampleRateHz, 512)
	psd2 := dsp.WelchPSD(ch2Filtered, eegSampleRateHz, 512)

	frame := &EEGProcessed{
		THost:       windowEndUs,
		Ch1Filtered: ch1Filtered,
		Ch2Filtered: ch2Filtered,
		Frequencies: psd1.Frequencies,
		Ch1Power:    psd1.Power,
		Ch2Power:    psd2.Power,
	}

	if !ch1Bad {
		sqi := signalQualityIndex(ch1Filtered)
		frame.Ch1SQI = &sqi
		frame.Ch1BandPowers = bandPowers(psd1)
	}
	if !ch2Bad {
		sqi := signalQualityIndex(ch2Filtered)
		frame.Ch2SQI = &sqi
		frame.Ch2BandPowers = bandPowers(psd2)
	}

	if !ch1Bad && !ch2Bad {
		bp1, bp2 := frame.Ch1BandPowers, frame.Ch2BandPowers
		focus := bp1.Beta / (bp1.Alpha + bp1.Theta)
		relax := bp1.Alpha / bp1.Beta
		stress := (bp1.Beta + bp1.Gamma) / (bp1.Alpha + bp1.Theta)
		cogLoad := bp1.Theta / bp1.Alpha
		emoStability := bp1.Alpha / (bp1.Beta + bp1.Gamma)
		hemBalance := (bp1.Alpha - bp2.Alpha) / (bp1.Alpha + bp2.Alpha)
		total := bp1.Delta + bp1.Theta + bp1.Alpha + bp1.Beta + bp1.Gamma +
			bp2.Delta + bp2.Theta + bp2.Alpha + bp2.Beta + bp2.Gamma

		frame.FocusIndex = ptr(focus)
		frame.RelaxationIndex = ptr(relax)
		frame.StressIndex = ptr(stress)
		frame.CognitiveLoad = ptr(cogLoad)
		frame.EmotionalStability = ptr(emoStability)
		frame.HemisphericBalance = ptr(hemBalance)
		frame.TotalPower = ptr(total)
	}

	return frame, true
}

// publishLeadoffEvent emits error.leadoff at most once per
// leadoffEventInterval while either channel stays suppressed for lead-off.
func (p *EEGPipeline) publishLeadoffEvent(ch1Bad, ch2Bad bool) {
	if p.r.bus == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	if !p.lastLeadoffPub.IsZero() && now.Sub(p.lastLeadoffPub) < leadoffEventInterval {
		return
	}
	p.lastLeadoffPub = now
	p.r.bus.Publish("event.error.leadoff", map[string]any{"ch1": ch1Bad, "ch2": ch2Bad})
}

func bandPowers(psd dsp.PSD) *BandPowers {
	bp := &BandPowers{}
	for _, b := range dsp.EEGBands {
		v := dsp.BandPower(psd, b.LoHz, b.HiHz)
		switch b.Name {
		case "delta":
			bp.Delta = v
		case "theta":
			bp.Theta = v
		case "alpha":
			bp.Alpha = v
		case "beta":
			bp.Beta = v
		case "gamma":
			bp.Gamma = v
		}
	}
	return bp
}

// signalQualityIndex is a [0,1] score from the filtered signal's variance
// relative to a fixed reference band, a simple proxy for electrode contact
// quality once lead-off has already ruled out gross disconnection.
func signalQualityIndex(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	variance := 0.0
	for _, x := range xs {
		d := x - mean
		variance += d * d
	}
	variance /= float64(len(xs))

	const refVariance = 2500.0 // microvolts^2, a reasonable clean-signal reference
	q := 1 - math.Abs(math.Log1p(variance)-math.Log1p(refVariance))/10
	if q < 0 {
		q = 0
	}
	if q > 1 {
		q = 1
	}
	return q
}
