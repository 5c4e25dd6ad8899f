package pipeline

import (
	"math"
	"time"

	"github.com/linkband-io/linkband-server/internal/device"
	"github.com/sirupsen/logrus"
)

const accWindowSize = 4 * time.Second
const accSampleRateHz = 25

// ACCPipeline windows accelerometer samples into movement-magnitude
// statistics and a coarse activity classification.
type ACCPipeline struct {
	r *runner
}

// NewACCPipeline constructs the ACC pipeline publishing to bus.
func NewACCPipeline(bus Publisher, logger *logrus.Logger) *ACCPipeline {
	p := &ACCPipeline{}
	p.r = &runner{
		kind:       device.SensorACC,
		windowSize: accWindowSize,
		logger:     logger,
		bus:        bus,
		compute:    p.compute,
	}
	return p
}

// Runner exposes the generic windowing harness for the engine to start.
func (p *ACCPipeline) Runner() *runner { return p.r }

func (p *ACCPipeline) compute(window []device.Sample, windowEndUs int64) (any, bool) {
	minSamples := int(accSampleRateHz * 4 * 0.9) // allow some tolerance below a full window

	var mags []float64
	for _, s := range window {
		a, ok := s.(device.ACCSample)
		if !ok {
			continue
		}
		mags = append(mags, math.Sqrt(a.X*a.X+a.Y*a.Y+a.Z*a.Z))
	}
	if len(mags) < minSamples {
		return nil, false
	}

	var sum, max float64
	for _, m := range mags {
		sum += m
		if m > max {
			max = m
		}
	}
	avg := sum / float64(len(mags))

	var sqDiff float64
	for _, m := range mags {
		d := m - avg
		sqDiff += d * d
	}
	std := math.Sqrt(sqDiff / float64(len(mags)))

	return &ACCProcessed{
		THost:         windowEndUs,
		AvgMovement:   avg,
		StdMovement:   std,
		MaxMovement:   max,
		ActivityState: classifyActivity(avg),
	}, true
}

func classifyActivity(avgMovement float64) ActivityState {
	switch {
	case avgMovement < 1.1:
		return ActivityStationary
	case avgMovement < 1.5:
		return ActivityLight
	case avgMovement < 2.0:
		return ActivityModerate
	default:
		return ActivityVigorous
	}
}
