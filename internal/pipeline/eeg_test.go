package pipeline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkband-io/linkband-server/internal/device"
)

type fakeBus struct {
	topics []string
}

func (f *fakeBus) Publish(topic string, payload any) {
	f.topics = append(f.topics, topic)
}

func (f *fakeBus) count(topic string) int {
	n := 0
	for _, t := range f.topics {
		if t == topic {
			n++
		}
	}
	return n
}

func buildEEGWindow(n int, leadoff1, leadoff2 bool) []device.Sample {
	window := make([]device.Sample, 0, n)
	for i := 0; i < n; i++ {
		t := float64(i) / eegSampleRateHz
		window = append(window, device.EEGSample{
			THost:      int64(i) * 4000,
			Ch1Raw:     50 * math.Sin(2*math.Pi*10*t),
			Ch2Raw:     50 * math.Cos(2*math.Pi*10*t),
			LeadoffCh1: leadoff1,
			LeadoffCh2: leadoff2,
		})
	}
	return window
}

func TestEEGComputeNotReadyBelowMinSamples(t *testing.T) {
	p := NewEEGPipeline(nil, nil)
	window := buildEEGWindow(10, false, false)
	_, ready := p.compute(window, 1000)
	assert.False(t, ready)
}

func TestEEGComputeProducesBandPowersWhenSignalClean(t *testing.T) {
	p := NewEEGPipeline(nil, nil)
	n := int(eegSampleRateHz * 10)
	window := buildEEGWindow(n, false, false)

	frame, ready := p.compute(window, 12345)
	require.True(t, ready)
	out := frame.(*EEGProcessed)

	assert.Equal(t, int64(12345), out.THost)
	require.NotNil(t, out.Ch1SQI)
	require.NotNil(t, out.Ch2SQI)
	require.NotNil(t, out.Ch1BandPowers)
	require.NotNil(t, out.Ch2BandPowers)
	require.NotNil(t, out.FocusIndex)
	require.NotNil(t, out.TotalPower)
	assert.Len(t, out.Ch1Filtered, n)
	assert.Len(t, out.Ch2Filtered, n)
}

func TestEEGComputeSuppressesDerivedIndicesOnLeadoff(t *testing.T) {
	p := NewEEGPipeline(nil, nil)
	n := int(eegSampleRateHz * 10)
	window := buildEEGWindow(n, true, true)

	frame, ready := p.compute(window, 1000)
	require.True(t, ready)
	out := frame.(*EEGProcessed)

	assert.Nil(t, out.Ch1SQI)
	assert.Nil(t, out.Ch2SQI)
	assert.Nil(t, out.Ch1BandPowers)
	assert.Nil(t, out.Ch2BandPowers)
	assert.Nil(t, out.FocusIndex)
}

func TestEEGComputePublishesLeadoffEventAtMostOncePerInterval(t *testing.T) {
	bus := &fakeBus{}
	p := NewEEGPipeline(bus, nil)
	n := int(eegSampleRateHz * 10)
	window := buildEEGWindow(n, true, false)

	_, ready := p.compute(window, 1000)
	require.True(t, ready)
	_, ready = p.compute(window, 2000)
	require.True(t, ready)

	assert.Equal(t, 1, bus.count("event.error.leadoff"))
}

func TestEEGComputeOmitsLeadoffEventWhenSignalClean(t *testing.T) {
	bus := &fakeBus{}
	p := NewEEGPipeline(bus, nil)
	n := int(eegSampleRateHz * 10)
	window := buildEEGWindow(n, false, false)

	_, ready := p.compute(window, 1000)
	require.True(t, ready)

	assert.Equal(t, 0, bus.count("event.error.leadoff"))
}

func TestSignalQualityIndexBoundedUnitInterval(t *testing.T) {
	xs := make([]float64, 100)
	for i := range xs {
		xs[i] = 50 * math.Sin(float64(i)*0.1)
	}
	q := signalQualityIndex(xs)
	assert.GreaterOrEqual(t, q, 0.0)
	assert.LessOrEqual(t, q, 1.0)
}

func TestSignalQualityIndexEmptyIsZero(t *testing.T) {
	assert.Equal(t, 0.0, signalQualityIndex(nil))
}
