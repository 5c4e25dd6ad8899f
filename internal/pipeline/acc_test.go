package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkband-io/linkband-server/internal/device"
)

func accSample(x, y, z float64) device.ACCSample {
	return device.ACCSample{X: x, Y: y, Z: z}
}

func buildACCWindow(n int, x, y, z float64) []device.Sample {
	window := make([]device.Sample, 0, n)
	for i := 0; i < n; i++ {
		window = append(window, accSample(x, y, z))
	}
	return window
}

func TestACCComputeReturnsNotReadyOnEmptyWindow(t *testing.T) {
	p := NewACCPipeline(nil, nil)
	frame, ready := p.compute(nil, 0)
	assert.False(t, ready)
	assert.Nil(t, frame)
}

func TestACCComputeReturnsNotReadyBelowFullWindow(t *testing.T) {
	p := NewACCPipeline(nil, nil)
	window := buildACCWindow(3, 0, 0, 1)
	_, ready := p.compute(window, 1000)
	assert.False(t, ready)
}

func TestACCComputeStationaryClassification(t *testing.T) {
	p := NewACCPipeline(nil, nil)
	window := buildACCWindow(int(accSampleRateHz*4), 0, 0, 1)
	frame, ready := p.compute(window, 1000)
	require.True(t, ready)
	out := frame.(*ACCProcessed)
	assert.Equal(t, ActivityStationary, out.ActivityState)
	assert.InDelta(t, 1.0, out.AvgMovement, 1e-9)
	assert.InDelta(t, 0.0, out.StdMovement, 1e-9)
}

func TestACCComputeVigorousClassification(t *testing.T) {
	p := NewACCPipeline(nil, nil)
	window := buildACCWindow(int(accSampleRateHz*4), 2, 2, 2)
	frame, ready := p.compute(window, 1000)
	require.True(t, ready)
	out := frame.(*ACCProcessed)
	assert.Equal(t, ActivityVigorous, out.ActivityState)
}

func TestACCComputeIgnoresNonACCSamples(t *testing.T) {
	p := NewACCPipeline(nil, nil)
	window := []device.Sample{
		device.EEGSample{},
		device.PPGSample{},
	}
	_, ready := p.compute(window, 1000)
	assert.False(t, ready)
}

func TestClassifyActivityBoundaries(t *testing.T) {
	assert.Equal(t, ActivityStationary, classifyActivity(1.0))
	assert.Equal(t, ActivityLight, classifyActivity(1.2))
	assert.Equal(t, ActivityModerate, classifyActivity(1.6))
	assert.Equal(t, ActivityVigorous, classifyActivity(2.5))
}
