// Package router fans each raw sample out to its pipeline's input queue,
// to the recorder (when armed), and onto the event bus, while tracking a
// per-sensor rolling sample rate.
package router

import (
	"context"
	"sync"
	"time"

	"github.com/linkband-io/linkband-server/internal/device"
	"github.com/linkband-io/linkband-server/internal/ringbuf"
	"github.com/sirupsen/logrus"
)

// DefaultQueueSeconds sizes each bounded queue to hold roughly one second
// of samples at a sensor's nominal rate.
const DefaultQueueSeconds = 1

// RecorderWriteTimeout is the deadline of the context the router passes to
// RecorderSink.Write; a Write that returns an error is counted as a
// "recording.slow" drop.
const RecorderWriteTimeout = 100 * time.Millisecond

// rateWindow is the EWMA's smoothing window for per-sensor rate estimation.
const rateWindow = 1 * time.Second

// PipelineSink receives raw samples for one sensor kind's processing
// pipeline. Overflow is drop-oldest, so Push never blocks.
type PipelineSink interface {
	Push(s device.Sample)
}

// RecorderSink receives raw samples for an armed recording session.
// The router calls Write synchronously with a RecorderWriteTimeout deadline
// and treats a returned error as a drop; it does not interrupt a Write that
// runs past the deadline.
type RecorderSink interface {
	Write(ctx context.Context, s device.Sample) error
}

// Publisher is the subset of the event bus the router needs: publishing
// raw.<kind> envelopes.
type Publisher interface {
	Publish(topic string, payload any)
}

// rateState tracks an EWMA-smoothed sample rate over a 1 s window: each
// sample contributes 1/dt (dt = time since the previous sample) as an
// instantaneous rate, blended into the running estimate with a
// time-proportional smoothing factor (dt/window, capped at 1), and a read
// decays the estimate toward zero while no samples arrive.
type rateState struct {
	mu       sync.Mutex
	rateHzV  float64
	lastTick int64 // unix micros
}

func (rs *rateState) onSample(nowUs int64) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.lastTick == 0 {
		rs.lastTick = nowUs
		return
	}

	dt := float64(nowUs-rs.lastTick) / 1e6
	rs.lastTick = nowUs
	if dt <= 0 {
		return
	}

	instantHz := 1.0 / dt
	alpha := dt / rateWindow.Seconds()
	if alpha > 1 {
		alpha = 1
	}
	rs.rateHzV = rs.rateHzV + alpha*(instantHz-rs.rateHzV)
}

func (rs *rateState) rateHz() float64 {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	// Once the silence since the last sample outlasts the current estimate's
	// interval, read the estimate as if a sample arrived now, so a stream
	// that stops decays toward zero instead of holding its last rate.
	if rs.lastTick != 0 && rs.rateHzV > 0 {
		idle := float64(time.Now().UnixMicro()-rs.lastTick) / 1e6
		if idle > 1/rs.rateHzV {
			alpha := idle / rateWindow.Seconds()
			if alpha > 1 {
				alpha = 1
			}
			return rs.rateHzV + alpha*(1/idle-rs.rateHzV)
		}
	}
	return rs.rateHzV
}

// Router is the one fan-out point between the device link and every
// downstream consumer (pipelines, recorder, bus, monitoring).
type Router struct {
	logger *logrus.Logger

	sinks     map[device.SensorKind]PipelineSink
	recorder  RecorderSink
	recording bool
	bus       Publisher

	rates   map[device.SensorKind]*rateState
	ratesMu sync.Mutex

	dropCounters   map[string]*int64
	dropCountersMu sync.Mutex
}

// NewRouter constructs a Router with no sinks registered yet; call
// RegisterPipeline for each sensor kind before samples start flowing.
func NewRouter(bus Publisher, logger *logrus.Logger) *Router {
	if logger == nil {
		logger = logrus.New()
	}
	return &Router{
		logger: logger,
		sinks:  make(map[device.SensorKind]PipelineSink),
		bus:    bus,
		rates:  make(map[device.SensorKind]*rateState),
	}
}

// RegisterPipeline wires a sensor kind's pipeline input queue.
func (r *Router) RegisterPipeline(kind device.SensorKind, sink PipelineSink) {
	r.sinks[kind] = sink
}

// ArmRecorder attaches a recorder sink; nil detaches it (recording stopped).
func (r *Router) ArmRecorder(sink RecorderSink) {
	r.recorder = sink
	r.recording = sink != nil
}

// Route is the Device Link's sample callback: push to the pipeline queue,
// to the recorder if armed, update the rate counter, and publish to the bus.
func (r *Router) Route(s device.Sample) {
	kind := s.Kind()

	if sink, ok := r.sinks[kind]; ok {
		sink.Push(s)
	}

	if r.recording && r.recorder != nil {
		ctx, cancel := context.WithTimeout(context.Background(), RecorderWriteTimeout)
		if err := r.recorder.Write(ctx, s); err != nil {
			r.incDrop("recording.slow")
			r.logger.WithField("kind", kind).WithError(err).Warn("recorder write dropped")
		}
		cancel()
	}

	r.tick(kind)

	if r.bus != nil {
		r.bus.Publish("raw."+string(kind), s)
	}
}

// tick updates the EWMA rate estimate for kind.
func (r *Router) tick(kind device.SensorKind) {
	r.ratesMu.Lock()
	rs, ok := r.rates[kind]
	if !ok {
		rs = &rateState{}
		r.rates[kind] = rs
	}
	r.ratesMu.Unlock()
	rs.onSample(time.Now().UnixMicro())
}

// RateHz returns the current EWMA-smoothed rate estimate for a sensor kind.
func (r *Router) RateHz(kind device.SensorKind) float64 {
	r.ratesMu.Lock()
	rs, ok := r.rates[kind]
	r.ratesMu.Unlock()
	if !ok {
		return 0
	}
	return rs.rateHz()
}

// DropCount returns how many samples have been dropped for a named reason.
// The only reason the router counts is "recording.slow"; pipeline queue
// overflow is not counted here (PipelineQueue.Metrics reports it as
// Overwritten).
func (r *Router) DropCount(reason string) int64 {
	r.dropCountersMu.Lock()
	defer r.dropCountersMu.Unlock()
	if p, ok := r.dropCounters[reason]; ok {
		return *p
	}
	return 0
}

func (r *Router) incDrop(reason string) {
	r.dropCountersMu.Lock()
	defer r.dropCountersMu.Unlock()
	if r.dropCounters == nil {
		r.dropCounters = make(map[string]*int64)
	}
	p, ok := r.dropCounters[reason]
	if !ok {
		v := int64(0)
		p = &v
		r.dropCounters[reason] = p
	}
	*p++
}

// queueCapacity computes a bounded queue size for a sensor kind's nominal
// rate, defaulting to a flat minimum for on-change sensors like battery.
func queueCapacity(kind device.SensorKind) int {
	rate := kind.NominalRateHz()
	if rate <= 0 {
		return 16
	}
	return int(rate * DefaultQueueSeconds)
}

// PipelineQueue adapts a ringbuf.Ring to the PipelineSink interface; a
// pipeline reads its raw samples from C().
type PipelineQueue struct {
	ring *ringbuf.Ring[device.Sample]
}

// NewPipelineQueue builds a drop-oldest bounded queue sized for kind's
// nominal rate.
func NewPipelineQueue(kind device.SensorKind) *PipelineQueue {
	return &PipelineQueue{ring: ringbuf.New[device.Sample](queueCapacity(kind))}
}

func (q *PipelineQueue) Push(s device.Sample)     { q.ring.Send(s) }
func (q *PipelineQueue) C() <-chan device.Sample  { return q.ring.C() }
func (q *PipelineQueue) Metrics() ringbuf.Metrics { return q.ring.GetMetrics() }
