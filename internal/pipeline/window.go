package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/linkband-io/linkband-server/internal/device"
	"github.com/sirupsen/logrus"
)

// HopInterval is the fixed 1 Hz emission cadence every pipeline shares.
const HopInterval = 1 * time.Second

// Publisher is the subset of the event bus a pipeline needs.
type Publisher interface {
	Publish(topic string, payload any)
}

// Source is anything a pipeline can drain raw samples from; router's
// PipelineQueue satisfies it.
type Source interface {
	C() <-chan device.Sample
}

// compute is implemented by each sensor's pipeline: given the full
// contents of the current sliding window (oldest first), it either
// produces a processed frame or reports that the window isn't ready yet.
type compute func(window []device.Sample, windowEndUs int64) (frame any, ready bool)

// runner is the generic windowing harness: accumulate samples into a
// sliding window, evict entries older than windowSize, and on every hop
// tick invoke compute and publish its result. Grounded on the device
// link's per-subscription ticker-goroutine shape (panic-recovering,
// ticker-driven, degrades to skipping emission rather than buffering
// backlog under load).
type runner struct {
	kind       device.SensorKind
	windowSize time.Duration
	logger     *logrus.Logger
	bus        Publisher
	compute    compute

	buf []device.Sample
}

// Run drains src until ctx is done, maintaining the sliding window and
// publishing processed.<kind> at most once per second. If a window can't
// be computed within its 1 s budget it is skipped and a processing.slow
// alert is published instead of buffering backlog.
func (r *runner) Run(ctx context.Context, src Source) {
	defer func() {
		if rec := recover(); rec != nil {
			if r.logger != nil {
				r.logger.WithField("panic", rec).WithField("kind", r.kind).Error("pipeline goroutine panicked")
			}
		}
	}()

	ticker := time.NewTicker(HopInterval)
	defer ticker.Stop()

	ch := src.C()
	for {
		select {
		case <-ctx.Done():
			return

		case s, ok := <-ch:
			if !ok {
				return
			}
			r.buf = append(r.buf, s)

		case now := <-ticker.C:
			r.evict(now)
			r.emit(now)
		}
	}
}

func (r *runner) evict(now time.Time) {
	cutoff := now.Add(-r.windowSize).UnixMicro()

	sort.Slice(r.buf, func(i, j int) bool {
		return r.buf[i].HostTime() < r.buf[j].HostTime()
	})

	idx := 0
	for idx < len(r.buf) && r.buf[idx].HostTime() < cutoff {
		idx++
	}
	r.buf = r.buf[idx:]
}

func (r *runner) emit(now time.Time) {
	done := make(chan struct{})
	var frame any
	var ready bool

	// Snapshot the window before handing it to the goroutine: if compute
	// overruns its HopInterval budget below, Run's next tick keeps
	// append-ing/evicting r.buf concurrently with the orphaned goroutine
	// still reading it.
	snapshot := append([]device.Sample(nil), r.buf...)

	go func() {
		defer close(done)
		frame, ready = r.compute(snapshot, now.UnixMicro())
	}()

	select {
	case <-done:
		if ready && r.bus != nil {
			r.bus.Publish(fmt.Sprintf("processed.%s", r.kind), frame)
		}
	case <-time.After(HopInterval):
		if r.bus != nil {
			r.bus.Publish("event.processing.slow", map[string]any{"kind": r.kind})
		}
	}
}
