// Package ringbuf provides a bounded, overwrite-oldest channel wrapper used
// throughout the server wherever a producer must never block on a slow or
// absent consumer: the sample router's per-pipeline queues and the event
// bus's per-subscriber queues.
package ringbuf

import "sync/atomic"

// Ring is a bounded channel-like buffer with drop-oldest semantics: a
// producer call always succeeds immediately, discarding the oldest
// buffered item if the ring is full.
type Ring[T any] struct {
	ch      chan T
	metrics Metrics
}

// New creates a Ring with the given capacity.
func New[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		panic("ringbuf: capacity must be > 0")
	}
	return &Ring[T]{ch: make(chan T, capacity)}
}

// C returns the underlying receive-only channel for ranging consumers.
// Reads via C() bypass the Processed metric; use Receive/TryReceive to
// keep it accurate.
func (r *Ring[T]) C() <-chan T {
	return r.ch
}

// Send inserts v, dropping the oldest buffered item if the ring is full.
// Reports whether an item was dropped.
func (r *Ring[T]) Send(v T) (dropped bool) {
	select {
	case r.ch <- v:
		r.metrics.addWritten(1)
		return false
	default:
		select {
		case <-r.ch:
			r.metrics.addOverwritten(1)
			dropped = true
		default:
		}
		r.ch <- v
		r.metrics.addWritten(1)
		return dropped
	}
}

// TrySend inserts v without blocking or dropping; returns false if full.
func (r *Ring[T]) TrySend(v T) bool {
	select {
	case r.ch <- v:
		r.metrics.addWritten(1)
		return true
	default:
		return false
	}
}

// Receive blocks until a value is available or the ring is closed.
func (r *Ring[T]) Receive() (v T, ok bool) {
	v, ok = <-r.ch
	if ok {
		r.metrics.addProcessed(1)
	}
	return
}

// TryReceive performs a non-blocking receive.
func (r *Ring[T]) TryReceive() (v T, ok bool) {
	select {
	case v, ok = <-r.ch:
		if ok {
			r.metrics.addProcessed(1)
		}
		return
	default:
		var zero T
		return zero, false
	}
}

// Len returns the number of buffered items.
func (r *Ring[T]) Len() int { return len(r.ch) }

// Cap returns the ring's capacity.
func (r *Ring[T]) Cap() int { return cap(r.ch) }

// Close closes the underlying channel. Send/TrySend panic after Close.
func (r *Ring[T]) Close() { close(r.ch) }

// GetMetrics returns a snapshot of the ring's lock-free counters.
func (r *Ring[T]) GetMetrics() Metrics {
	return Metrics{
		Processed:   atomic.LoadInt64(&r.metrics.Processed),
		Written:     atomic.LoadInt64(&r.metrics.Written),
		Overwritten: atomic.LoadInt64(&r.metrics.Overwritten),
	}
}

// Metrics holds lock-free counters for a Ring's lifetime traffic.
type Metrics struct {
	Processed   int64
	Written     int64
	Overwritten int64
}

func (m *Metrics) addProcessed(n int)   { atomic.AddInt64(&m.Processed, int64(n)) }
func (m *Metrics) addWritten(n int)     { atomic.AddInt64(&m.Written, int64(n)) }
func (m *Metrics) addOverwritten(n int) { atomic.AddInt64(&m.Overwritten, int64(n)) }
