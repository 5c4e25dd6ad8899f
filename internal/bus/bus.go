// Package bus is the server's typed in-process publish/subscribe broker,
// carrying raw.<kind>, processed.<kind>, event.<name>, and monitoring
// envelopes from producers (router, pipelines, monitoring) to consumers
// (the WebSocket broker, the recorder).
package bus

import (
	"sync"
	"time"

	"github.com/linkband-io/linkband-server/internal/ringbuf"
	"github.com/sirupsen/logrus"
)

// DefaultSubscriberQueueCapacity bounds each subscriber's queue, which all
// of its topics share.
const DefaultSubscriberQueueCapacity = 256

// SustainedDropWindow is how long a subscriber may drop messages
// continuously before its subscription is torn down.
const SustainedDropWindow = 3 * time.Second

// Envelope is one message published on a topic.
type Envelope struct {
	Topic   string
	Payload any
	TsUs    int64
}

// Subscription is a single consumer's view of one or more topics; messages
// across topics interleave on the same channel with no ordering guarantee
// between topics, but publish order is preserved per topic.
type Subscription struct {
	ID     string
	ring   *ringbuf.Ring[Envelope]
	topics map[string]bool

	mu             sync.Mutex
	dropStart      time.Time
	droppingActive bool
	closed         bool
}

// C returns the subscription's delivery channel.
func (s *Subscription) C() <-chan Envelope { return s.ring.C() }

// Topics returns a copy of the subscription's current topic pattern set.
func (s *Subscription) Topics() map[string]bool {
	out := make(map[string]bool, len(s.topics))
	for t := range s.topics {
		out[t] = true
	}
	return out
}

// Closed reports whether the bus has torn this subscription down.
func (s *Subscription) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Bus is the broker: a registry of subscriptions, each with its own
// bounded outbound queue.
type Bus struct {
	mu            sync.RWMutex
	subs          map[string]*Subscription
	onSlowClient  func(clientID string)
	lagDropsTotal int64

	logger *logrus.Logger
}

// New creates an empty Bus.
func New(logger *logrus.Logger) *Bus {
	if logger == nil {
		logger = logrus.New()
	}
	return &Bus{
		subs:   make(map[string]*Subscription),
		logger: logger,
	}
}

// OnSlowClient registers a callback invoked when a subscription is torn
// down for sustained drops, so the caller can publish error.slow_client.
func (b *Bus) OnSlowClient(f func(clientID string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onSlowClient = f
}

// Subscribe registers a new subscription for the given topic patterns.
// Patterns ending in ".*" match any topic sharing that prefix; an exact
// topic string matches only itself.
func (b *Bus) Subscribe(id string, topics []string) *Subscription {
	set := make(map[string]bool, len(topics))
	for _, t := range topics {
		set[t] = true
	}
	sub := &Subscription{
		ID:     id,
		ring:   ringbuf.New[Envelope](DefaultSubscriberQueueCapacity),
		topics: set,
	}

	b.mu.Lock()
	b.subs[id] = sub
	b.mu.Unlock()
	return sub
}

// Unsubscribe removes a subscription without marking it as a slow-client
// teardown.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}

func matches(sub *Subscription, topic string) bool {
	if sub.topics[topic] {
		return true
	}
	for pattern := range sub.topics {
		if len(pattern) > 2 && pattern[len(pattern)-2:] == ".*" {
			prefix := pattern[:len(pattern)-1] // keep trailing "."
			if len(topic) > len(prefix) && topic[:len(prefix)] == prefix {
				return true
			}
		}
	}
	return false
}

// Publish delivers payload to every subscription whose topic set matches
// topic. Publish itself never blocks: delivery to each subscriber's queue
// is drop-oldest.
func (b *Bus) Publish(topic string, payload any) {
	env := Envelope{Topic: topic, Payload: payload, TsUs: time.Now().UnixMicro()}

	b.mu.RLock()
	targets := make([]*Subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		if matches(sub, topic) {
			targets = append(targets, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range targets {
		b.deliver(sub, env)
	}
}

func (b *Bus) deliver(sub *Subscription, env Envelope) {
	dropped := sub.ring.Send(env)

	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return
	}

	if !dropped {
		sub.droppingActive = false
		return
	}

	b.addLagDrop()
	now := time.Now()
	if !sub.droppingActive {
		sub.droppingActive = true
		sub.dropStart = now
		return
	}

	if now.Sub(sub.dropStart) >= SustainedDropWindow {
		sub.closed = true
		b.mu.Lock()
		delete(b.subs, sub.ID)
		cb := b.onSlowClient
		b.mu.Unlock()
		if cb != nil {
			cb(sub.ID)
		}
	}
}

func (b *Bus) addLagDrop() {
	b.mu.Lock()
	b.lagDropsTotal++
	b.mu.Unlock()
}

// LagDrops returns the cumulative client.lag_drops counter across all
// subscriptions, surfaced by C8 Monitoring.
func (b *Bus) LagDrops() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lagDropsTotal
}
