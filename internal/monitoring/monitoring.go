// Package monitoring is C8: a once-a-second sampler that snapshots
// per-sensor rates, connection health, recorder activity, and host
// resource usage into a single system_health score, publishes it on the
// bus topic "monitoring" (sent to WebSocket clients as monitoring_metrics),
// and raises alert events on threshold
// crossings.
package monitoring

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"

	"github.com/linkband-io/linkband-server/internal/device"
)

// SampleInterval is how often the sampler snapshots the system.
const SampleInterval = 1 * time.Second

const (
	cpuAlertThreshold     = 85.0
	cpuAlertSustain       = 10 * time.Second
	memAlertThreshold     = 85.0
	rateAlertFraction     = 0.5
	rateAlertSustain      = 5 * time.Second
	lagDropAlertPerSecond = 1.0
	maxAlerts             = 50

	// streamStallSustain is how long overall sensor throughput must stay
	// below (or recover above) rateAlertFraction of nominal before
	// stream.stalled / stream.resumed fires.
	streamStallSustain = 3 * time.Second
)

// RateSource is the subset of the router the sampler reads rate and
// drop counters from.
type RateSource interface {
	RateHz(kind device.SensorKind) float64
	DropCount(reason string) int64
}

// LagSource is the subset of the bus the sampler reads backpressure
// counters from.
type LagSource interface {
	LagDrops() int64
}

// Publisher publishes the periodic snapshot and alert events.
type Publisher interface {
	Publish(topic string, payload any)
}

// ClientCounter reports how many WebSocket clients are connected.
type ClientCounter interface {
	ClientCount() int
}

// RecorderStatus is the subset of the recorder the sampler reads.
type RecorderStatus interface {
	StateString() string
	BytesWritten() int64
}

// Alert is one threshold-crossing event, kept in a bounded ring of the
// most recent maxAlerts.
type Alert struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// SystemSnapshot is the "system" section of a monitoring_metrics envelope.
type SystemSnapshot struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	HealthScore   float64 `json:"health_score"`
}

// StreamingSnapshot is the "streaming" section of a monitoring_metrics
// envelope.
type StreamingSnapshot struct {
	Active           bool               `json:"active"`
	SensorRatesHz    map[string]float64 `json:"sensor_rates_hz"`
	ClientsConnected int                `json:"clients_connected"`
	LagDropsTotal    int64              `json:"lag_drops_total"`
}

// RecordingSnapshot is the "recording" section of a monitoring_metrics
// envelope.
type RecordingSnapshot struct {
	State        string `json:"state"`
	BytesWritten int64  `json:"bytes_written"`
}

// Snapshot is the full payload of a monitoring_metrics envelope.
type Snapshot struct {
	System    SystemSnapshot    `json:"system"`
	Streaming StreamingSnapshot `json:"streaming"`
	Recording RecordingSnapshot `json:"recording"`
	Alerts    []Alert           `json:"alerts"`
}

// Monitor samples system and application health once per SampleInterval.
type Monitor struct {
	router   RateSource
	bus      LagSource
	pub      Publisher
	clients  ClientCounter
	recorder RecorderStatus
	sensors  []device.SensorKind
	logger   *logrus.Logger

	mu              sync.Mutex
	alerts          []Alert
	cpuHighSince    time.Time
	rateLowSince    map[device.SensorKind]time.Time
	lastLagTotal    int64
	lastLagSample   time.Time
	lastSnapshot    Snapshot
	streamStalled   bool
	streamDownSince time.Time
	streamUpSince   time.Time
}

// Option configures optional Monitor dependencies.
type Option func(*Monitor)

func WithClientCounter(c ClientCounter) Option { return func(m *Monitor) { m.clients = c } }
func WithRecorder(r RecorderStatus) Option     { return func(m *Monitor) { m.recorder = r } }

// New constructs a Monitor watching the given sensor kinds.
func New(router RateSource, bus LagSource, pub Publisher, sensors []device.SensorKind, logger *logrus.Logger, opts ...Option) *Monitor {
	if logger == nil {
		logger = logrus.New()
	}
	m := &Monitor{
		router:       router,
		bus:          bus,
		pub:          pub,
		sensors:      sensors,
		logger:       logger,
		rateLowSince: make(map[device.SensorKind]time.Time),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run samples once per SampleInterval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(SampleInterval)
	defer ticker.Stop()

	defer func() {
		if r := recover(); r != nil {
			m.logger.WithField("panic", r).Error("monitoring: sampler recovered from panic")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sample()
		}
	}
}

func (m *Monitor) sample() {
	snap := Snapshot{}

	cpuPct := sampleCPUPercent()
	memPct := sampleMemPercent()
	snap.System.CPUPercent = cpuPct
	snap.System.MemoryPercent = memPct

	rates := make(map[string]float64, len(m.sensors))
	streamingActive := len(m.sensors) > 0
	now := time.Now()

	for _, kind := range m.sensors {
		hz := m.router.RateHz(kind)
		rates[string(kind)] = hz

		nominal := kind.NominalRateHz()
		if nominal <= 0 {
			continue
		}
		if hz < nominal*rateAlertFraction {
			streamingActive = false
			since, tracking := m.rateLowSince[kind]
			if !tracking {
				m.rateLowSince[kind] = now
			} else if now.Sub(since) >= rateAlertSustain {
				m.raiseAlert("sensor.rate_low", string(kind)+" rate below 50% of nominal")
			}
		} else {
			delete(m.rateLowSince, kind)
		}
	}
	snap.Streaming.Active = streamingActive
	snap.Streaming.SensorRatesHz = rates
	m.checkStreamHealth(streamingActive, now)

	if m.clients != nil {
		snap.Streaming.ClientsConnected = m.clients.ClientCount()
	}

	var lagTotal int64
	if m.bus != nil {
		lagTotal = m.bus.LagDrops()
	}
	snap.Streaming.LagDropsTotal = lagTotal
	m.checkLagDropRate(lagTotal, now)

	if m.recorder != nil {
		snap.Recording.State = m.recorder.StateString()
		snap.Recording.BytesWritten = m.recorder.BytesWritten()
	}

	if cpuPct > cpuAlertThreshold {
		if m.cpuHighSince.IsZero() {
			m.cpuHighSince = now
		} else if now.Sub(m.cpuHighSince) >= cpuAlertSustain {
			m.raiseAlert("system.cpu_high", "CPU usage above 85% for 10s")
		}
	} else {
		m.cpuHighSince = time.Time{}
	}
	if memPct > memAlertThreshold {
		m.raiseAlert("system.memory_high", "memory usage above 85%")
	}

	snap.System.HealthScore = m.healthScore(streamingActive, cpuPct, memPct, snap.Streaming.ClientsConnected)

	m.mu.Lock()
	snap.Alerts = append([]Alert(nil), m.alerts...)
	m.lastSnapshot = snap
	m.mu.Unlock()

	if m.pub != nil {
		m.pub.Publish("monitoring", snap)
	}
}

// LastSnapshot returns the most recently computed snapshot, or a zero
// value before the first tick.
func (m *Monitor) LastSnapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSnapshot
}

// checkLagDropRate raises a lag-drop alert when the cumulative counter
// advances faster than lagDropAlertPerSecond since the last sample.
func (m *Monitor) checkLagDropRate(total int64, now time.Time) {
	if m.lastLagSample.IsZero() {
		m.lastLagTotal = total
		m.lastLagSample = now
		return
	}
	elapsed := now.Sub(m.lastLagSample).Seconds()
	if elapsed <= 0 {
		return
	}
	rate := float64(total-m.lastLagTotal) / elapsed
	m.lastLagTotal = total
	m.lastLagSample = now
	if rate > lagDropAlertPerSecond {
		m.raiseAlert("client.lag_drops_high", "client lag-drop rate above 1/s")
	}
}

// checkStreamHealth raises stream.stalled once overall sensor throughput
// has stayed below rateAlertFraction of nominal for streamStallSustain,
// and stream.resumed once it has recovered above threshold for the same
// sustain window; each fires at most once per stall episode.
func (m *Monitor) checkStreamHealth(active bool, now time.Time) {
	if active {
		m.streamDownSince = time.Time{}
		if !m.streamStalled {
			return
		}
		if m.streamUpSince.IsZero() {
			m.streamUpSince = now
			return
		}
		if now.Sub(m.streamUpSince) >= streamStallSustain {
			m.streamStalled = false
			m.streamUpSince = time.Time{}
			if m.pub != nil {
				m.pub.Publish("event.stream.resumed", map[string]any{})
			}
		}
		return
	}

	m.streamUpSince = time.Time{}
	if m.streamStalled {
		return
	}
	if m.streamDownSince.IsZero() {
		m.streamDownSince = now
		return
	}
	if now.Sub(m.streamDownSince) >= streamStallSustain {
		m.streamStalled = true
		if m.pub != nil {
			m.pub.Publish("event.stream.stalled", map[string]any{})
		}
	}
}

// healthScore is the weighted composite per the fixed scoring rubric:
// streaming activity 40, signal quality 20, CPU headroom 15, memory
// headroom 15, connection stability 10.
func (m *Monitor) healthScore(streamingActive bool, cpuPct, memPct float64, clients int) float64 {
	var score float64
	if streamingActive {
		score += 40
	}

	sqiScore := 20.0
	for _, kind := range m.sensors {
		nominal := kind.NominalRateHz()
		if nominal <= 0 {
			continue
		}
		hz := m.router.RateHz(kind)
		if hz < nominal*rateAlertFraction {
			sqiScore = 10
		}
	}
	score += sqiScore

	score += 15 * headroom(cpuPct)
	score += 15 * headroom(memPct)

	if clients > 0 {
		score += 10
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

func headroom(pct float64) float64 {
	h := (100 - pct) / 100
	if h < 0 {
		return 0
	}
	if h > 1 {
		return 1
	}
	return h
}

func (m *Monitor) raiseAlert(kind, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, Alert{Type: kind, Message: message, Timestamp: time.Now()})
	if len(m.alerts) > maxAlerts {
		m.alerts = m.alerts[len(m.alerts)-maxAlerts:]
	}
	if m.pub != nil {
		m.pub.Publish("event.alert", m.alerts[len(m.alerts)-1])
	}
}

func sampleCPUPercent() float64 {
	pcts, err := cpu.Percent(0, false)
	if err != nil || len(pcts) == 0 {
		return 0
	}
	return pcts[0]
}

func sampleMemPercent() float64 {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0
	}
	return vm.UsedPercent
}
