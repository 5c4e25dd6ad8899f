package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/linkband-io/linkband-server/internal/bledb"
	"github.com/sirupsen/logrus"
)

// LinkState is one state in the Device Link's connection lifecycle.
type LinkState string

const (
	LinkIdle          LinkState = "idle"
	LinkScanning      LinkState = "scanning"
	LinkConnecting    LinkState = "connecting"
	LinkConnected     LinkState = "connected"
	LinkStreaming     LinkState = "streaming"
	LinkDisconnecting LinkState = "disconnecting"
	LinkError         LinkState = "error"
)

const (
	// DefaultScanDuration bounds how long a single Idle->Scanning excursion lasts.
	DefaultScanDuration = 10 * time.Second
	// DefaultConnectTimeout bounds Idle->Connecting before error.device_timeout.
	DefaultConnectTimeout = 10 * time.Second
	// StreamingGraceDelay is the maximum delay before notifications start,
	// inserted only to let the first client attach; streaming never waits
	// on a client actually being present.
	StreamingGraceDelay = 2 * time.Second

	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second

	batteryReadTimeout = 5 * time.Second
)

// ErrDeviceTimeout is published as error.device_timeout when Connecting
// does not reach Connected within DefaultConnectTimeout.
var ErrDeviceTimeout = errors.New("device_timeout")

// StateChange describes one Link transition, consumed by callers that want
// to surface device.connected / device.disconnected / error.* events.
type StateChange struct {
	From   LinkState
	To     LinkState
	TsUs   int64
	Reason error // non-nil for transitions into LinkError or LinkDisconnecting on loss
}

// Link owns exactly one device's connection lifecycle: scan, connect,
// subscribe, auto-reconnect. Only one device may be Connected/Streaming at
// a time; Connect on a live Link returns ErrAlreadyConnected.
type Link struct {
	mu    sync.Mutex
	state LinkState

	scanner  ScanningDevice
	dev      Device
	address  string
	services []SubscribeOptions

	explicitStop bool
	backoff      time.Duration

	onState  func(StateChange)
	onSample func(Sample)

	logger *logrus.Logger
}

// NewLink creates an idle Link. The concrete Device handle is built later
// by the newDevice factory passed to Connect (injected so tests can
// substitute a fake).
func NewLink(scanner ScanningDevice, logger *logrus.Logger) *Link {
	if logger == nil {
		logger = logrus.New()
	}
	return &Link{
		state:   LinkIdle,
		scanner: scanner,
		logger:  logger,
		backoff: initialBackoff,
	}
}

// State returns the current state under lock.
func (l *Link) State() LinkState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// OnStateChange registers a callback invoked on every transition. Only one
// observer is supported; the Router/Engine wiring owns fan-out from there.
func (l *Link) OnStateChange(f func(StateChange)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onState = f
}

// OnSample registers the callback the frame parser delivers decoded
// samples to, in the order received per characteristic.
func (l *Link) OnSample(f func(Sample)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onSample = f
}

func (l *Link) transition(to LinkState, reason error) {
	from := l.state
	l.state = to
	cb := l.onState
	l.mu.Unlock()
	if cb != nil {
		cb(StateChange{From: from, To: to, TsUs: time.Now().UnixMicro(), Reason: reason})
	}
	l.mu.Lock()
}

// Scan transitions Idle->Scanning, emits discovered advertisements to
// handler for up to DefaultScanDuration, then returns to Idle.
func (l *Link) Scan(ctx context.Context, handler func(Advertisement)) error {
	l.mu.Lock()
	if l.state != LinkIdle {
		l.mu.Unlock()
		return fmt.Errorf("link: scan requires idle state, have %s", l.state)
	}
	l.transition(LinkScanning, nil)
	l.mu.Unlock()

	scanCtx, cancel := context.WithTimeout(ctx, DefaultScanDuration)
	defer cancel()
	err := l.scanner.Scan(scanCtx, false, handler)

	l.mu.Lock()
	l.transition(LinkIdle, nil)
	l.mu.Unlock()

	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Connect transitions Idle->Connecting->Connected->Streaming for the given
// device handle, subscribing services once GATT discovery and a battery
// read succeed. newDevice builds the Device handle for the address; the
// Link keeps it so auto-reconnect can build a fresh handle after link loss.
func (l *Link) Connect(ctx context.Context, address string, services []SubscribeOptions, newDevice func(string) Device) error {
	l.mu.Lock()
	if l.state != LinkIdle {
		l.mu.Unlock()
		return fmt.Errorf("%w", ErrAlreadyConnected)
	}
	l.address = address
	l.services = services
	l.explicitStop = false
	l.backoff = initialBackoff
	l.transition(LinkConnecting, nil)
	l.mu.Unlock()

	return l.connectOnce(ctx, newDevice)
}

func (l *Link) connectOnce(ctx context.Context, newDevice func(string) Device) error {
	connectCtx, cancel := context.WithTimeout(ctx, DefaultConnectTimeout)
	defer cancel()

	dev := newDevice(l.address)
	opts := &ConnectOptions{
		Address:        l.address,
		ConnectTimeout: DefaultConnectTimeout,
		Services:       l.services,
	}

	if err := dev.Connect(connectCtx, opts); err != nil {
		l.mu.Lock()
		l.transition(LinkError, fmt.Errorf("%w: %v", ErrDeviceTimeout, err))
		l.scheduleReconnect(ctx, newDevice)
		l.mu.Unlock()
		return err
	}

	// Connecting->Connected requires the battery characteristic to be
	// readable; a read failure here means discovery is incomplete even
	// though Connect() itself succeeded.
	if _, err := l.readBattery(dev); err != nil {
		l.mu.Lock()
		l.transition(LinkError, fmt.Errorf("%w: battery read: %v", ErrDeviceTimeout, err))
		l.scheduleReconnect(ctx, newDevice)
		l.mu.Unlock()
		_ = dev.Disconnect()
		return err
	}

	l.mu.Lock()
	l.dev = dev
	l.backoff = initialBackoff
	l.transition(LinkConnected, nil)
	l.mu.Unlock()

	return l.startStreaming(ctx, newDevice)
}

// startStreaming enables notifications for the configured services and
// moves Connected->Streaming. A grace delay lets the first client attach,
// but does not gate on one existing.
func (l *Link) startStreaming(ctx context.Context, newDevice func(string) Device) error {
	conn := l.dev.GetConnection()

	time.Sleep(StreamingGraceDelay)

	subOpts := make([]*SubscribeOptions, len(l.services))
	for i := range l.services {
		subOpts[i] = &l.services[i]
	}
	err := conn.Subscribe(subOpts, StreamEveryUpdate, 0, l.deliverRecord)
	if err != nil {
		l.mu.Lock()
		l.transition(LinkError, err)
		l.scheduleReconnect(ctx, newDevice)
		l.mu.Unlock()
		return err
	}

	l.mu.Lock()
	l.transition(LinkStreaming, nil)
	connCtx := conn.(interface{ ConnectionContext() context.Context })
	l.mu.Unlock()

	go l.watchLoss(ctx, connCtx.ConnectionContext(), newDevice)
	return nil
}

// watchLoss observes the connection's context; cancellation without an
// explicit Disconnect call is link loss and triggers auto-reconnect.
func (l *Link) watchLoss(ctx context.Context, connCtx context.Context, newDevice func(string) Device) {
	<-connCtx.Done()

	l.mu.Lock()
	if l.explicitStop {
		l.mu.Unlock()
		return
	}
	wasStreaming := l.state == LinkStreaming
	l.transition(LinkDisconnecting, context.Cause(connCtx))
	l.transition(LinkIdle, nil)
	if wasStreaming {
		l.scheduleReconnect(ctx, newDevice)
	}
	l.mu.Unlock()
}

// scheduleReconnect schedules one backoff-delayed reconnect attempt. Must
// be called with l.mu held; it releases and reacquires it around the
// sleep so State()/Disconnect() remain responsive while backing off.
func (l *Link) scheduleReconnect(ctx context.Context, newDevice func(string) Device) {
	delay := l.backoff
	l.backoff *= 2
	if l.backoff > maxBackoff {
		l.backoff = maxBackoff
	}

	l.mu.Unlock()
	go func() {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}

		l.mu.Lock()
		// A failed attempt leaves the link in Error; it re-enters Idle
		// after the backoff delay so the next attempt can start.
		if !l.explicitStop && l.state == LinkError {
			l.transition(LinkIdle, nil)
		}
		if l.explicitStop || l.state != LinkIdle {
			l.mu.Unlock()
			return
		}
		l.transition(LinkConnecting, nil)
		l.mu.Unlock()

		_ = l.connectOnce(ctx, newDevice)
	}()
	l.mu.Lock()
}

// Disconnect tears the link down explicitly; no reconnect is scheduled.
func (l *Link) Disconnect() error {
	l.mu.Lock()
	l.explicitStop = true
	dev := l.dev
	state := l.state
	if state == LinkIdle {
		l.mu.Unlock()
		return nil
	}
	l.transition(LinkDisconnecting, nil)
	l.mu.Unlock()

	var err error
	if dev != nil {
		err = dev.Disconnect()
	}

	l.mu.Lock()
	l.transition(LinkIdle, nil)
	l.mu.Unlock()
	return err
}

// readBattery performs the one-shot battery-level read required before
// Connecting->Connected, using the known GATT layout from bledb.
func (l *Link) readBattery(dev Device) (BatterySample, error) {
	conn := dev.GetConnection()
	char, err := conn.GetCharacteristic(bledb.ServiceBattery, bledb.CharBatteryData)
	if err != nil {
		return BatterySample{}, err
	}
	raw, err := char.Read(batteryReadTimeout)
	if err != nil {
		return BatterySample{}, err
	}
	return ParseBatteryValue(raw)
}

// deliverRecord fans the connection's delivery Record out into per-sample
// callbacks, decoding each characteristic's payload via the frame parser
// its UUID maps to.
func (l *Link) deliverRecord(rec *Record) {
	cb := l.onSample
	if cb == nil {
		return
	}
	for charUUID, raw := range rec.Values {
		for _, s := range decodeCharacteristic(charUUID, raw) {
			cb(s)
		}
	}
}
