package device

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkband-io/linkband-server/internal/bledb"
)

type fakeScanner struct {
	err error
}

func (f fakeScanner) Scan(ctx context.Context, allowDup bool, handler func(Advertisement)) error {
	return f.err
}

type fakeCharacteristic struct {
	readBytes []byte
	readErr   error
}

func (fakeCharacteristic) UUID() string                  { return bledb.CharBatteryData }
func (fakeCharacteristic) KnownName() string              { return "Battery Level" }
func (fakeCharacteristic) GetProperties() Properties      { return nil }
func (fakeCharacteristic) GetDescriptors() []Descriptor   { return nil }
func (c fakeCharacteristic) Read(time.Duration) ([]byte, error) { return c.readBytes, c.readErr }
func (fakeCharacteristic) Write([]byte, bool, time.Duration) error { return nil }

type fakeConnection struct {
	char         Characteristic
	charErr      error
	subscribeErr error
	subscribed   []*SubscribeOptions
	ctx          context.Context
}

func (fakeConnection) Services() []Service                           { return nil }
func (fakeConnection) GetService(string) (Service, error)            { return nil, nil }
func (c fakeConnection) GetCharacteristic(service, uuid string) (Characteristic, error) {
	return c.char, c.charErr
}
func (c *fakeConnection) Subscribe(opts []*SubscribeOptions, pattern StreamMode, maxRate time.Duration, callback func(*Record)) error {
	c.subscribed = opts
	return c.subscribeErr
}
func (c fakeConnection) ConnectionContext() context.Context { return c.ctx }

type fakeDevice struct {
	connectErr       error
	conn             Connection
	disconnectCalled bool
}

func (fakeDevice) ID() string                      { return "dev-1" }
func (fakeDevice) Name() string                    { return "LinkBand" }
func (fakeDevice) Address() string                 { return "AA:BB:CC" }
func (fakeDevice) RSSI() int                        { return -50 }
func (fakeDevice) TxPower() *int                    { return nil }
func (fakeDevice) IsConnectable() bool              { return true }
func (fakeDevice) AdvertisedServices() []string     { return nil }
func (fakeDevice) ManufacturerData() []byte         { return nil }
func (fakeDevice) ServiceData() map[string][]byte   { return nil }
func (d fakeDevice) Connect(ctx context.Context, opts *ConnectOptions) error { return d.connectErr }
func (d *fakeDevice) Disconnect() error             { d.disconnectCalled = true; return nil }
func (fakeDevice) IsConnected() bool                { return true }
func (fakeDevice) Update(Advertisement)             {}
func (d fakeDevice) GetConnection() Connection      { return d.conn }

func TestScanTransitionsIdleToScanningBackToIdle(t *testing.T) {
	l := NewLink(fakeScanner{}, nil)

	var seen []LinkState
	l.OnStateChange(func(sc StateChange) { seen = append(seen, sc.To) })

	require.NoError(t, l.Scan(context.Background(), nil))
	assert.Equal(t, LinkIdle, l.State())
	assert.Equal(t, []LinkState{LinkScanning, LinkIdle}, seen)
}

func TestScanRejectsWhenNotIdle(t *testing.T) {
	l := NewLink(fakeScanner{}, nil)
	l.mu.Lock()
	l.state = LinkConnecting
	l.mu.Unlock()

	err := l.Scan(context.Background(), nil)
	assert.Error(t, err)
}

func TestScanPropagatesNonTimeoutScannerError(t *testing.T) {
	boom := errors.New("radio fault")
	l := NewLink(fakeScanner{err: boom}, nil)

	err := l.Scan(context.Background(), nil)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, LinkIdle, l.State())
}

func TestConnectRejectsWhenAlreadyConnecting(t *testing.T) {
	l := NewLink(fakeScanner{}, nil)
	l.mu.Lock()
	l.state = LinkConnecting
	l.mu.Unlock()

	err := l.Connect(context.Background(), "AA:BB", nil, func(string) Device { return nil })
	assert.ErrorIs(t, err, ErrAlreadyConnected)
}

func TestConnectReachesStreamingOnSuccess(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	conn := &fakeConnection{char: fakeCharacteristic{readBytes: []byte{77}}, ctx: ctx}
	dev := &fakeDevice{conn: conn}

	l := NewLink(fakeScanner{}, nil)
	err := l.Connect(ctx, "AA:BB", []SubscribeOptions{{Service: bledb.ServiceBattery}},
		func(string) Device { return dev })

	require.NoError(t, err)
	assert.Equal(t, LinkStreaming, l.State())
	require.Len(t, conn.subscribed, 1)
}

func TestConnectPropagatesDeviceConnectError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	boom := errors.New("gatt timeout")
	dev := &fakeDevice{connectErr: boom}

	l := NewLink(fakeScanner{}, nil)
	err := l.Connect(ctx, "AA:BB", nil, func(string) Device { return dev })

	assert.Error(t, err)
	assert.Equal(t, LinkError, l.State())
}

func TestConnectPropagatesBatteryReadError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	conn := &fakeConnection{char: fakeCharacteristic{readErr: errors.New("read failed")}, ctx: ctx}
	dev := &fakeDevice{conn: conn}

	l := NewLink(fakeScanner{}, nil)
	err := l.Connect(ctx, "AA:BB", nil, func(string) Device { return dev })

	assert.Error(t, err)
	assert.Equal(t, LinkError, l.State())
	assert.True(t, dev.disconnectCalled)
}

func TestDisconnectFromIdleIsNoop(t *testing.T) {
	l := NewLink(fakeScanner{}, nil)
	require.NoError(t, l.Disconnect())
	assert.Equal(t, LinkIdle, l.State())
}

func TestDeliverRecordRoutesBatteryPayloadToOnSample(t *testing.T) {
	l := NewLink(fakeScanner{}, nil)

	var got Sample
	l.OnSample(func(s Sample) { got = s })

	l.deliverRecord(&Record{Values: map[string][]byte{bledb.CharBatteryData: {55}}})

	batt, ok := got.(BatterySample)
	require.True(t, ok)
	assert.Equal(t, 55, batt.LevelPercent)
}
