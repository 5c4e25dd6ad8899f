package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/linkband-io/linkband-server/internal/bledb"
	"github.com/linkband-io/linkband-server/internal/device"
	"github.com/linkband-io/linkband-server/internal/devicefactory"
	"github.com/linkband-io/linkband-server/internal/httpapi"
)

// defaultServices is the fixed subscription set every LinkBand connection
// enables: EEG, PPG, and accelerometer notification characteristics.
var defaultServices = []device.SubscribeOptions{
	{Service: bledb.ServiceEEG, Characteristics: []string{bledb.CharEEGData}},
	{Service: bledb.ServicePPG, Characteristics: []string{bledb.CharPPGData}},
	{Service: bledb.ServiceAccel, Characteristics: []string{bledb.CharAccelData}},
}

// deviceAPI adapts device.Link + device.Catalog to httpapi.DeviceAPI,
// tracking the last-known address/name/battery from the Link's own
// callbacks since Link itself exposes only lifecycle state.
type deviceAPI struct {
	link    *device.Link
	catalog *device.Catalog

	mu           sync.Mutex
	address      string
	name         string
	batteryLevel int
	haveBattery  bool
}

func newDeviceAPI(link *device.Link, catalog *device.Catalog) *deviceAPI {
	return &deviceAPI{link: link, catalog: catalog}
}

func (d *deviceAPI) onSample(s device.Sample) {
	if bat, ok := s.(device.BatterySample); ok {
		d.mu.Lock()
		d.batteryLevel = bat.LevelPercent
		d.haveBattery = true
		d.mu.Unlock()
	}
}

func (d *deviceAPI) Scan(ctx context.Context, duration time.Duration) ([]httpapi.ScannedDevice, error) {
	var out []httpapi.ScannedDevice
	var mu sync.Mutex

	scanCtx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	err := d.link.Scan(scanCtx, func(adv device.Advertisement) {
		mu.Lock()
		defer mu.Unlock()
		out = append(out, httpapi.ScannedDevice{
			Name:        adv.LocalName(),
			Address:     adv.Addr(),
			RSSI:        adv.RSSI(),
			IsConnected: false,
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (d *deviceAPI) Connect(ctx context.Context, address string) error {
	d.mu.Lock()
	d.address = address
	d.mu.Unlock()

	return d.link.Connect(ctx, address, defaultServices, func(addr string) device.Device {
		return devicefactory.NewDevice(addr, nil)
	})
}

func (d *deviceAPI) Disconnect(ctx context.Context) error {
	return d.link.Disconnect()
}

func (d *deviceAPI) Status() httpapi.DeviceStatusView {
	state := d.link.State()
	connected := state == device.LinkConnected || state == device.LinkStreaming

	d.mu.Lock()
	defer d.mu.Unlock()

	view := httpapi.DeviceStatusView{IsConnected: connected, State: string(state)}
	if connected && d.address != "" {
		view.DeviceAddress = &d.address
	}
	if connected && d.name != "" {
		view.DeviceName = &d.name
	}
	if d.haveBattery {
		level := d.batteryLevel
		view.BatteryLevel = &level
	}
	return view
}

func (d *deviceAPI) Battery() (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.batteryLevel, d.haveBattery
}

func (d *deviceAPI) RegisterDevice(id, name, address string) error {
	_, err := d.catalog.Register(id, name, address)
	return err
}

func (d *deviceAPI) ListDevices() ([]httpapi.DeviceView, error) {
	entries, err := d.catalog.List()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}

	state := d.link.State()
	connected := state == device.LinkConnected || state == device.LinkStreaming
	d.mu.Lock()
	currentAddr := d.address
	d.mu.Unlock()

	out := make([]httpapi.DeviceView, 0, len(entries))
	for _, e := range entries {
		out = append(out, httpapi.DeviceView{
			ID:          e.ID,
			Name:        e.Name,
			Registered:  true,
			IsConnected: connected && e.Address == currentAddr,
		})
	}
	return out, nil
}
