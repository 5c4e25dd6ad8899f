package devicefactory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkband-io/linkband-server/internal/device"
)

type fakeAdvertisement struct{}

func (fakeAdvertisement) LocalName() string            { return "LinkBand-01" }
func (fakeAdvertisement) ManufacturerData() []byte      { return []byte{0x01, 0x02} }
func (fakeAdvertisement) ServiceData() []struct {
	UUID string
	Data []byte
} {
	return nil
}
func (fakeAdvertisement) Services() []string         { return []string{"180F"} }
func (fakeAdvertisement) OverflowService() []string  { return nil }
func (fakeAdvertisement) TxPowerLevel() int           { return 127 }
func (fakeAdvertisement) Connectable() bool           { return true }
func (fakeAdvertisement) SolicitedService() []string  { return nil }
func (fakeAdvertisement) RSSI() int                   { return -60 }
func (fakeAdvertisement) Addr() string                { return "AA:BB:CC:DD:EE:FF" }

type fakeScanningDevice struct{}

func (fakeScanningDevice) Scan(ctx context.Context, allowDup bool, handler func(device.Advertisement)) error {
	return nil
}

func TestDeviceFactoryVarIsOverridable(t *testing.T) {
	original := DeviceFactory
	t.Cleanup(func() { DeviceFactory = original })

	fake := fakeScanningDevice{}
	DeviceFactory = func() (device.ScanningDevice, error) { return fake, nil }

	got, err := DeviceFactory()
	require.NoError(t, err)
	assert.Equal(t, fake, got)
}

func TestNewDeviceProducesGivenAddress(t *testing.T) {
	dev := NewDevice("AA:BB:CC:DD:EE:FF", nil)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", dev.Address())
	assert.False(t, dev.IsConnected())
}

func TestNewDeviceFromAdvertisementCopiesFields(t *testing.T) {
	dev := NewDeviceFromAdvertisement(fakeAdvertisement{}, nil)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", dev.Address())
	assert.Equal(t, "LinkBand-01", dev.Name())
	assert.Equal(t, -60, dev.RSSI())
}
