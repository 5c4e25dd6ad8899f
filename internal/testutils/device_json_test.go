//go:build test

package testutils

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkband-io/linkband-server/internal/device"
)

type jsonFakeAdvertisement struct{}

func (jsonFakeAdvertisement) LocalName() string         { return "LXB-1234" }
func (jsonFakeAdvertisement) ManufacturerData() []byte  { return []byte{0xde, 0xad} }
func (jsonFakeAdvertisement) ServiceData() []struct {
	UUID string
	Data []byte
} {
	return []struct {
		UUID string
		Data []byte
	}{{UUID: "180d", Data: []byte{0xbe, 0xef}}}
}
func (jsonFakeAdvertisement) Services() []string         { return []string{"180d"} }
func (jsonFakeAdvertisement) OverflowService() []string  { return nil }
func (jsonFakeAdvertisement) TxPowerLevel() int          { return -12 }
func (jsonFakeAdvertisement) Connectable() bool          { return true }
func (jsonFakeAdvertisement) SolicitedService() []string { return nil }
func (jsonFakeAdvertisement) RSSI() int                  { return -55 }
func (jsonFakeAdvertisement) Addr() string               { return "AA:BB:CC:DD:EE:FF" }

type jsonFakeDevice struct{}

func (jsonFakeDevice) ID() string                        { return "dev-1" }
func (jsonFakeDevice) Name() string                      { return "LXB-1234" }
func (jsonFakeDevice) Address() string                   { return "AA:BB:CC:DD:EE:FF" }
func (jsonFakeDevice) RSSI() int                          { return -55 }
func (jsonFakeDevice) TxPower() *int                      { v := -12; return &v }
func (jsonFakeDevice) IsConnectable() bool                { return true }
func (jsonFakeDevice) AdvertisedServices() []string       { return []string{"180d"} }
func (jsonFakeDevice) ManufacturerData() []byte           { return []byte{0xde, 0xad} }
func (jsonFakeDevice) ServiceData() map[string][]byte     { return map[string][]byte{"180d": {0xbe, 0xef}} }
func (jsonFakeDevice) Connect(context.Context, *device.ConnectOptions) error { return nil }
func (jsonFakeDevice) Disconnect() error                  { return nil }
func (jsonFakeDevice) IsConnected() bool                  { return false }
func (jsonFakeDevice) Update(device.Advertisement)        {}
func (jsonFakeDevice) GetConnection() device.Connection   { return nil }

func TestAdvertisementToJSONRoundTripsExpectedFields(t *testing.T) {
	out := AdvertisementToJSON(jsonFakeAdvertisement{})

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))

	assert.Equal(t, "AA:BB:CC:DD:EE:FF", decoded["address"])
	assert.Equal(t, "LXB-1234", decoded["name"])
	assert.Equal(t, float64(-55), decoded["rssi"])
	assert.Equal(t, true, decoded["connectable"])
	assert.Equal(t, "dead", decoded["manufacturer_data"])
	assert.Equal(t, float64(-12), decoded["tx_power"])
}

func TestDeviceToJSONRoundTripsExpectedFields(t *testing.T) {
	out := DeviceToJSON(jsonFakeDevice{})

	var decoded DeviceJSONFull
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))

	assert.Equal(t, "dev-1", decoded.ID)
	assert.Equal(t, "LXB-1234", decoded.Name)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", decoded.Address)
	require.Len(t, decoded.Services, 1)
	assert.Equal(t, "180d", decoded.Services[0].UUID)
}

func TestBytesToHexEmptyIsEmptyString(t *testing.T) {
	assert.Equal(t, "", bytesToHex(nil))
}
