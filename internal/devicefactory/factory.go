// Package devicefactory wires the go-ble backed scanning/connection adapter
// (internal/device/goble) behind the device.ScanningDevice and device.Device
// interfaces, so the rest of the server never imports go-ble directly.
package devicefactory

import (
	"github.com/linkband-io/linkband-server/internal/device"
	"github.com/linkband-io/linkband-server/internal/device/goble"
	"github.com/sirupsen/logrus"
)

// DeviceFactory creates a device.ScanningDevice for BLE scanning. A variable
// so tests can substitute a fake scanner without a real radio.
var DeviceFactory = func() (device.ScanningDevice, error) {
	return goble.NewScanner()
}

// NewDevice creates a device handle for a known LinkBand address, bypassing
// discovery (used when reconnecting to a catalogued device).
func NewDevice(address string, logger *logrus.Logger) device.Device {
	return goble.NewBLEDeviceWithAddress(address, logger)
}

// NewDeviceFromAdvertisement creates a device handle from a scan result.
func NewDeviceFromAdvertisement(adv device.Advertisement, logger *logrus.Logger) device.Device {
	return goble.NewBLEDeviceFromAdvertisement(adv, logger)
}
