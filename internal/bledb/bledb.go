// Package bledb provides lookup of human-readable names for the LinkBand
// headband's fixed GATT service and characteristic UUIDs.
//
// Unlike the Bluetooth SIG's public assigned-numbers registry, LinkBand
// exposes a small, proprietary set of services (EEG, PPG, accelerometer,
// battery) that never changes at runtime, so the table here is hand
// authored rather than generated.
package bledb

import "strings"

// NormalizeUUID strips dashes, braces and an optional "0x" prefix and
// lowercases the result, matching the internal BLE library's UUID form.
// Bluetooth-base 128-bit UUIDs collapse to their 16-bit short form.
func NormalizeUUID(uuid string) string {
	u := strings.ToLower(uuid)
	u = strings.TrimPrefix(u, "0x")
	u = strings.Trim(u, "{}")
	u = strings.ReplaceAll(u, "-", "")
	if len(u) == 32 && strings.HasPrefix(u, "0000") && strings.HasSuffix(u, "00001000800000805f9b34fb") {
		return u[4:8]
	}
	return u
}

// NormalizeUUIDs normalizes a slice of UUID strings.
func NormalizeUUIDs(uuids []string) []string {
	out := make([]string, len(uuids))
	for i, u := range uuids {
		out[i] = NormalizeUUID(u)
	}
	return out
}

// Known LinkBand GATT service UUIDs.
const (
	ServiceEEG     = "6e400001b5a3f393e0a9e50e24dcca9e"
	ServicePPG     = "6e400002b5a3f393e0a9e50e24dcca9e"
	ServiceAccel   = "6e400003b5a3f393e0a9e50e24dcca9e"
	ServiceBattery = "180f"
	ServiceDevice  = "180a"
)

// Known LinkBand GATT characteristic UUIDs.
const (
	CharEEGData     = "6e400011b5a3f393e0a9e50e24dcca9e"
	CharPPGData     = "6e400012b5a3f393e0a9e50e24dcca9e"
	CharAccelData   = "6e400013b5a3f393e0a9e50e24dcca9e"
	CharBatteryData = "2a19"
	CharDeviceName  = "2a00"
)

var serviceNames = map[string]string{
	ServiceEEG:     "EEG",
	ServicePPG:     "PPG",
	ServiceAccel:   "Accelerometer",
	ServiceBattery: "Battery Service",
	ServiceDevice:  "Device Information",
}

var characteristicNames = map[string]string{
	CharEEGData:     "EEG Data",
	CharPPGData:     "PPG Data",
	CharAccelData:   "Accelerometer Data",
	CharBatteryData: "Battery Level",
	CharDeviceName:  "Device Name",
}

var descriptorNames = map[string]string{
	"2902": "Client Characteristic Configuration",
	"2901": "Characteristic User Descriptor",
}

// LookupService returns the known name for a service UUID, or "" if unknown.
func LookupService(uuid string) string {
	return serviceNames[NormalizeUUID(uuid)]
}

// LookupCharacteristic returns the known name for a characteristic UUID, or "" if unknown.
func LookupCharacteristic(uuid string) string {
	return characteristicNames[NormalizeUUID(uuid)]
}

// LookupDescriptor returns the known name for a descriptor UUID, or "" if unknown.
func LookupDescriptor(uuid string) string {
	return descriptorNames[NormalizeUUID(uuid)]
}
