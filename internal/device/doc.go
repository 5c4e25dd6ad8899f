// Package device defines the BLE abstractions the LinkBand server is built
// on — device/connection/characteristic interfaces, connection and
// subscription option types, and the sentinel errors callers match against
// with errors.Is. The concrete implementation lives in the goble
// subpackage, which wraps go-ble/ble behind these interfaces; this package
// also decodes the headband's proprietary notification payloads (frame.go)
// and defines its sensor sample types (sample.go), both independent of any
// particular BLE backend.
package device
