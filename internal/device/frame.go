package device

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Wire layout of a LinkBand sensor notification packet:
//
//	byte 0:    sample count N
//	byte 1-4:  device timestamp (uint32, little-endian, device clock)
//	byte 5:    lead-off bit field (EEG only; bit0=ch1, bit1=ch2)
//	byte 6..:  N fixed-size samples, sensor-specific encoding
//
// This is the proprietary equivalent of the BLE notification parsing the
// go-ble adapter performs for generic characteristics; frame.go decodes the
// LinkBand-specific payload that NewCharacteristic's generic plumbing
// delivers as an opaque []byte.
const (
	frameHeaderLen  = 6
	eegSampleLen    = 4 // 2 x int16 (ch1, ch2)
	ppgSampleLen    = 4 // 2 x uint16 (red, ir)
	accSampleLen    = 6 // 3 x int16 (x, y, z)
	accLSBPerG      = 16384.0
	eegMicrovoltLSB = 0.5 // microvolts per raw LSB, fixed front-end gain
)

// FrameError categorizes a dropped, malformed notification packet.
type FrameError struct {
	Sensor SensorKind
	Reason string
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("frame.malformed: %s: %s", e.Sensor, e.Reason)
}

// ParseEEGFrame validates and expands one raw EEG notification packet into
// its constituent samples. t_host is assigned at parse time from the host
// wall clock (time.Now in Unix microseconds, not a monotonic reading);
// t_device is taken verbatim from the packet.
func ParseEEGFrame(raw []byte) ([]EEGSample, error) {
	n, tDevice, leadoff, body, err := parseHeader(raw, eegSampleLen)
	if err != nil {
		return nil, &FrameError{Sensor: SensorEEG, Reason: err.Error()}
	}

	now := time.Now().UnixMicro()
	samples := make([]EEGSample, n)
	leadCh1 := leadoff&0x01 != 0
	leadCh2 := leadoff&0x02 != 0
	for i := 0; i < n; i++ {
		off := i * eegSampleLen
		ch1 := int16(binary.LittleEndian.Uint16(body[off:]))
		ch2 := int16(binary.LittleEndian.Uint16(body[off+2:]))
		samples[i] = EEGSample{
			TDevice:    tDevice,
			THost:      now,
			Ch1Raw:     float64(ch1) * eegMicrovoltLSB,
			Ch2Raw:     float64(ch2) * eegMicrovoltLSB,
			LeadoffCh1: leadCh1,
			LeadoffCh2: leadCh2,
		}
	}
	return samples, nil
}

// ParsePPGFrame validates and expands one raw PPG notification packet.
func ParsePPGFrame(raw []byte) ([]PPGSample, error) {
	n, tDevice, _, body, err := parseHeader(raw, ppgSampleLen)
	if err != nil {
		return nil, &FrameError{Sensor: SensorPPG, Reason: err.Error()}
	}

	now := time.Now().UnixMicro()
	samples := make([]PPGSample, n)
	for i := 0; i < n; i++ {
		off := i * ppgSampleLen
		red := binary.LittleEndian.Uint16(body[off:])
		ir := binary.LittleEndian.Uint16(body[off+2:])
		samples[i] = PPGSample{
			TDevice: tDevice,
			THost:   now,
			Red:     float64(red),
			IR:      float64(ir),
		}
	}
	return samples, nil
}

// ParseACCFrame validates and expands one raw accelerometer notification
// packet; axis values are normalized so 1.0 ≈ 1 g.
func ParseACCFrame(raw []byte) ([]ACCSample, error) {
	n, tDevice, _, body, err := parseHeader(raw, accSampleLen)
	if err != nil {
		return nil, &FrameError{Sensor: SensorACC, Reason: err.Error()}
	}

	now := time.Now().UnixMicro()
	samples := make([]ACCSample, n)
	for i := 0; i < n; i++ {
		off := i * accSampleLen
		x := int16(binary.LittleEndian.Uint16(body[off:]))
		y := int16(binary.LittleEndian.Uint16(body[off+2:]))
		z := int16(binary.LittleEndian.Uint16(body[off+4:]))
		samples[i] = ACCSample{
			TDevice: tDevice,
			THost:   now,
			X:       float64(x) / accLSBPerG,
			Y:       float64(y) / accLSBPerG,
			Z:       float64(z) / accLSBPerG,
		}
	}
	return samples, nil
}

// ParseBatteryValue decodes a battery-level characteristic read/notify,
// the standard single-byte percentage used by the Battery Service.
func ParseBatteryValue(raw []byte) (BatterySample, error) {
	if len(raw) < 1 {
		return BatterySample{}, &FrameError{Sensor: SensorBattery, Reason: "empty payload"}
	}
	return BatterySample{
		THost:        time.Now().UnixMicro(),
		LevelPercent: int(raw[0]),
	}, nil
}

// parseHeader validates the declared sample count against the packet
// length and splits header fields from the sample body.
func parseHeader(raw []byte, sampleLen int) (count int, tDevice uint32, leadoff byte, body []byte, err error) {
	if len(raw) < frameHeaderLen {
		return 0, 0, 0, nil, fmt.Errorf("packet too short: %d bytes", len(raw))
	}
	n := int(raw[0])
	tDevice = binary.LittleEndian.Uint32(raw[1:5])
	leadoff = raw[5]
	body = raw[frameHeaderLen:]

	wantLen := frameHeaderLen + n*sampleLen
	if n <= 0 || len(raw) != wantLen {
		return 0, 0, 0, nil, fmt.Errorf("declared length mismatch: got %d bytes, want %d for %d samples", len(raw), wantLen, n)
	}
	return n, tDevice, leadoff, body, nil
}
