package device

// SensorKind identifies one of the headband's fixed telemetry streams.
type SensorKind string

const (
	SensorEEG     SensorKind = "eeg"
	SensorPPG     SensorKind = "ppg"
	SensorACC     SensorKind = "acc"
	SensorBattery SensorKind = "bat"
)

// NominalRateHz returns the sensor's fixed nominal sampling rate, or 0 for
// battery which reports on change rather than on a fixed clock.
func (k SensorKind) NominalRateHz() float64 {
	switch k {
	case SensorEEG:
		return 250
	case SensorPPG:
		return 50
	case SensorACC:
		return 25
	default:
		return 0
	}
}

// EEGSample is one decoded EEG frame: two channels plus per-channel
// lead-off (poor electrode contact) flags.
type EEGSample struct {
	TDevice    uint32
	THost      int64 // micros, monotonic within this sensor's stream
	Ch1Raw     float64
	Ch2Raw     float64
	LeadoffCh1 bool
	LeadoffCh2 bool
}

// PPGSample is one decoded photoplethysmography frame.
type PPGSample struct {
	TDevice uint32
	THost   int64
	Red     float64
	IR      float64
}

// ACCSample is one decoded accelerometer frame.
type ACCSample struct {
	TDevice uint32
	THost   int64
	X       float64
	Y       float64
	Z       float64
}

// BatterySample carries the headband's battery state; it is emitted on
// change rather than on a fixed clock, so it carries no device timestamp.
type BatterySample struct {
	THost        int64
	LevelPercent int
	Voltage      *float64
	Charging     *bool
}

// Sample is implemented by every raw sample type so the router can move
// them through sensor-agnostic queues while pipelines still type-assert
// back to the concrete shape they need.
type Sample interface {
	Kind() SensorKind
	HostTime() int64
}

func (s EEGSample) Kind() SensorKind { return SensorEEG }
func (s EEGSample) HostTime() int64  { return s.THost }

func (s PPGSample) Kind() SensorKind { return SensorPPG }
func (s PPGSample) HostTime() int64  { return s.THost }

func (s ACCSample) Kind() SensorKind { return SensorACC }
func (s ACCSample) HostTime() int64  { return s.THost }

func (s BatterySample) Kind() SensorKind { return SensorBattery }
func (s BatterySample) HostTime() int64  { return s.THost }
