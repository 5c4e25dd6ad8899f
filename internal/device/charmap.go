package device

import (
	"github.com/linkband-io/linkband-server/internal/bledb"
)

// decodeCharacteristic routes one characteristic's raw notification payload
// to the matching frame parser, returning the samples it decoded. Frame
// errors are dropped here rather than propagated: a malformed packet yields
// no samples and never reaches the router. The drop is not counted or
// reported anywhere.
func decodeCharacteristic(charUUID string, raw []byte) []Sample {
	switch bledb.NormalizeUUID(charUUID) {
	case bledb.NormalizeUUID(bledb.CharEEGData):
		samples, err := ParseEEGFrame(raw)
		if err != nil {
			return nil
		}
		out := make([]Sample, len(samples))
		for i, s := range samples {
			out[i] = s
		}
		return out

	case bledb.NormalizeUUID(bledb.CharPPGData):
		samples, err := ParsePPGFrame(raw)
		if err != nil {
			return nil
		}
		out := make([]Sample, len(samples))
		for i, s := range samples {
			out[i] = s
		}
		return out

	case bledb.NormalizeUUID(bledb.CharAccelData):
		samples, err := ParseACCFrame(raw)
		if err != nil {
			return nil
		}
		out := make([]Sample, len(samples))
		for i, s := range samples {
			out[i] = s
		}
		return out

	case bledb.NormalizeUUID(bledb.CharBatteryData):
		sample, err := ParseBatteryValue(raw)
		if err != nil {
			return nil
		}
		return []Sample{sample}

	default:
		return nil
	}
}
