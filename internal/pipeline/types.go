// Package pipeline turns raw sensor sample windows into processed frames:
// EEG band powers and derived indices, PPG heart-rate/HRV metrics, and ACC
// activity classification, each emitted at most once per second.
package pipeline

// BandPowers holds the five canonical EEG band powers for one channel.
type BandPowers struct {
	Delta float64 `json:"delta"`
	Theta float64 `json:"theta"`
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
	Gamma float64 `json:"gamma"`
}

// EEGProcessed is one windowed EEG processed frame (spec §3).
type EEGProcessed struct {
	THost int64 `json:"t_host"`

	Ch1Filtered []float64 `json:"ch1_filtered"`
	Ch2Filtered []float64 `json:"ch2_filtered"`

	Ch1SQI *float64 `json:"ch1_sqi"`
	Ch2SQI *float64 `json:"ch2_sqi"`

	Frequencies []float64 `json:"frequencies"`
	Ch1Power    []float64 `json:"ch1_power"`
	Ch2Power    []float64 `json:"ch2_power"`

	Ch1BandPowers *BandPowers `json:"ch1_band_powers"`
	Ch2BandPowers *BandPowers `json:"ch2_band_powers"`

	FocusIndex         *float64 `json:"focus_index"`
	RelaxationIndex    *float64 `json:"relaxation_index"`
	StressIndex        *float64 `json:"stress_index"`
	CognitiveLoad      *float64 `json:"cognitive_load"`
	EmotionalStability *float64 `json:"emotional_stability"`
	HemisphericBalance *float64 `json:"hemispheric_balance"`
	TotalPower         *float64 `json:"total_power"`
}

// PPGProcessed is one windowed PPG processed frame (spec §3).
type PPGProcessed struct {
	THost int64 `json:"t_host"`

	FilteredPPG []float64 `json:"filtered_ppg"`
	PPGSQI      []float64 `json:"ppg_sqi"`

	BPM       *float64 `json:"bpm"`
	SDNN      *float64 `json:"sdnn"`
	RMSSD     *float64 `json:"rmssd"`
	PNN50     *float64 `json:"pnn50"`
	SDSD      *float64 `json:"sdsd"`
	LF        *float64 `json:"lf"`
	HF        *float64 `json:"hf"`
	LFHFRatio *float64 `json:"lf_hf_ratio"`
}

// ActivityState classifies accelerometer-derived movement intensity.
type ActivityState string

const (
	ActivityStationary ActivityState = "stationary"
	ActivityLight      ActivityState = "light"
	ActivityModerate   ActivityState = "moderate"
	ActivityVigorous   ActivityState = "vigorous"
)

// ACCProcessed is one windowed accelerometer processed frame (spec §3).
type ACCProcessed struct {
	THost         int64         `json:"t_host"`
	AvgMovement   float64       `json:"avg_movement"`
	StdMovement   float64       `json:"std_movement"`
	MaxMovement   float64       `json:"max_movement"`
	ActivityState ActivityState `json:"activity_state"`
}

func ptr(f float64) *float64 { return &f }
