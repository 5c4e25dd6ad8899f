// Package recorder implements the session-recording state machine: arming
// a session directory before any write, streaming raw samples and processed
// frames to per-sensor JSON/CSV files, and atomically finalizing metadata
// on stop.
package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/linkband-io/linkband-server/internal/device"
	"github.com/linkband-io/linkband-server/internal/pipeline"
)

// State is the recorder's lifecycle phase.
type State string

const (
	StateIdle      State = "idle"
	StateArming    State = "arming"
	StateRecording State = "recording"
	StateClosing   State = "closing"
)

// ErrAlreadyActive is returned by Start when a session is already in
// progress, matching spec's recording.already_active error code.
var ErrAlreadyActive = fmt.Errorf("recording.already_active")

// ErrNotRecording is returned by Stop when no session is active.
var ErrNotRecording = fmt.Errorf("recording.not_active")

// FileEntry describes one file written for the current or most recent
// session, echoed in Session.FileIndex.
type FileEntry struct {
	SensorKind  string `json:"sensor_kind"`
	Kind        string `json:"kind"` // "raw" | "processed"
	Path        string `json:"path"`
	ByteSize    int64  `json:"byte_size"`
	SampleCount int64  `json:"sample_count"`
}

// Session is the externally-visible session metadata, persisted as
// session.json and mirrored in the SQLite session index.
type Session struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	StartedAt  time.Time   `json:"started_at"`
	EndedAt    *time.Time  `json:"ended_at,omitempty"`
	DataFormat string      `json:"data_format"`
	RootPath   string      `json:"root_path"`
	Status     string      `json:"status"`
	FileIndex  []FileEntry `json:"file_index"`
}

type sessionFile struct {
	entry  FileEntry
	writer *fileWriter
	count  *int64
}

// Recorder owns the single active recording session, if any. It satisfies
// router.RecorderSink for raw samples; processed frames arrive through
// WriteProcessed, which the engine calls from its processed.* bus
// subscription.
type Recorder struct {
	mu sync.Mutex

	exportRoot string
	index      *sessionIndex
	logger     *logrus.Logger

	state   State
	session Session
	files   map[string]*sessionFile // key: "<kind>_<raw|processed>"
}

// New constructs a Recorder writing under exportRoot, with its session
// index persisted at indexDBPath.
func New(exportRoot, indexDBPath string, logger *logrus.Logger) (*Recorder, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if err := os.MkdirAll(exportRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create export root: %w", err)
	}

	idx, err := openSessionIndex(indexDBPath)
	if err != nil {
		return nil, err
	}

	return &Recorder{
		exportRoot: exportRoot,
		index:      idx,
		logger:     logger,
		state:      StateIdle,
		files:      make(map[string]*sessionFile),
	}, nil
}

// State reports the recorder's current lifecycle phase.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// StateString reports the current lifecycle phase as a plain string, for
// consumers (C8 Monitoring) that shouldn't import the recorder package's
// State type.
func (r *Recorder) StateString() string {
	return string(r.State())
}

// Start arms and begins a new session. sessionName defaults to a
// timestamp-derived name if empty; dataFormat defaults to "json".
func (r *Recorder) Start(sessionName, dataFormat string) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateIdle {
		return Session{}, ErrAlreadyActive
	}
	r.state = StateArming

	if dataFormat != "json" && dataFormat != "csv" {
		dataFormat = "json"
	}
	if sessionName == "" {
		sessionName = "session_" + time.Now().Format("20060102_150405")
	}

	root := filepath.Join(r.exportRoot, sessionName)
	if err := os.MkdirAll(root, 0o755); err != nil {
		r.state = StateIdle
		return Session{}, fmt.Errorf("create session directory: %w", err)
	}

	files := make(map[string]*sessionFile)
	specs := []struct {
		kind   string
		phase  string // raw | processed
		header []string
	}{
		{"eeg", "raw", []string{"timestamp", "ch1", "ch2", "leadoff_ch1", "leadoff_ch2"}},
		{"ppg", "raw", []string{"timestamp", "red", "ir"}},
		{"acc", "raw", []string{"timestamp", "x", "y", "z"}},
		{"bat", "raw", []string{"timestamp", "level"}},
		{"eeg", "processed", eegProcessedCSVHeader},
		{"ppg", "processed", ppgProcessedCSVHeader},
		{"acc", "processed", accProcessedCSVHeader},
	}

	var index []FileEntry
	for _, s := range specs {
		ext := "json"
		if dataFormat == "csv" {
			ext = "csv"
		}
		path := filepath.Join(root, fmt.Sprintf("%s_%s_%s.%s", sessionName, s.kind, s.phase, ext))
		w, err := newFileWriter(path, dataFormat, s.header)
		if err != nil {
			for _, f := range files {
				f.writer.Close()
			}
			r.state = StateIdle
			return Session{}, fmt.Errorf("arm %s/%s: %w", s.kind, s.phase, err)
		}
		var count int64
		entry := FileEntry{SensorKind: s.kind, Kind: s.phase, Path: path}
		files[s.kind+"_"+s.phase] = &sessionFile{entry: entry, writer: w, count: &count}
		index = append(index, entry)
	}

	id := uuid.NewString()
	now := time.Now()
	sess := Session{
		ID:         id,
		Name:       sessionName,
		StartedAt:  now,
		DataFormat: dataFormat,
		RootPath:   root,
		Status:     "recording",
		FileIndex:  index,
	}

	if err := r.index.Insert(SessionRecord{
		ID: id, Name: sessionName, StartedAt: now,
		DataFormat: dataFormat, RootPath: root, Status: "recording",
	}); err != nil {
		for _, f := range files {
			f.writer.Close()
		}
		r.state = StateIdle
		return Session{}, fmt.Errorf("index session: %w", err)
	}

	r.session = sess
	r.files = files
	r.state = StateRecording
	r.logger.WithField("session", sessionName).Info("recorder: session started")
	return sess, nil
}

// Stop closes the active session, flushing and atomically renaming its
// metadata file.
func (r *Recorder) Stop() (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopLocked("completed")
}

func (r *Recorder) stopLocked(status string) (Session, error) {
	if r.state != StateRecording {
		return Session{}, ErrNotRecording
	}
	r.state = StateClosing

	now := time.Now()
	r.session.EndedAt = &now
	r.session.Status = status

	var finalIndex []FileEntry
	for _, f := range r.files {
		f.writer.Close()
		entry := f.entry
		entry.SampleCount = atomic.LoadInt64(f.count)
		if st, err := os.Stat(f.entry.Path); err == nil {
			entry.ByteSize = st.Size()
		}
		finalIndex = append(finalIndex, entry)
	}
	r.session.FileIndex = finalIndex

	if err := r.writeSessionJSON(); err != nil {
		r.logger.WithError(err).Error("recorder: failed writing session.json")
	}

	if err := r.index.Finish(r.session.ID, now, status); err != nil {
		r.logger.WithError(err).Error("recorder: failed updating session index")
	}

	done := r.session
	r.session = Session{}
	r.files = make(map[string]*sessionFile)
	r.state = StateIdle
	r.logger.WithField("session", done.Name).WithField("status", status).Info("recorder: session closed")
	return done, nil
}

// AbortOnIOError transitions a recording session to Closing with
// error.recording_io semantics: the partial session is kept, marked
// aborted, and the recorder returns to Idle.
func (r *Recorder) AbortOnIOError() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateRecording {
		return
	}
	r.stopLocked("aborted")
}

func (r *Recorder) writeSessionJSON() error {
	tmp := filepath.Join(r.session.RootPath, "session.json.tmp")
	final := filepath.Join(r.session.RootPath, "session.json")

	data, err := json.MarshalIndent(r.session, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, final)
}

// CurrentSession returns the in-progress session, if any.
func (r *Recorder) CurrentSession() (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateRecording {
		return Session{}, false
	}
	return r.session, true
}

// Sessions lists every recorded session, most recent first.
func (r *Recorder) Sessions() ([]SessionRecord, error) {
	return r.index.List()
}

// Session returns a single session's index record by name.
func (r *Recorder) Session(name string) (SessionRecord, error) {
	return r.index.Get(name)
}

// Close releases the underlying session index handle.
func (r *Recorder) Close() error {
	return r.index.Close()
}

// BytesWritten sums the on-disk size of every file in the active session,
// surfaced by C8 Monitoring. It returns 0 when idle.
func (r *Recorder) BytesWritten() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateRecording {
		return 0
	}
	var total int64
	for _, f := range r.files {
		if st, err := os.Stat(f.entry.Path); err == nil {
			total += st.Size()
		}
	}
	return total
}

// Write implements router.RecorderSink: it appends one raw sample to the
// active session's raw file for its sensor kind. The write runs
// synchronously to completion; ctx and its deadline are not consulted.
func (r *Recorder) Write(ctx context.Context, s device.Sample) error {
	r.mu.Lock()
	if r.state != StateRecording {
		r.mu.Unlock()
		return nil
	}
	sf, ok := r.files[string(s.Kind())+"_raw"]
	r.mu.Unlock()
	if !ok {
		return nil
	}

	var err error
	if sf.writer.format == "csv" {
		err = sf.writer.WriteCSVRow(rawCSVRow(s))
	} else {
		err = sf.writer.WriteJSON(s)
	}
	if err != nil {
		r.logger.WithError(err).Error("recorder: raw write failed")
		go r.AbortOnIOError()
		return err
	}
	addCount(sf.count, 1)
	return nil
}

// WriteProcessed appends one processed frame to the active session's
// processed file for kind. The engine calls it for every frame on its
// processed.* bus subscription.
func (r *Recorder) WriteProcessed(kind device.SensorKind, frame any) error {
	r.mu.Lock()
	if r.state != StateRecording {
		r.mu.Unlock()
		return nil
	}
	sf, ok := r.files[string(kind)+"_processed"]
	r.mu.Unlock()
	if !ok {
		return nil
	}

	var err error
	if sf.writer.format == "csv" {
		row, convErr := processedCSVRow(kind, frame)
		if convErr != nil {
			return convErr
		}
		err = sf.writer.WriteCSVRow(row)
	} else {
		err = sf.writer.WriteJSON(frame)
	}
	if err != nil {
		r.logger.WithError(err).Error("recorder: processed write failed")
		go r.AbortOnIOError()
		return err
	}
	addCount(sf.count, 1)
	return nil
}

func addCount(c *int64, n int64) { atomic.AddInt64(c, n) }

func rawCSVRow(s device.Sample) []string {
	switch v := s.(type) {
	case device.EEGSample:
		return []string{fmtInt(v.THost), fmtFloat(v.Ch1Raw), fmtFloat(v.Ch2Raw), fmtBool(v.LeadoffCh1), fmtBool(v.LeadoffCh2)}
	case device.PPGSample:
		return []string{fmtInt(v.THost), fmtFloat(v.Red), fmtFloat(v.IR)}
	case device.ACCSample:
		return []string{fmtInt(v.THost), fmtFloat(v.X), fmtFloat(v.Y), fmtFloat(v.Z)}
	case device.BatterySample:
		return []string{fmtInt(v.THost), fmtInt(int64(v.LevelPercent))}
	default:
		return nil
	}
}

var eegProcessedCSVHeader = []string{
	"timestamp", "ch1_sqi", "ch2_sqi",
	"ch1_delta", "ch1_theta", "ch1_alpha", "ch1_beta", "ch1_gamma",
	"ch2_delta", "ch2_theta", "ch2_alpha", "ch2_beta", "ch2_gamma",
	"focus_index", "relaxation_index", "stress_index", "cognitive_load",
	"emotional_stability", "hemispheric_balance", "total_power",
}

var ppgProcessedCSVHeader = []string{
	"timestamp", "bpm", "sdnn", "rmssd", "pnn50", "sdsd", "lf", "hf", "lf_hf_ratio",
}

var accProcessedCSVHeader = []string{
	"timestamp", "avg_movement", "std_movement", "max_movement", "activity_state",
}

func processedCSVRow(kind device.SensorKind, frame any) ([]string, error) {
	switch kind {
	case device.SensorEEG:
		f, ok := frame.(*pipeline.EEGProcessed)
		if !ok {
			return nil, fmt.Errorf("recorder: unexpected eeg processed type %T", frame)
		}
		row := []string{fmtInt(f.THost), fmtFloatPtr(f.Ch1SQI), fmtFloatPtr(f.Ch2SQI)}
		row = append(row, bandPowerCols(f.Ch1BandPowers)...)
		row = append(row, bandPowerCols(f.Ch2BandPowers)...)
		row = append(row, fmtFloatPtr(f.FocusIndex), fmtFloatPtr(f.RelaxationIndex),
			fmtFloatPtr(f.StressIndex), fmtFloatPtr(f.CognitiveLoad),
			fmtFloatPtr(f.EmotionalStability), fmtFloatPtr(f.HemisphericBalance), fmtFloatPtr(f.TotalPower))
		return row, nil

	case device.SensorPPG:
		f, ok := frame.(*pipeline.PPGProcessed)
		if !ok {
			return nil, fmt.Errorf("recorder: unexpected ppg processed type %T", frame)
		}
		return []string{fmtInt(f.THost), fmtFloatPtr(f.BPM), fmtFloatPtr(f.SDNN), fmtFloatPtr(f.RMSSD),
			fmtFloatPtr(f.PNN50), fmtFloatPtr(f.SDSD), fmtFloatPtr(f.LF), fmtFloatPtr(f.HF), fmtFloatPtr(f.LFHFRatio)}, nil

	case device.SensorACC:
		f, ok := frame.(*pipeline.ACCProcessed)
		if !ok {
			return nil, fmt.Errorf("recorder: unexpected acc processed type %T", frame)
		}
		return []string{fmtInt(f.THost), fmtFloat(f.AvgMovement), fmtFloat(f.StdMovement),
			fmtFloat(f.MaxMovement), string(f.ActivityState)}, nil

	default:
		return nil, fmt.Errorf("recorder: no processed CSV mapping for %s", kind)
	}
}

func bandPowerCols(bp *pipeline.BandPowers) []string {
	if bp == nil {
		return []string{"", "", "", "", ""}
	}
	return []string{fmtFloat(bp.Delta), fmtFloat(bp.Theta), fmtFloat(bp.Alpha), fmtFloat(bp.Beta), fmtFloat(bp.Gamma)}
}

func fmtInt(n int64) string { return fmt.Sprintf("%d", n) }
