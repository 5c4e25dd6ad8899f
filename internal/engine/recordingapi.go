package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/linkband-io/linkband-server/internal/httpapi"
	"github.com/linkband-io/linkband-server/internal/recorder"
)

// eventPublisher is the subset of the bus recordingAPI publishes
// recording.started/stopped lifecycle events to.
type eventPublisher interface {
	Publish(topic string, payload any)
}

// recordingAPI adapts recorder.Recorder to httpapi.RecordingAPI, translating
// between the recorder's own Session/SessionRecord types and the HTTP
// surface's wire-facing views.
type recordingAPI struct {
	rec *recorder.Recorder
	pub eventPublisher

	mu          sync.Mutex
	lastStopped *httpapi.RecordingSession
}

func newRecordingAPI(rec *recorder.Recorder, pub eventPublisher) *recordingAPI {
	return &recordingAPI{rec: rec, pub: pub}
}

func (a *recordingAPI) Start(sessionName, dataFormat, exportPath string) (httpapi.RecordingSession, error) {
	sess, err := a.rec.Start(sessionName, dataFormat)
	if err != nil {
		return httpapi.RecordingSession{}, err
	}
	out := toRecordingSession(sess)
	if a.pub != nil {
		a.pub.Publish("event.recording.started", map[string]any{"session_id": out.SessionID, "session_name": out.SessionName})
	}
	return out, nil
}

// Stop is idempotent: once a session has been stopped, a repeated call
// while idle returns that same session's summary with no error instead of
// propagating ErrNotRecording, matching "stop-recording never creates a
// second session for one recording".
func (a *recordingAPI) Stop() (httpapi.RecordingSession, error) {
	sess, err := a.rec.Stop()
	if err != nil {
		if errors.Is(err, recorder.ErrNotRecording) {
			a.mu.Lock()
			last := a.lastStopped
			a.mu.Unlock()
			if last != nil {
				return *last, nil
			}
		}
		return httpapi.RecordingSession{}, err
	}

	out := toRecordingSession(sess)
	a.mu.Lock()
	a.lastStopped = &out
	a.mu.Unlock()
	if a.pub != nil {
		a.pub.Publish("event.recording.stopped", map[string]any{"session_id": out.SessionID})
	}
	return out, nil
}

func (a *recordingAPI) Status() (httpapi.RecordingSession, bool) {
	sess, ok := a.rec.CurrentSession()
	if !ok {
		return httpapi.RecordingSession{}, false
	}
	return toRecordingSession(sess), true
}

func (a *recordingAPI) Sessions() ([]httpapi.SessionView, error) {
	records, err := a.rec.Sessions()
	if err != nil {
		return nil, err
	}
	out := make([]httpapi.SessionView, 0, len(records))
	for _, r := range records {
		out = append(out, toSessionView(r))
	}
	return out, nil
}

func (a *recordingAPI) Session(name string) (httpapi.SessionView, error) {
	r, err := a.rec.Session(name)
	if err != nil {
		return httpapi.SessionView{}, err
	}
	return toSessionView(r), nil
}

func (a *recordingAPI) Files(name string) ([]httpapi.FileInfo, error) {
	rec, err := a.rec.Session(name)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(rec.RootPath)
	if err != nil {
		return nil, fmt.Errorf("read session directory: %w", err)
	}

	out := make([]httpapi.FileInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, httpapi.FileInfo{
			Name: e.Name(),
			Path: filepath.Join(rec.RootPath, e.Name()),
			Size: info.Size(),
		})
	}
	return out, nil
}

// PrepareExport verifies the session is complete and returns a
// file:// URL the operator can fetch the session directory from; this
// server has no object-storage backend, so "export" means "it is ready
// to be copied off disk."
func (a *recordingAPI) PrepareExport(ctx context.Context, name string) (string, error) {
	rec, err := a.rec.Session(name)
	if err != nil {
		return "", err
	}
	if rec.Status == "recording" {
		return "", fmt.Errorf("recording.still_active: session %s has not been stopped", name)
	}
	return "file://" + rec.RootPath, nil
}

func toRecordingSession(s recorder.Session) httpapi.RecordingSession {
	return httpapi.RecordingSession{
		SessionID:   s.ID,
		SessionName: s.Name,
		StartTime:   s.StartedAt,
		EndTime:     s.EndedAt,
		DataFormat:  s.DataFormat,
	}
}

func toSessionView(r recorder.SessionRecord) httpapi.SessionView {
	return httpapi.SessionView{
		ID:         r.ID,
		Name:       r.Name,
		StartedAt:  r.StartedAt,
		EndedAt:    r.EndedAt,
		DataFormat: r.DataFormat,
		RootPath:   r.RootPath,
		Status:     r.Status,
	}
}
