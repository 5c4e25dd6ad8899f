package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDeviceAPI struct {
	scanResult   []ScannedDevice
	scanErr      error
	connectErr   error
	status       DeviceStatusView
	batteryLevel int
	batteryOK    bool
	devices      []DeviceView
	registerErr  error
}

func (f *fakeDeviceAPI) Scan(ctx context.Context, d time.Duration) ([]ScannedDevice, error) {
	return f.scanResult, f.scanErr
}
func (f *fakeDeviceAPI) Connect(ctx context.Context, address string) error { return f.connectErr }
func (f *fakeDeviceAPI) Disconnect(ctx context.Context) error              { return nil }
func (f *fakeDeviceAPI) Status() DeviceStatusView                         { return f.status }
func (f *fakeDeviceAPI) Battery() (int, bool)                             { return f.batteryLevel, f.batteryOK }
func (f *fakeDeviceAPI) RegisterDevice(id, name, address string) error    { return f.registerErr }
func (f *fakeDeviceAPI) ListDevices() ([]DeviceView, error)               { return f.devices, nil }

type fakeStreamAPI struct {
	initErr  error
	startErr error
}

func (f *fakeStreamAPI) Init(ctx context.Context) error  { return f.initErr }
func (f *fakeStreamAPI) Start(ctx context.Context) error { return f.startErr }
func (f *fakeStreamAPI) Stop(ctx context.Context) error  { return nil }
func (f *fakeStreamAPI) Status() StreamStatusView        { return StreamStatusView{IsRunning: true} }
func (f *fakeStreamAPI) AutoStatus() AutoStreamStatusView {
	return AutoStreamStatusView{IsStreaming: true}
}

type fakeRecordingAPI struct {
	startErr error
	stopErr  error
	active   bool
	sess     RecordingSession
}

func (f *fakeRecordingAPI) Start(name, format, exportPath string) (RecordingSession, error) {
	return f.sess, f.startErr
}
func (f *fakeRecordingAPI) Stop() (RecordingSession, error)     { return f.sess, f.stopErr }
func (f *fakeRecordingAPI) Status() (RecordingSession, bool)    { return f.sess, f.active }
func (f *fakeRecordingAPI) Sessions() ([]SessionView, error)    { return nil, nil }
func (f *fakeRecordingAPI) Session(name string) (SessionView, error) {
	if name == "missing" {
		return SessionView{}, errors.New("not found")
	}
	return SessionView{Name: name}, nil
}
func (f *fakeRecordingAPI) Files(name string) ([]FileInfo, error) { return nil, nil }
func (f *fakeRecordingAPI) PrepareExport(ctx context.Context, name string) (string, error) {
	return "file:///exports/" + name, nil
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthEndpointAlwaysOK(t *testing.T) {
	s := New("1.0.0", nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "ok", body["status"])
}

func TestDeviceScanWithoutDeviceAPIReturnsUnavailable(t *testing.T) {
	s := New("1.0.0", nil)
	req := httptest.NewRequest(http.MethodGet, "/device/scan", nil)
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "device.unavailable", body["error_code"])
}

func TestDeviceScanSuccess(t *testing.T) {
	dev := &fakeDeviceAPI{scanResult: []ScannedDevice{{Name: "LinkBand", Address: "AA:BB"}}}
	s := New("1.0.0", nil, WithDevice(dev))

	req := httptest.NewRequest(http.MethodGet, "/device/scan", nil)
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	devices := body["devices"].([]any)
	require.Len(t, devices, 1)
}

func TestDeviceScanFailurePropagatesErrorCode(t *testing.T) {
	dev := &fakeDeviceAPI{scanErr: errors.New("radio down")}
	s := New("1.0.0", nil, WithDevice(dev))

	req := httptest.NewRequest(http.MethodGet, "/device/scan", nil)
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "device.scan_failed", body["error_code"])
}

func TestDeviceConnectRequiresAddress(t *testing.T) {
	dev := &fakeDeviceAPI{}
	s := New("1.0.0", nil, WithDevice(dev))

	req := httptest.NewRequest(http.MethodPost, "/device/connect", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "device.invalid_request", body["error_code"])
}

func TestDeviceConnectSuccess(t *testing.T) {
	dev := &fakeDeviceAPI{}
	s := New("1.0.0", nil, WithDevice(dev))

	req := httptest.NewRequest(http.MethodPost, "/device/connect", strings.NewReader(`{"address":"AA:BB"}`))
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
}

func TestDeviceBatteryNotYetAvailable(t *testing.T) {
	dev := &fakeDeviceAPI{batteryOK: false}
	s := New("1.0.0", nil, WithDevice(dev))

	req := httptest.NewRequest(http.MethodGet, "/device/battery", nil)
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStreamStatusIncludesInjectedClientCount(t *testing.T) {
	stream := &fakeStreamAPI{}
	s := New("1.0.0", nil, WithStream(stream), WithClientCounter(func() int { return 3 }))

	req := httptest.NewRequest(http.MethodGet, "/stream/status", nil)
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var status StreamStatusView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, 3, status.ClientsConnected)
}

func TestStartRecordingConflictReturnsAlreadyActive(t *testing.T) {
	rec := &fakeRecordingAPI{startErr: errors.New("recording.already_active")}
	s := New("1.0.0", nil, WithRecording(rec))

	req := httptest.NewRequest(http.MethodPost, "/data/start-recording", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	s.Mux().ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSessionGetNotFound(t *testing.T) {
	s := New("1.0.0", nil, WithRecording(&fakeRecordingAPI{}))

	req := httptest.NewRequest(http.MethodGet, "/data/sessions/missing", nil)
	w := httptest.NewRecorder()
	s.Mux().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionGetFound(t *testing.T) {
	s := New("1.0.0", nil, WithRecording(&fakeRecordingAPI{}))

	req := httptest.NewRequest(http.MethodGet, "/data/sessions/mysession", nil)
	w := httptest.NewRecorder()
	s.Mux().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var sess SessionView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sess))
	assert.Equal(t, "mysession", sess.Name)
}

func TestPrepareExportReturnsDownloadURL(t *testing.T) {
	s := New("1.0.0", nil, WithRecording(&fakeRecordingAPI{}))

	req := httptest.NewRequest(http.MethodPost, "/data/sessions/mysession/prepare-export", nil)
	w := httptest.NewRecorder()
	s.Mux().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "file:///exports/mysession", body["download_url"])
}

func TestMetricsWithoutMonitorReturnsUnavailable(t *testing.T) {
	s := New("1.0.0", nil)
	req := httptest.NewRequest(http.MethodGet, "/metrics/", nil)
	w := httptest.NewRecorder()
	s.Mux().ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
