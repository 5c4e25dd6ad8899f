// Package httpapi is the stateless HTTP control plane (C7): it validates
// input, calls into the device link, router, recorder, and stream control
// surfaces injected at construction, and returns {success, message?, data?}
// or a structured error, per the pinned endpoint surface.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultHandlerTimeout = 5 * time.Second
	longHandlerTimeout    = 30 * time.Second // scan, prepare-export
)

// ScannedDevice is one device observed during a scan.
type ScannedDevice struct {
	Name        string `json:"name"`
	Address     string `json:"address"`
	RSSI        int    `json:"rssi"`
	IsConnected bool   `json:"is_connected"`
}

// DeviceView is one registered device, per spec §3's Device shape.
type DeviceView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	RSSI        *int   `json:"rssi,omitempty"`
	Registered  bool   `json:"registered"`
	IsConnected bool   `json:"is_connected"`
}

// DeviceStatusView answers GET /device/status.
type DeviceStatusView struct {
	IsConnected   bool    `json:"is_connected"`
	DeviceAddress *string `json:"device_address,omitempty"`
	DeviceName    *string `json:"device_name,omitempty"`
	BatteryLevel  *int    `json:"battery_level,omitempty"`
	State         string  `json:"state"`
}

// StreamStatusView answers GET /stream/status.
type StreamStatusView struct {
	IsRunning        bool     `json:"is_running"`
	IsStreaming      bool     `json:"is_streaming"`
	ClientsConnected int      `json:"clients_connected"`
	DataRate         *float64 `json:"data_rate,omitempty"`
}

// AutoStreamStatusView answers GET /stream/auto-status.
type AutoStreamStatusView struct {
	IsStreaming   bool     `json:"is_streaming"`
	IsActive      bool     `json:"is_active"`
	ActiveSensors []string `json:"active_sensors"`
	AutoDetected  bool     `json:"auto_detected"`
}

// RecordingSession is the subset of session metadata the HTTP surface
// exposes for start/stop/status calls.
type RecordingSession struct {
	SessionID   string     `json:"session_id"`
	SessionName string     `json:"session_name"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	DataFormat  string     `json:"data_format"`
}

// SessionView answers GET /data/sessions and /data/sessions/{name}.
type SessionView struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	DataFormat string     `json:"data_format"`
	RootPath   string     `json:"root_path"`
	Status     string     `json:"status"`
}

// FileInfo answers GET /data/sessions/{name}/files.
type FileInfo struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// DeviceAPI is the device-link surface the HTTP layer calls into.
type DeviceAPI interface {
	Scan(ctx context.Context, duration time.Duration) ([]ScannedDevice, error)
	Connect(ctx context.Context, address string) error
	Disconnect(ctx context.Context) error
	Status() DeviceStatusView
	Battery() (levelPercent int, ok bool)
	RegisterDevice(id, name, address string) error
	ListDevices() ([]DeviceView, error)
}

// StreamAPI controls acquisition streaming independent of recording.
type StreamAPI interface {
	Init(ctx context.Context) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Status() StreamStatusView
	AutoStatus() AutoStreamStatusView
}

// RecordingAPI is the session-recording surface (C6).
type RecordingAPI interface {
	Start(sessionName, dataFormat, exportPath string) (RecordingSession, error)
	Stop() (RecordingSession, error)
	Status() (RecordingSession, bool)
	Sessions() ([]SessionView, error)
	Session(name string) (SessionView, error)
	Files(name string) ([]FileInfo, error)
	PrepareExport(ctx context.Context, name string) (string, error)
}

// MetricsAPI supplies the system/streaming/alert snapshot for GET /metrics/.
type MetricsAPI interface {
	Snapshot() map[string]any
}

// Server is the HTTP control plane. Every dependency is injected so the
// handlers never import C1/C2/C6/C8 concrete types directly.
type Server struct {
	Version string

	device      DeviceAPI
	stream      StreamAPI
	recording   RecordingAPI
	metrics     MetricsAPI
	wsHandler   http.Handler
	clientCount func() int

	startedAt time.Time
	logger    *logrus.Logger
	server    *http.Server
}

// Option configures optional Server dependencies.
type Option func(*Server)

func WithDevice(d DeviceAPI) Option      { return func(s *Server) { s.device = d } }
func WithStream(st StreamAPI) Option     { return func(s *Server) { s.stream = st } }
func WithRecording(r RecordingAPI) Option { return func(s *Server) { s.recording = r } }
func WithMetrics(m MetricsAPI) Option    { return func(s *Server) { s.metrics = m } }
func WithWebSocketHandler(h http.Handler) Option {
	return func(s *Server) { s.wsHandler = h }
}
func WithClientCounter(f func() int) Option { return func(s *Server) { s.clientCount = f } }

// New constructs the HTTP control plane server.
func New(version string, logger *logrus.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	s := &Server{Version: version, startedAt: time.Now(), logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mux builds the routed handler; callers can mount it directly or wrap it.
func (s *Server) Mux() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /metrics/", s.handleMetrics)

	mux.HandleFunc("GET /device/scan", s.handleDeviceScan)
	mux.HandleFunc("GET /device/list", s.handleDeviceList)
	mux.HandleFunc("POST /device/register_device", s.handleDeviceRegister)
	mux.HandleFunc("POST /device/connect", s.handleDeviceConnect)
	mux.HandleFunc("POST /device/disconnect", s.handleDeviceDisconnect)
	mux.HandleFunc("GET /device/status", s.handleDeviceStatus)
	mux.HandleFunc("GET /device/battery", s.handleDeviceBattery)

	mux.HandleFunc("POST /stream/init", s.handleStreamInit)
	mux.HandleFunc("POST /stream/start", s.handleStreamStart)
	mux.HandleFunc("POST /stream/stop", s.handleStreamStop)
	mux.HandleFunc("GET /stream/status", s.handleStreamStatus)
	mux.HandleFunc("GET /stream/auto-status", s.handleStreamAutoStatus)

	mux.HandleFunc("POST /data/start-recording", s.handleStartRecording)
	mux.HandleFunc("POST /data/stop-recording", s.handleStopRecording)
	mux.HandleFunc("GET /data/recording-status", s.handleRecordingStatus)
	mux.HandleFunc("GET /data/sessions", s.handleSessions)
	mux.HandleFunc("GET /data/sessions/{name}", s.handleSessionGet)
	mux.HandleFunc("GET /data/sessions/{name}/files", s.handleSessionFiles)
	mux.HandleFunc("POST /data/sessions/{name}/prepare-export", s.handlePrepareExport)

	if s.wsHandler != nil {
		mux.Handle("/ws", s.wsHandler)
	}

	return s.withLogging(mux)
}

// Start serves HTTP on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Mux(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: longHandlerTimeout,
	}
	s.logger.WithField("addr", addr).Info("httpapi: listening")
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.WithField("method", r.Method).WithField("path", r.URL.Path).
			WithField("duration", time.Since(start)).Debug("httpapi: request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, data any) {
	body := map[string]any{"success": true}
	if data != nil {
		body["data"] = data
	}
	writeJSON(w, http.StatusOK, body)
}

func writeError(w http.ResponseWriter, status int, errorCode, message string) {
	writeJSON(w, status, map[string]any{
		"success":    false,
		"error_code": errorCode,
		"message":    message,
	})
}

func handlerContext(r *http.Request, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), timeout)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"name": "linkband-server", "version": s.Version})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"uptime_seconds":  int64(time.Since(s.startedAt).Seconds()),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		writeError(w, http.StatusServiceUnavailable, "monitoring.unavailable", "monitoring not configured")
		return
	}
	snap := s.metrics.Snapshot()
	snap["timestamp"] = time.Now().UnixMilli()
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleDeviceScan(w http.ResponseWriter, r *http.Request) {
	if s.device == nil {
		writeError(w, http.StatusServiceUnavailable, "device.unavailable", "device link not configured")
		return
	}

	duration := 10 * time.Second
	if d := r.URL.Query().Get("duration"); d != "" {
		if secs, err := strconv.Atoi(d); err == nil && secs > 0 {
			duration = time.Duration(secs) * time.Second
		}
	}

	ctx, cancel := handlerContext(r, longHandlerTimeout)
	defer cancel()

	devices, err := s.device.Scan(ctx, duration)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "device.scan_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices})
}

func (s *Server) handleDeviceList(w http.ResponseWriter, r *http.Request) {
	if s.device == nil {
		writeError(w, http.StatusServiceUnavailable, "device.unavailable", "device link not configured")
		return
	}
	devices, err := s.device.ListDevices()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "device.list_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": devices})
}

func (s *Server) handleDeviceRegister(w http.ResponseWriter, r *http.Request) {
	if s.device == nil {
		writeError(w, http.StatusServiceUnavailable, "device.unavailable", "device link not configured")
		return
	}

	var req struct {
		Name    string `json:"name"`
		Address string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Address == "" {
		writeError(w, http.StatusBadRequest, "device.invalid_request", "name and address are required")
		return
	}

	if err := s.device.RegisterDevice(req.Address, req.Name, req.Address); err != nil {
		writeError(w, http.StatusInternalServerError, "device.register_failed", err.Error())
		return
	}
	writeSuccess(w, nil)
}

func (s *Server) handleDeviceConnect(w http.ResponseWriter, r *http.Request) {
	if s.device == nil {
		writeError(w, http.StatusServiceUnavailable, "device.unavailable", "device link not configured")
		return
	}

	var req struct {
		Address string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Address == "" {
		writeError(w, http.StatusBadRequest, "device.invalid_request", "address is required")
		return
	}

	ctx, cancel := handlerContext(r, defaultHandlerTimeout)
	defer cancel()

	if err := s.device.Connect(ctx, req.Address); err != nil {
		writeError(w, http.StatusInternalServerError, "device.connect_failed", err.Error())
		return
	}
	writeSuccess(w, nil)
}

func (s *Server) handleDeviceDisconnect(w http.ResponseWriter, r *http.Request) {
	if s.device == nil {
		writeError(w, http.StatusServiceUnavailable, "device.unavailable", "device link not configured")
		return
	}
	ctx, cancel := handlerContext(r, defaultHandlerTimeout)
	defer cancel()

	if err := s.device.Disconnect(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "device.disconnect_failed", err.Error())
		return
	}
	writeSuccess(w, nil)
}

func (s *Server) handleDeviceStatus(w http.ResponseWriter, r *http.Request) {
	if s.device == nil {
		writeError(w, http.StatusServiceUnavailable, "device.unavailable", "device link not configured")
		return
	}
	writeJSON(w, http.StatusOK, s.device.Status())
}

func (s *Server) handleDeviceBattery(w http.ResponseWriter, r *http.Request) {
	if s.device == nil {
		writeError(w, http.StatusServiceUnavailable, "device.unavailable", "device link not configured")
		return
	}
	level, ok := s.device.Battery()
	if !ok {
		writeError(w, http.StatusNotFound, "device.battery_unavailable", "no battery reading yet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"level": level}})
}

func (s *Server) handleStreamInit(w http.ResponseWriter, r *http.Request) {
	if s.stream == nil {
		writeError(w, http.StatusServiceUnavailable, "stream.unavailable", "streaming not configured")
		return
	}
	ctx, cancel := handlerContext(r, defaultHandlerTimeout)
	defer cancel()
	if err := s.stream.Init(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "stream.init_failed", err.Error())
		return
	}
	writeSuccess(w, nil)
}

func (s *Server) handleStreamStart(w http.ResponseWriter, r *http.Request) {
	if s.stream == nil {
		writeError(w, http.StatusServiceUnavailable, "stream.unavailable", "streaming not configured")
		return
	}
	ctx, cancel := handlerContext(r, defaultHandlerTimeout)
	defer cancel()
	if err := s.stream.Start(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "stream.start_failed", err.Error())
		return
	}
	writeSuccess(w, nil)
}

func (s *Server) handleStreamStop(w http.ResponseWriter, r *http.Request) {
	if s.stream == nil {
		writeError(w, http.StatusServiceUnavailable, "stream.unavailable", "streaming not configured")
		return
	}
	ctx, cancel := handlerContext(r, defaultHandlerTimeout)
	defer cancel()
	if err := s.stream.Stop(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "stream.stop_failed", err.Error())
		return
	}
	writeSuccess(w, nil)
}

func (s *Server) handleStreamStatus(w http.ResponseWriter, r *http.Request) {
	if s.stream == nil {
		writeError(w, http.StatusServiceUnavailable, "stream.unavailable", "streaming not configured")
		return
	}
	status := s.stream.Status()
	if s.clientCount != nil {
		status.ClientsConnected = s.clientCount()
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleStreamAutoStatus(w http.ResponseWriter, r *http.Request) {
	if s.stream == nil {
		writeError(w, http.StatusServiceUnavailable, "stream.unavailable", "streaming not configured")
		return
	}
	writeJSON(w, http.StatusOK, s.stream.AutoStatus())
}

func (s *Server) handleStartRecording(w http.ResponseWriter, r *http.Request) {
	if s.recording == nil {
		writeError(w, http.StatusServiceUnavailable, "recording.unavailable", "recorder not configured")
		return
	}

	var req struct {
		SessionName string `json:"session_name,omitempty"`
		Settings    struct {
			DataFormat string `json:"data_format,omitempty"`
			ExportPath string `json:"export_path,omitempty"`
		} `json:"settings,omitempty"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "recording.invalid_request", err.Error())
			return
		}
	}

	sess, err := s.recording.Start(req.SessionName, req.Settings.DataFormat, req.Settings.ExportPath)
	if err != nil {
		writeError(w, http.StatusConflict, "recording.already_active", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":   sess.SessionID,
		"session_name": sess.SessionName,
		"start_time":   sess.StartTime,
		"data_format":  sess.DataFormat,
	})
}

func (s *Server) handleStopRecording(w http.ResponseWriter, r *http.Request) {
	if s.recording == nil {
		writeError(w, http.StatusServiceUnavailable, "recording.unavailable", "recorder not configured")
		return
	}

	sess, err := s.recording.Stop()
	if err != nil {
		writeError(w, http.StatusConflict, "recording.not_active", err.Error())
		return
	}

	var end any
	if sess.EndTime != nil {
		end = *sess.EndTime
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": sess.SessionID, "end_time": end})
}

func (s *Server) handleRecordingStatus(w http.ResponseWriter, r *http.Request) {
	if s.recording == nil {
		writeError(w, http.StatusServiceUnavailable, "recording.unavailable", "recorder not configured")
		return
	}

	sess, active := s.recording.Status()
	if !active {
		writeJSON(w, http.StatusOK, map[string]any{"is_recording": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"is_recording":    true,
		"current_session": sess.SessionName,
		"start_time":      sess.StartTime,
	})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if s.recording == nil {
		writeError(w, http.StatusServiceUnavailable, "recording.unavailable", "recorder not configured")
		return
	}
	sessions, err := s.recording.Sessions()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "recording.list_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *Server) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	if s.recording == nil {
		writeError(w, http.StatusServiceUnavailable, "recording.unavailable", "recorder not configured")
		return
	}
	name := r.PathValue("name")
	sess, err := s.recording.Session(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "recording.session_not_found", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleSessionFiles(w http.ResponseWriter, r *http.Request) {
	if s.recording == nil {
		writeError(w, http.StatusServiceUnavailable, "recording.unavailable", "recorder not configured")
		return
	}
	name := r.PathValue("name")
	files, err := s.recording.Files(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "recording.session_not_found", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

func (s *Server) handlePrepareExport(w http.ResponseWriter, r *http.Request) {
	if s.recording == nil {
		writeError(w, http.StatusServiceUnavailable, "recording.unavailable", "recorder not configured")
		return
	}
	name := r.PathValue("name")

	ctx, cancel := handlerContext(r, longHandlerTimeout)
	defer cancel()

	url, err := s.recording.PrepareExport(ctx, name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "recording.export_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"download_url": url})
}
