package engine

import (
	"encoding/json"

	"github.com/linkband-io/linkband-server/internal/monitoring"
)

// metricsAPI adapts monitoring.Monitor's last snapshot to httpapi.MetricsAPI,
// which deals in map[string]any so it never imports the monitoring package.
type metricsAPI struct {
	monitor *monitoring.Monitor
}

func newMetricsAPI(m *monitoring.Monitor) *metricsAPI {
	return &metricsAPI{monitor: m}
}

func (a *metricsAPI) Snapshot() map[string]any {
	snap := a.monitor.LastSnapshot()

	raw, err := json.Marshal(snap)
	if err != nil {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{}
	}
	return out
}
