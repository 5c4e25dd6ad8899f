package engine

import (
	"context"
	"fmt"

	"github.com/linkband-io/linkband-server/internal/device"
	"github.com/linkband-io/linkband-server/internal/httpapi"
	"github.com/linkband-io/linkband-server/internal/router"
)

// streamAPI adapts the device link's connect-implies-stream state machine
// to the httpapi.StreamAPI surface. The Link enters Streaming as soon as a
// connection's notifications are enabled (link.go's Connected->Streaming
// transition), so Init/Start are readiness checks rather than separate
// actions, and Stop maps to an explicit Disconnect.
type streamAPI struct {
	link    *device.Link
	router  *router.Router
	sensors []device.SensorKind
}

func newStreamAPI(link *device.Link, r *router.Router, sensors []device.SensorKind) *streamAPI {
	return &streamAPI{link: link, router: r, sensors: sensors}
}

func (s *streamAPI) Init(ctx context.Context) error {
	if s.link.State() == device.LinkIdle {
		return fmt.Errorf("stream.not_ready: no device connected")
	}
	return nil
}

func (s *streamAPI) Start(ctx context.Context) error {
	state := s.link.State()
	if state == device.LinkStreaming {
		return nil
	}
	return fmt.Errorf("stream.not_ready: link in state %s", state)
}

func (s *streamAPI) Stop(ctx context.Context) error {
	return s.link.Disconnect()
}

func (s *streamAPI) Status() httpapi.StreamStatusView {
	state := s.link.State()
	streaming := state == device.LinkStreaming

	var rate float64
	for _, kind := range s.sensors {
		rate += s.router.RateHz(kind)
	}

	return httpapi.StreamStatusView{
		IsRunning:   state != device.LinkIdle,
		IsStreaming: streaming,
		DataRate:    &rate,
	}
}

func (s *streamAPI) AutoStatus() httpapi.AutoStreamStatusView {
	active := []string{}
	allHealthy := len(s.sensors) > 0

	for _, kind := range s.sensors {
		nominal := kind.NominalRateHz()
		if nominal <= 0 {
			continue
		}
		hz := s.router.RateHz(kind)
		if hz >= nominal*streamActiveFraction {
			active = append(active, string(kind))
		} else {
			allHealthy = false
		}
	}

	return httpapi.AutoStreamStatusView{
		IsStreaming:   s.link.State() == device.LinkStreaming,
		IsActive:      allHealthy,
		ActiveSensors: active,
		AutoDetected:  true,
	}
}

// streamActiveFraction matches C8's rate-health threshold: a sensor counts
// as actively streaming once its EWMA rate reaches half its nominal rate.
const streamActiveFraction = 0.5
