package engine

import "github.com/linkband-io/linkband-server/internal/device"

// lifecycleEvent is one bus envelope derived from a device.Link transition.
type lifecycleEvent struct {
	Topic   string
	Payload any
}

// linkLifecycleEvents maps one Link state transition to the event.<name>
// envelopes it publishes: device.scanning/connected/disconnected and
// stream.started/stopped ride the same state machine, since the link
// enters Streaming as part of Connect and leaves it as part of Disconnect.
func linkLifecycleEvents(sc device.StateChange) []lifecycleEvent {
	switch sc.To {
	case device.LinkScanning:
		return []lifecycleEvent{{"event.device.scanning", map[string]any{}}}

	case device.LinkConnected:
		return []lifecycleEvent{{"event.device.connected", map[string]any{}}}

	case device.LinkStreaming:
		return []lifecycleEvent{{"event.stream.started", map[string]any{}}}

	case device.LinkError:
		if sc.Reason == nil {
			return nil
		}
		return []lifecycleEvent{{"event.error.device_timeout", map[string]any{"error": sc.Reason.Error()}}}

	case device.LinkDisconnecting:
		payload := map[string]any{}
		if sc.Reason != nil {
			payload["reason"] = sc.Reason.Error()
		}
		events := []lifecycleEvent{{"event.device.disconnected", payload}}
		if sc.From == device.LinkStreaming {
			events = append(events, lifecycleEvent{"event.stream.stopped", map[string]any{}})
		}
		return events

	default:
		return nil
	}
}
