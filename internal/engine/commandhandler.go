package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/linkband-io/linkband-server/internal/wsbroker"
)

func secondsToDuration(s int) time.Duration { return time.Duration(s) * time.Second }

// newCommandHandler builds the dispatcher for client-issued WebSocket
// commands that mirror the HTTP verbs (subscribe/unsubscribe are
// intercepted by the broker itself before reaching here).
func newCommandHandler(dev *deviceAPI, stream *streamAPI, rec *recordingAPI) wsbroker.CommandHandler {
	return func(ctx context.Context, clientID string, cmd wsbroker.Command) (any, error) {
		switch cmd.Command {
		case "scan":
			var req struct {
				DurationSeconds int `json:"duration_seconds"`
			}
			if len(cmd.Payload) > 0 {
				_ = json.Unmarshal(cmd.Payload, &req)
			}
			duration := defaultScanSeconds
			if req.DurationSeconds > 0 {
				duration = req.DurationSeconds
			}
			return dev.Scan(ctx, secondsToDuration(duration))

		case "connect":
			var req struct {
				Address string `json:"address"`
			}
			if err := json.Unmarshal(cmd.Payload, &req); err != nil || req.Address == "" {
				return nil, fmt.Errorf("connect requires an address")
			}
			return nil, dev.Connect(ctx, req.Address)

		case "start_stream":
			return nil, stream.Start(ctx)

		case "stop_stream":
			return nil, stream.Stop(ctx)

		default:
			return nil, fmt.Errorf("unknown command %q", cmd.Command)
		}
	}
}

const defaultScanSeconds = 10
