package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/camcap/internal/events"
)

// eventTypes maps SSE event names to payloads.
var eventTypes = map[string]any{
	"device":           events.DeviceEvent{},
	"stream-state":     events.StreamStateEvent{},
	"format-changed":   events.FormatChangedEvent{},
	"control-changed":  events.ControlChangedEvent{},
	"frame-captured":   events.FrameCapturedEvent{},
	"operation-failed": events.OperationFailedEvent{},
}

// registerSSERoutes registers the event stream.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time stream of device changes, stream state, format and control changes, frames and failures",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, eventTypes, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)
		unsubscribe := events.SubscribeAll(s.options.Bus, eventCh)
		defer unsubscribe()

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
