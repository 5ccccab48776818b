// Package server provides the HTTP server and routing for Metron.
package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/aristath/metron/internal/events"
)

const (
	// Per-message write deadline
	wsWriteWait = 10 * time.Second

	// Keep-alive interval for idle connections
	wsHeartbeat = 30 * time.Second
)

// EventsWSHandler streams bus events to websocket clients. Each
// connection gets its own buffered channel, so a slow client drops its
// own events instead of stalling a pipeline run.
type EventsWSHandler struct {
	eventBus *events.Bus
	log      zerolog.Logger
}

// NewEventsWSHandler creates a new websocket events handler
func NewEventsWSHandler(eventBus *events.Bus, log zerolog.Logger) *EventsWSHandler {
	return &EventsWSHandler{
		eventBus: eventBus,
		log:      log.With().Str("component", "events_ws").Logger(),
	}
}

// ServeHTTP handles GET /api/events/ws requests.
// An optional ?types=run_completed,job_failed query narrows the stream
// to the listed event types; without it every event is forwarded.
func (h *EventsWSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	typesFilter := r.URL.Query().Get("types")

	var allowedTypes map[events.EventType]bool
	if typesFilter != "" {
		allowedTypes = make(map[events.EventType]bool)
		for _, t := range strings.Split(typesFilter, ",") {
			allowedTypes[events.EventType(strings.TrimSpace(t))] = true
		}
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	h.log.Info().
		Str("types_filter", typesFilter).
		Msg("Client connected to event stream")

	// Buffer to prevent blocking the publisher; full buffer drops
	eventChan := make(chan *events.Event, 100)

	subID := h.eventBus.SubscribeAll(func(event *events.Event) {
		if allowedTypes != nil && !allowedTypes[event.Type] {
			return
		}

		select {
		case eventChan <- event:
		default:
			h.log.Warn().
				Str("event_type", string(event.Type)).
				Msg("Event channel full, dropping event")
		}
	})
	defer h.eventBus.Unsubscribe(subID)

	// We never expect client messages. CloseRead keeps reading control
	// frames and cancels the context when the client goes away.
	ctx := conn.CloseRead(r.Context())

	if err := h.write(ctx, conn, map[string]interface{}{
		"type":    "connected",
		"message": "Connected to event stream",
	}); err != nil {
		return
	}

	heartbeat := time.NewTicker(wsHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info().Msg("Client disconnected from event stream")
			conn.Close(websocket.StatusNormalClosure, "")
			return

		case event := <-eventChan:
			h.log.Debug().
				Str("event_type", string(event.Type)).
				Msg("Sending event to client")

			payload := map[string]interface{}{
				"type":      string(event.Type),
				"module":    event.Module,
				"timestamp": event.Timestamp.Format(time.RFC3339),
				"data":      event.Data,
			}
			if err := h.write(ctx, conn, payload); err != nil {
				h.log.Debug().Err(err).Msg("Event stream write failed")
				return
			}

		case <-heartbeat.C:
			payload := map[string]interface{}{
				"type":      "heartbeat",
				"timestamp": time.Now().Format(time.RFC3339),
			}
			if err := h.write(ctx, conn, payload); err != nil {
				return
			}
		}
	}
}

// write sends one JSON message with a bounded deadline
func (h *EventsWSHandler) write(ctx context.Context, conn *websocket.Conn, payload map[string]interface{}) error {
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteWait)
	defer cancel()

	return wsjson.Write(writeCtx, conn, payload)
}
