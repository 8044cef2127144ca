package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/onnwee/homelayout/internal/middleware"
)

// EventSubscriber is the subset of *widget.EventBroadcaster the handler uses.
type EventSubscriber interface {
	Subscribe(conn *websocket.Conn)
	Unsubscribe(conn *websocket.Conn)
}

// EventHandlers streams layout events to dashboards over WebSocket.
type EventHandlers struct {
	events   EventSubscriber
	upgrader websocket.Upgrader
}

// NewEventHandlers creates a new EventHandlers instance.
// A nil checkOrigin keeps the upgrader's same-host rule, which refuses
// pages served from any other origin.
func NewEventHandlers(events EventSubscriber, checkOrigin func(r *http.Request) bool) *EventHandlers {
	return &EventHandlers{
		events: events,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// Stream handles GET /widgets/events.
// The connection receives every layout event until the client disconnects.
func (h *EventHandlers) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.ErrorContext(ctx, "failed to upgrade websocket connection", "error", err)
		return
	}

	// Hijacked connections keep the server's read deadline.
	_ = conn.SetReadDeadline(time.Time{})

	h.events.Subscribe(conn)
	requestID := middleware.GetRequestID(ctx)
	slog.InfoContext(ctx, "websocket client subscribed to layout events", "request_id", requestID)

	defer func() {
		h.events.Unsubscribe(conn)
		conn.Close()
		slog.InfoContext(ctx, "websocket client unsubscribed", "request_id", requestID)
	}()

	// Clients never send; reading detects the disconnect.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.WarnContext(ctx, "websocket connection closed unexpectedly", "error", err)
			}
			return
		}
	}
}
