package widget

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// EventType names a layout change.
type EventType string

const (
	EventWidgetAdded   EventType = "widget.added"
	EventWidgetRemoved EventType = "widget.removed"
	EventWidgetUpdated EventType = "widget.updated"
	EventWidgetMoved   EventType = "widget.moved"
	EventPageAdded     EventType = "page.added"
	EventPageRemoved   EventType = "page.removed"
	EventPageUpdated   EventType = "page.updated"
)

// LayoutEvent describes a committed layout change.
type LayoutEvent struct {
	Type   EventType   `json:"type"`
	Widget *Record     `json:"widget,omitempty"`
	Page   *PageRecord `json:"page,omitempty"`
	At     time.Time   `json:"at"`
}

// Notifier receives layout events after they are persisted.
// Publish must not block.
type Notifier interface {
	Publish(event LayoutEvent)
}

const (
	defaultEventBuffer = 64
	writeTimeout       = 5 * time.Second
)

// EventBroadcaster fans layout events out to subscribed WebSocket connections.
// Publish queues the event; Run delivers queued events so that each
// connection only ever has a single writer.
type EventBroadcaster struct {
	mu          sync.Mutex
	connections map[*websocket.Conn]bool
	events      chan LayoutEvent
	logger      *slog.Logger
}

// NewEventBroadcaster creates a broadcaster with a bounded event queue.
func NewEventBroadcaster(logger *slog.Logger) *EventBroadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventBroadcaster{
		connections: make(map[*websocket.Conn]bool),
		events:      make(chan LayoutEvent, defaultEventBuffer),
		logger:      logger,
	}
}

// Subscribe registers a connection for every subsequent event.
func (b *EventBroadcaster) Subscribe(conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connections[conn] = true
}

// Unsubscribe removes a connection. It does not close it.
func (b *EventBroadcaster) Unsubscribe(conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.connections, conn)
}

// ConnectionCount returns the number of subscribed connections.
func (b *EventBroadcaster) ConnectionCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.connections)
}

// Publish queues an event. When the queue is full the event is dropped.
func (b *EventBroadcaster) Publish(event LayoutEvent) {
	select {
	case b.events <- event:
	default:
		b.logger.Warn("layout event queue full, dropping event", slog.String("type", string(event.Type)))
	}
}

// Run delivers queued events until ctx is cancelled.
func (b *EventBroadcaster) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-b.events:
			b.broadcast(event)
		}
	}
}

func (b *EventBroadcaster) broadcast(event LayoutEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("failed to marshal layout event", slog.String("error", err.Error()))
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for conn := range b.connections {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			b.logger.Warn("failed to send layout event, dropping subscriber",
				slog.String("type", string(event.Type)),
				slog.String("error", err.Error()))
			delete(b.connections, conn)
			_ = conn.Close()
		}
	}
}
