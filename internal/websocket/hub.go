package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	"custos/internal/infrastructure"
)

// broadcastBuffer bounds queued events while the hub loop is busy
const broadcastBuffer = 256

type envelope struct {
	eventType string
	payload   []byte
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	clients map[*Client]struct{}
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan envelope
	done       chan struct{}

	logger  *slog.Logger
	metrics *hubMetrics
	now     func() time.Time
}

// NewHub creates a hub. A nil meter disables metrics.
func NewHub(logger *slog.Logger, meter metric.Meter) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	logger = logger.With(slog.String("component", "websocket.hub"))

	metrics, err := newHubMetrics(meter)
	if err != nil {
		logger.Warn("WebSocket metrics disabled", slog.String("error", err.Error()))
		metrics, _ = newHubMetrics(nil)
	}

	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan envelope, broadcastBuffer),
		done:       make(chan struct{}),
		logger:     logger,
		metrics:    metrics,
		now:        time.Now,
	}
}

// Run owns the client set until ctx is cancelled, then disconnects every client
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("Hub shutting down")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			count := len(h.clients)
			h.mu.Unlock()

			h.metrics.recordConnection(client.ctx())
			h.logger.InfoContext(client.ctx(), "Client registered",
				slog.Int("total_clients", count),
				slog.String("client_id", client.id),
				slog.String("remote_addr", client.remoteAddr))

			h.sendTo(client, Message{
				Type: TypeConnection,
				Data: map[string]interface{}{
					"status":    "connected",
					"client_id": client.id,
				},
				Timestamp: h.now().UTC(),
				TraceID:   client.traceID,
			})

		case client := <-h.unregister:
			if h.remove(client) {
				h.metrics.recordDisconnection(client.ctx(), time.Since(client.connectedAt))
				h.logger.InfoContext(client.ctx(), "Client unregistered",
					slog.Int("total_clients", h.ClientCount()),
					slog.String("client_id", client.id),
					slog.Duration("connection_duration", time.Since(client.connectedAt)))
			}

		case env := <-h.broadcast:
			h.fanOut(ctx, env)
		}
	}
}

func (h *Hub) fanOut(ctx context.Context, env envelope) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	delivered, dropped := 0, 0
	for _, client := range clients {
		select {
		case client.send <- env.payload:
			delivered++
		default:
			// A client that cannot keep up is disconnected
			dropped++
			h.remove(client)
			h.logger.WarnContext(client.ctx(), "Client send buffer full, disconnecting",
				slog.String("client_id", client.id))
		}
	}

	h.metrics.recordBroadcast(ctx, env.eventType, delivered, dropped)
	h.logger.Debug("Broadcast event",
		slog.String("event_type", env.eventType),
		slog.Int("delivered", delivered),
		slog.Int("dropped", dropped))
}

func (h *Hub) sendTo(client *Client, msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Error marshaling message", slog.String("error", err.Error()))
		return
	}
	select {
	case client.send <- payload:
	default:
		h.logger.Warn("Failed to send connection message, client buffer full",
			slog.String("client_id", client.id))
	}
}

// remove drops a client and closes its send channel exactly once
func (h *Hub) remove(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return false
	}
	delete(h.clients, client)
	close(client.send)
	return true
}

func (h *Hub) shutdown() {
	close(h.done)

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

// Broadcast queues an event for every connected client. It never blocks: when
// the hub is stopped or the queue is full the event is dropped.
func (h *Hub) Broadcast(ctx context.Context, eventType string, data interface{}) {
	payload, err := json.Marshal(Message{
		Type:      eventType,
		Data:      data,
		Timestamp: h.now().UTC(),
		TraceID:   infrastructure.GetTraceID(ctx),
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "Error marshaling message",
			slog.String("error", err.Error()),
			slog.String("message_type", eventType))
		return
	}

	select {
	case <-h.done:
		return
	default:
	}

	select {
	case h.broadcast <- envelope{eventType: eventType, payload: payload}:
	default:
		h.metrics.recordBroadcast(ctx, eventType, 0, 1)
		h.logger.WarnContext(ctx, "Broadcast queue full, event dropped",
			slog.String("message_type", eventType))
	}
}

// Register adds a client. It returns false when the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client; safe to call after the hub has stopped
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
