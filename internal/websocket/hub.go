// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/labnotify/internal/logging"
	"github.com/tomtom215/labnotify/internal/metrics"
	"github.com/tomtom215/labnotify/internal/models"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful shutdown path.
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline may indicate a hung operation during shutdown.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message types pushed to local subscribers
const (
	MessageTypeNotification     = "notification"
	MessageTypeConnectionStatus = "connection_status"
	MessageTypeResultUpdated    = "result_updated"
	MessageTypeAcknowledged     = "result_acknowledged"
	MessageTypeUnreadCount      = "unread_count"
	MessageTypePing             = "ping"
	MessageTypePong             = "pong"
)

// Message represents a WebSocket message
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// AcknowledgedData is sent with result_acknowledged messages.
type AcknowledgedData struct {
	ResultID string `json:"resultId"`
}

// UnreadCountData is sent with unread_count messages.
type UnreadCountData struct {
	Unread int `json:"unread"`
}

// Hub maintains the set of local subscribers and broadcasts notifications,
// result changes and connection status to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex

	// lastStatus is replayed to every new subscriber so the badge is
	// correct before the next transition.
	statusMu   sync.RWMutex
	lastStatus *models.ConnectionState
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
	}
}

// RunWithContext runs the hub until ctx is canceled. All subscribers are
// closed before it returns ctx.Err().
//
// Client lifecycle events are handled before broadcasts so a subscriber
// registered before a broadcast always receives it.
func (h *Hub) RunWithContext(ctx context.Context) error {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.addClient(client)
		case client := <-h.Unregister:
			h.removeClient(client)
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

// Subscribe registers conn as a subscriber and starts its pumps. It
// returns false and closes conn when the hub has stopped.
func (h *Hub) Subscribe(conn *websocket.Conn) bool {
	client := NewClient(h, conn)
	select {
	case h.Register <- client:
		client.Start()
		return true
	case <-h.done:
		_ = conn.Close()
		return false
	}
}

// Done is closed when RunWithContext returns.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(total))
	logging.Info().Str("component", "websocket-hub").Int("total_clients", total).Msg("websocket client connected")

	if state, ok := h.LastStatus(); ok {
		select {
		case client.send <- Message{Type: MessageTypeConnectionStatus, Data: state}:
		default:
		}
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(total))
	logging.Info().Str("component", "websocket-hub").Int("total_clients", total).Msg("websocket client disconnected")
}

// logGracefulShutdown closes all clients and logs the shutdown. ctx.Err()
// is not logged as an error since cancellation is the expected path.
func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.GetClientCount()
	h.closeAllClients()

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return ShutdownReasonContextDeadline
	default:
		return ShutdownReasonContextCanceled
	}
}

// sortedClients returns the clients in id order. Caller holds h.mu.
func (h *Hub) sortedClients() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	return clients
}

// broadcastToClients sends a message to all clients in id order. Clients
// whose send buffer is full are dropped.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var toRemove []*Client
	for _, client := range h.sortedClients() {
		select {
		case client.send <- message:
			metrics.WSMessagesSent.Inc()
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
		metrics.WSErrors.WithLabelValues("slow_consumer").Inc()
		logging.Warn().Str("component", "websocket-hub").Uint64("client_id", client.id).Msg("dropping slow websocket client")
	}
	metrics.WSConnections.Set(float64(len(h.clients)))
}

// closeAllClients closes all subscribers in id order.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.sortedClients() {
		close(client.send)
		delete(h.clients, client)
	}
	metrics.WSConnections.Set(0)
}

// BroadcastJSON queues a message for all subscribers. It never blocks; the
// message is dropped when the queue is full.
func (h *Hub) BroadcastJSON(messageType string, data interface{}) {
	select {
	case h.broadcast <- Message{Type: messageType, Data: data}:
	default:
		metrics.WSErrors.WithLabelValues("queue_full").Inc()
		logging.Warn().Str("component", "websocket-hub").Str("message_type", messageType).Msg("broadcast channel full, dropping message")
	}
}

// BroadcastNotification pushes a popup alert.
func (h *Hub) BroadcastNotification(n models.Notification) {
	h.BroadcastJSON(MessageTypeNotification, n)
}

// Alert implements feed.Alerter.
func (h *Hub) Alert(n models.Notification) {
	h.BroadcastNotification(n)
}

// BroadcastConnectionStatus pushes a connection badge update and remembers
// it for subscribers that connect later.
func (h *Hub) BroadcastConnectionStatus(state models.ConnectionState) {
	h.statusMu.Lock()
	h.lastStatus = &state
	h.statusMu.Unlock()

	h.BroadcastJSON(MessageTypeConnectionStatus, state)
}

// LastStatus returns the most recent connection state broadcast.
func (h *Hub) LastStatus() (models.ConnectionState, bool) {
	h.statusMu.RLock()
	defer h.statusMu.RUnlock()
	if h.lastStatus == nil {
		return models.ConnectionState{}, false
	}
	return *h.lastStatus, true
}

// BroadcastResult pushes a created or updated result.
func (h *Hub) BroadcastResult(r models.LabResult) {
	h.BroadcastJSON(MessageTypeResultUpdated, r)
}

// BroadcastAcknowledged pushes a server-confirmed acknowledgement.
func (h *Hub) BroadcastAcknowledged(resultID string) {
	h.BroadcastJSON(MessageTypeAcknowledged, AcknowledgedData{ResultID: resultID})
}

// BroadcastUnreadCount pushes the unread notification count.
func (h *Hub) BroadcastUnreadCount(unread int) {
	h.BroadcastJSON(MessageTypeUnreadCount, UnreadCountData{Unread: unread})
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// MarshalMessage converts a message to JSON
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
