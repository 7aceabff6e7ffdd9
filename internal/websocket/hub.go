// internal/websocket/hub.go
package websocket

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"fedportal-service/internal/domain/metrics"
	wstypes "fedportal-service/internal/domain/websocket"
	"fedportal-service/internal/pkg/jwt"
)

type Hub struct {
	// Registered clients by user ID
	clients map[string]map[*Client]bool
	mu      sync.RWMutex

	// Registration/unregistration
	Register   chan *Client
	unregister chan *Client

	// Broadcasting
	broadcast chan *BroadcastMessage

	jwtVerifier *jwt.Verifier
	logger      *zap.Logger
}

type BroadcastMessage struct {
	UserIDs []string
	Channel wstypes.ChannelType
	Message *wstypes.WSMessage
}

func NewHub(jwtVerifier *jwt.Verifier, logger *zap.Logger) *Hub {
	return &Hub{
		clients:     make(map[string]map[*Client]bool),
		Register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *BroadcastMessage, 256),
		jwtVerifier: jwtVerifier,
		logger:      logger,
	}
}

// AuthenticateClient validates the token and produces the connection's
// principal.
func (h *Hub) AuthenticateClient(ctx context.Context, token string) (*ClientAuth, error) {
	claims, err := h.jwtVerifier.Verify(token)
	if err != nil {
		return nil, ErrInvalidToken
	}

	principal, err := claims.Principal()
	if err != nil {
		return nil, ErrUnauthorized
	}

	return &ClientAuth{
		Principal: principal,
		TokenID:   claims.ID,
	}, nil
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			h.BroadcastMessage(msg)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.principal.ID] == nil {
		h.clients[client.principal.ID] = make(map[*Client]bool)
	}
	h.clients[client.principal.ID][client] = true

	h.logger.Info("websocket client connected",
		zap.String("user", client.principal.Email),
		zap.Int("total", h.totalClients()))

	client.SendMessage(wstypes.NewMessage(wstypes.EventTypeConnected, map[string]interface{}{
		"user_id": client.principal.ID,
		"email":   client.principal.Email,
		"role":    client.principal.Role,
	}))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[client.principal.ID]; ok {
		if _, exists := clients[client]; exists {
			delete(clients, client)
			client.Close()

			if len(clients) == 0 {
				delete(h.clients, client.principal.ID)
			}

			h.logger.Info("websocket client disconnected",
				zap.String("user", client.principal.Email),
				zap.Int("total", h.totalClients()))
		}
	}
}

func (h *Hub) BroadcastMessage(msg *BroadcastMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if msg.UserIDs == nil {
		// Broadcast to all
		for _, clients := range h.clients {
			for client := range clients {
				if client.IsSubscribed(msg.Channel) {
					client.SendMessage(msg.Message)
				}
			}
		}
	} else {
		// Broadcast to specific users
		for _, userID := range msg.UserIDs {
			if clients, ok := h.clients[userID]; ok {
				for client := range clients {
					if client.IsSubscribed(msg.Channel) {
						client.SendMessage(msg.Message)
					}
				}
			}
		}
	}
}

func (h *Hub) TotalClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalClients()
}

// Public methods for broadcasting

// BroadcastPresenceChanged tells subscribed dashboards the active list
// changed so they refetch it.
func (h *Hub) BroadcastPresenceChanged(reason string) {
	msg := wstypes.NewMessage(wstypes.EventTypePresenceChanged, wstypes.PresenceChangeData{
		Reason: reason,
	})
	h.enqueue(&BroadcastMessage{
		UserIDs: nil,
		Channel: wstypes.ChannelPresence,
		Message: msg,
	})
}

// BroadcastInvalidation announces a raw change signal before the debounced
// recompute lands.
func (h *Hub) BroadcastInvalidation(category metrics.Category) {
	msg := wstypes.NewMessage(wstypes.EventTypeMetricsInvalidated, wstypes.InvalidationData{
		Category: string(category),
	})
	h.enqueue(&BroadcastMessage{
		UserIDs: nil,
		Channel: wstypes.ChannelMetrics,
		Message: msg,
	})
}

// SnapshotUpdated pushes a freshly recomputed snapshot to metrics
// subscribers. Only unrestricted snapshots reach this path and the metrics
// channel is gated at subscribe time, so no per-user filtering is needed.
func (h *Hub) SnapshotUpdated(snap *metrics.Snapshot) {
	msg := wstypes.NewMessage(wstypes.EventTypeMetricsSnapshot, snap)
	h.enqueue(&BroadcastMessage{
		UserIDs: nil,
		Channel: wstypes.ChannelMetrics,
		Message: msg,
	})
}

func (h *Hub) BroadcastSystemAlert(alert *wstypes.SystemAlertData) {
	msg := wstypes.NewMessage(wstypes.EventTypeSystemAlert, alert)
	h.enqueue(&BroadcastMessage{
		UserIDs: nil,
		Channel: wstypes.ChannelSystem,
		Message: msg,
	})
}

// DisconnectUser forcefully disconnects all connections of a user, e.g.
// after their account is deleted.
func (h *Hub) DisconnectUser(userID string, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[userID]; ok {
		disconnectMsg := wstypes.NewMessage(wstypes.EventTypeDisconnected, map[string]interface{}{
			"reason": reason,
		})

		for client := range clients {
			client.SendMessage(disconnectMsg)
			client.Close()
		}

		delete(h.clients, userID)
		h.logger.Info("disconnected all clients",
			zap.String("user_id", userID),
			zap.String("reason", reason))
	}
}

// enqueue drops the message when the broadcast queue is saturated; push
// traffic is advisory.
func (h *Hub) enqueue(msg *BroadcastMessage) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("broadcast queue full, dropping message",
			zap.String("channel", string(msg.Channel)))
	}
}

func (h *Hub) totalClients() int {
	total := 0
	for _, clients := range h.clients {
		total += len(clients)
	}
	return total
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.clients {
		for client := range clients {
			client.Close()
		}
	}
}
