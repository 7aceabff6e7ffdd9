// internal/domain/websocket/types.go
package websocket

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType represents different real-time event types
type EventType string

const (
	// Connection events
	EventTypePing         EventType = "ping"
	EventTypePong         EventType = "pong"
	EventTypeConnected    EventType = "connected"
	EventTypeDisconnected EventType = "disconnected"
	EventTypeError        EventType = "error"

	// Presence events (server -> client)
	EventTypePresenceChanged EventType = "presence:changed"

	// Metrics events (server -> client)
	EventTypeMetricsInvalidated EventType = "metrics:invalidated"
	EventTypeMetricsSnapshot    EventType = "metrics:snapshot"

	// System events
	EventTypeSystemAlert EventType = "system:alert"

	// Subscription events
	EventTypeSubscribe   EventType = "subscribe"
	EventTypeUnsubscribe EventType = "unsubscribe"
)

// WSMessage is the universal message format
type WSMessage struct {
	Type      EventType              `json:"type"`
	Data      interface{}            `json:"data,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	ID        string                 `json:"id,omitempty"`
}

// Subscription channels that clients can subscribe to
type ChannelType string

const (
	ChannelPresence ChannelType = "presence"
	ChannelMetrics  ChannelType = "metrics"
	ChannelSystem   ChannelType = "system"
)

// SubscribeRequest sent by client to subscribe to specific channels
type SubscribeRequest struct {
	Channels []ChannelType `json:"channels"`
}

// UnsubscribeRequest sent by client to unsubscribe from channels
type UnsubscribeRequest struct {
	Channels []ChannelType `json:"channels"`
}

// ErrorData for error events
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// PresenceChangeData tells subscribed dashboards to refetch the active list
type PresenceChangeData struct {
	Reason string `json:"reason"` // started, heartbeat, away, stopped
}

// InvalidationData announces that an event source changed
type InvalidationData struct {
	Category string `json:"category"`
}

// SystemAlertData for system-wide alerts
type SystemAlertData struct {
	Severity  string `json:"severity"` // info, warning, critical
	Title     string `json:"title"`
	Message   string `json:"message"`
	ActionURL string `json:"action_url,omitempty"`
}

// Helper to create messages
func NewMessage(eventType EventType, data interface{}) *WSMessage {
	return &WSMessage{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
		ID:        generateMessageID(),
	}
}

func (m *WSMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ParseMessage(data []byte) (*WSMessage, error) {
	var msg WSMessage
	err := json.Unmarshal(data, &msg)
	return &msg, err
}

func generateMessageID() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}
