// internal/domain/metrics/dto.go
package metrics

import "time"

// ActivityEvent is one row of the merged cross-tool activity feed.
type ActivityEvent struct {
	ID           string         `json:"id"`
	Source       Category       `json:"source"`
	Title        string         `json:"title"`
	DocumentType string         `json:"document_type"`
	UserID       string         `json:"user_id,omitempty"`
	UserEmail    string         `json:"user_email"`
	UserName     string         `json:"user_name,omitempty"`
	AvatarURL    string         `json:"avatar_url,omitempty"`
	OccurredAt   time.Time      `json:"occurred_at"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// UserRollup aggregates the feed per user, most recent first.
type UserRollup struct {
	Email          string    `json:"email"`
	Name           string    `json:"name,omitempty"`
	AvatarURL      string    `json:"avatar_url,omitempty"`
	DoceaseCount   int       `json:"docease_count"`
	SignatureCount int       `json:"signature_count"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// ActivityFilter narrows the merged feed.
type ActivityFilter struct {
	Source    Category `json:"source,omitempty"` // empty means all sources
	UserEmail string   `json:"user_email,omitempty"`
	Search    string   `json:"search,omitempty"`
}

// ActivityFeed is the feed plus its per-user rollups.
type ActivityFeed struct {
	Events  []ActivityEvent `json:"events"`
	Users   []UserRollup    `json:"users"`
	Total   int             `json:"total"`
	Partial bool            `json:"partial"`
}

// signease action types and their display labels.
const (
	ActionDocumentSent     = "document_sent"
	ActionDocumentSigned   = "document_signed"
	ActionDocumentRejected = "document_rejected"
	ActionDocumentCreated  = "document_created"
)

var actionLabels = map[string]string{
	ActionDocumentSent:     "Sent for signature",
	ActionDocumentSigned:   "Document signed",
	ActionDocumentRejected: "Document rejected",
	ActionDocumentCreated:  "Draft created",
}

// ActionLabel maps a signease action type to its display label, falling
// back to the raw action name.
func ActionLabel(action string) string {
	if l, ok := actionLabels[action]; ok {
		return l
	}
	return action
}
