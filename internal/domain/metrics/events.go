// internal/domain/metrics/events.go
package metrics

import "time"

// DoceaseEvent is one row of the document-generation log. The log keys
// authors by user id; an author email may additionally hide in metadata.
type DoceaseEvent struct {
	ID           int64          `json:"id"`
	UserID       string         `json:"user_id"`
	Title        string         `json:"title"`
	DocumentType string         `json:"document_type"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// SigneaseEvent is one row of the signature-tool activity log. This source
// keys authors by email only.
type SigneaseEvent struct {
	ID             int64          `json:"id"`
	UserEmail      string         `json:"user_email"`
	UserName       string         `json:"user_name,omitempty"`
	ActionType     string         `json:"action_type"`
	DocumentName   string         `json:"document_name,omitempty"`
	RecipientEmail string         `json:"recipient_email,omitempty"`
	RecipientName  string         `json:"recipient_name,omitempty"`
	EnvelopeID     string         `json:"envelope_id,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// SignatureEvent is one row of the legacy signature log.
type SignatureEvent struct {
	ID         int64     `json:"id"`
	UserID     string    `json:"user_id"`
	DocumentID int64     `json:"document_id"`
	SignedAt   time.Time `json:"signed_at"`
}
