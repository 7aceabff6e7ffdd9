// internal/domain/presence/dto.go
package presence

// StartRequest bootstraps a presence session. SessionID carries a previously
// persisted identifier so a reloaded tab can reclaim its record instead of
// creating a duplicate.
type StartRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Page      string `json:"page"`
	Tool      string `json:"tool,omitempty"`
}

// StartResponse returns the identifier the client must persist locally.
type StartResponse struct {
	SessionID string `json:"session_id"`
	Reused    bool   `json:"reused"`
	State     State  `json:"state"`
}

// ActivityRequest updates page and tool in a single write.
type ActivityRequest struct {
	Page string `json:"page" binding:"required"`
	Tool string `json:"tool,omitempty"`
}

// VisibilityRequest mirrors the browser visibilitychange event.
type VisibilityRequest struct {
	Hidden bool `json:"hidden"`
}
