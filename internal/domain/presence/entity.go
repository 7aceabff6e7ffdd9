// internal/domain/presence/entity.go
package presence

import (
	"fmt"
	"time"
)

// Tool identifies which portal tool a session is currently using.
type Tool string

const (
	ToolNone     Tool = ""
	ToolDocease  Tool = "docease"
	ToolSignease Tool = "signease"
)

// ParseTool validates a raw tool string. The empty string means the
// dashboard itself.
func ParseTool(s string) (Tool, error) {
	switch Tool(s) {
	case ToolNone, ToolDocease, ToolSignease:
		return Tool(s), nil
	}
	return "", fmt.Errorf("unknown tool %q", s)
}

// State is the lifecycle state of a tracked client session.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateBootstrapping State = "bootstrapping"
	StateActive        State = "active"
	StateAway          State = "away"
	StateTerminated    State = "terminated"
)

// stateTransitions lists the allowed moves of the session state machine:
// Uninitialized -> Bootstrapping -> Active <-> Away -> Terminated.
var stateTransitions = map[State][]State{
	StateUninitialized: {StateBootstrapping},
	StateBootstrapping: {StateActive, StateTerminated},
	StateActive:        {StateAway, StateTerminated},
	StateAway:          {StateActive, StateTerminated},
	StateTerminated:    {},
}

// CanTransition reports whether moving from s to next is legal.
func (s State) CanTransition(next State) bool {
	for _, allowed := range stateTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Record is one ephemeral per-browser-session liveness entry. Records are
// advisory and last-write-wins; they are never used for authorization.
type Record struct {
	SessionID      string    `json:"session_id"`
	UserID         string    `json:"user_id"`
	UserEmail      string    `json:"user_email"`
	DisplayName    string    `json:"display_name,omitempty"`
	AvatarURL      string    `json:"avatar_url,omitempty"`
	CurrentPage    string    `json:"current_page"`
	CurrentTool    Tool      `json:"current_tool,omitempty"`
	State          State     `json:"state"`
	LastActivityAt time.Time `json:"last_activity_at"`
	StartedAt      time.Time `json:"started_at"`
}

// ActiveUser is the deduplicated view of one user across their sessions.
// Tools and alternate display names from concurrent sessions are merged;
// page and recency come from the most recent record.
type ActiveUser struct {
	UserID         string    `json:"user_id"`
	UserEmail      string    `json:"user_email"`
	DisplayName    string    `json:"display_name,omitempty"`
	AvatarURL      string    `json:"avatar_url,omitempty"`
	CurrentPage    string    `json:"current_page"`
	Tools          []Tool    `json:"tools"`
	Names          []string  `json:"names,omitempty"`
	LastActivityAt time.Time `json:"last_activity_at"`
	StartedAt      time.Time `json:"started_at"`
}
