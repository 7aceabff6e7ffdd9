// internal/pkg/session/types.go
package session

import "time"

// ImpersonationState is what survives between requests while a super admin
// is substituting another identity. Keyed by the operator's token ID, so
// every request in the same backend session resolves to the same acting
// identity.
type ImpersonationState struct {
	TargetID  string    `json:"target_id"`
	StartedBy string    `json:"started_by"`
	StartedAt time.Time `json:"started_at"`
}
