// internal/domain/identity/dto.go
package identity

// ImpersonateRequest starts an identity substitution.
type ImpersonateRequest struct {
	TargetID string `json:"target_id" binding:"required"`
}

// Capabilities are the derived predicate flags exposed to the UI alongside
// the effective identity.
type Capabilities struct {
	IsAdmin           bool `json:"is_admin"`
	IsSuperAdmin      bool `json:"is_super_admin"`
	IsRealSuperAdmin  bool `json:"is_real_super_admin"`
	IsRestrictedScope bool `json:"is_restricted_scope"`
	CanManage         bool `json:"can_manage"`
}

// IdentityResponse is the wire shape of an effective identity.
type IdentityResponse struct {
	ActingAs        Principal    `json:"acting_as"`
	RealIdentity    *Principal   `json:"real_identity,omitempty"`
	IsImpersonating bool         `json:"is_impersonating"`
	IsObservation   bool         `json:"is_observation"`
	RoleLabel       string       `json:"role_label"`
	Capabilities    Capabilities `json:"capabilities"`
}

// NewIdentityResponse builds the response, deriving the capability flags.
func NewIdentityResponse(e *EffectiveIdentity) *IdentityResponse {
	return &IdentityResponse{
		ActingAs:        e.ActingAs,
		RealIdentity:    e.RealIdentity,
		IsImpersonating: e.IsImpersonating,
		IsObservation:   e.IsObservation,
		RoleLabel:       e.ActingAs.Role.Label(),
		Capabilities: Capabilities{
			IsAdmin:           e.IsAdmin(),
			IsSuperAdmin:      e.IsSuperAdmin(),
			IsRealSuperAdmin:  e.IsRealSuperAdmin(),
			IsRestrictedScope: e.IsRestrictedScope(),
			CanManage:         e.CanManage(),
		},
	}
}
