// internal/domain/identity/effective.go
package identity

// EffectiveIdentity is the identity currently driving UI and data decisions,
// possibly substituted through impersonation. Invariant: IsImpersonating is
// true exactly when RealIdentity is non-nil; nesting depth is fixed at one.
type EffectiveIdentity struct {
	ActingAs        Principal  `json:"acting_as"`
	RealIdentity    *Principal `json:"real_identity,omitempty"`
	IsImpersonating bool       `json:"is_impersonating"`
	IsObservation   bool       `json:"is_observation"`
}

// IsAdmin reports administrative capability of the effective role. During
// impersonation this reflects the impersonated user, so the operator sees
// exactly what the user sees.
func (e *EffectiveIdentity) IsAdmin() bool {
	return e.ActingAs.Role.AtLeast(RoleSecretaryGeneral)
}

// IsSuperAdmin reports whether the effective role is super_admin.
func (e *EffectiveIdentity) IsSuperAdmin() bool {
	return e.ActingAs.Role == RoleSuperAdmin
}

// IsRealSuperAdmin ignores substitution. It gates features that must stay
// available to the true operator while impersonating, such as the control
// that ends impersonation.
func (e *EffectiveIdentity) IsRealSuperAdmin() bool {
	if e.IsImpersonating && e.RealIdentity != nil {
		return e.RealIdentity.Role == RoleSuperAdmin
	}
	return e.ActingAs.Role == RoleSuperAdmin
}

// IsRestrictedScope reports whether the effective role only sees its own
// records.
func (e *EffectiveIdentity) IsRestrictedScope() bool {
	return e.ActingAs.Role.IsRestrictedScope()
}

// CanManage reports mutating-action capability. Always false while observing:
// observation mode is read-only regardless of the effective role.
func (e *EffectiveIdentity) CanManage() bool {
	if e.IsObservation {
		return false
	}
	return e.ActingAs.Role.AtLeast(RoleSecretaryGeneral)
}

// Can reports whether the effective role grants the named permission.
func (e *EffectiveIdentity) Can(permission string) bool {
	return e.ActingAs.Role.HasPermission(permission)
}
