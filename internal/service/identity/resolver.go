// internal/service/identity/resolver.go
package identity

import (
	"fedportal-service/internal/domain/identity"
	xerrors "fedportal-service/internal/pkg/errors"
)

// Resolve turns a raw authenticated principal into an effective identity:
// acting and real coincide, no substitution.
func Resolve(principal identity.Principal) identity.EffectiveIdentity {
	return identity.EffectiveIdentity{
		ActingAs:        principal,
		RealIdentity:    nil,
		IsImpersonating: false,
		IsObservation:   false,
	}
}

// BeginImpersonation substitutes the acting identity with target. Only a
// super admin who is not already impersonating may start one; nesting depth
// is fixed at one. The input identity is never mutated, so a failed attempt
// leaves the caller's identity unchanged.
func BeginImpersonation(current identity.EffectiveIdentity, target identity.Principal) (identity.EffectiveIdentity, error) {
	if current.RealIdentity != nil {
		return current, xerrors.Wrap(xerrors.ErrPermissionDenied, "already impersonating")
	}
	if current.ActingAs.Role != identity.RoleSuperAdmin {
		return current, xerrors.Wrap(xerrors.ErrPermissionDenied, "impersonation requires super admin")
	}

	real := current.ActingAs
	return identity.EffectiveIdentity{
		ActingAs:        target,
		RealIdentity:    &real,
		IsImpersonating: true,
		// Observation mode tracks whether the true operator is a super
		// admin; today that is the only path here, so the two flags
		// coincide.
		IsObservation: real.Role == identity.RoleSuperAdmin,
	}, nil
}

// EndImpersonation restores the real identity.
func EndImpersonation(current identity.EffectiveIdentity) (identity.EffectiveIdentity, error) {
	if current.RealIdentity == nil {
		return current, xerrors.Wrap(xerrors.ErrInvalidState, "not impersonating")
	}
	return identity.EffectiveIdentity{
		ActingAs:        *current.RealIdentity,
		RealIdentity:    nil,
		IsImpersonating: false,
		IsObservation:   false,
	}, nil
}
