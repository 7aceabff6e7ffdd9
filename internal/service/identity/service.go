// internal/service/identity/service.go
package identity

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"fedportal-service/internal/domain/identity"
	xerrors "fedportal-service/internal/pkg/errors"
	"fedportal-service/internal/pkg/session"
)

// UserDirectory resolves user ids to principals.
type UserDirectory interface {
	FindByID(ctx context.Context, id string) (*identity.Principal, error)
}

// SessionStore persists impersonation state between requests.
type SessionStore interface {
	SaveImpersonation(ctx context.Context, jti string, state *session.ImpersonationState) error
	LoadImpersonation(ctx context.Context, jti string) (*session.ImpersonationState, error)
	ClearImpersonation(ctx context.Context, jti string) error
}

// Service resolves principals into effective identities and manages the
// per-session impersonation lifecycle.
type Service struct {
	users    UserDirectory
	sessions SessionStore
	logger   *zap.Logger
}

func NewService(users UserDirectory, sessions SessionStore, logger *zap.Logger) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		logger:   logger,
	}
}

// Resolve builds the effective identity for a request: the principal,
// substituted if its session carries a live impersonation record.
func (s *Service) Resolve(ctx context.Context, principal identity.Principal, jti string) (identity.EffectiveIdentity, error) {
	eff := Resolve(principal)

	state, err := s.sessions.LoadImpersonation(ctx, jti)
	if err != nil {
		// Losing the redis record degrades to the real identity; never
		// fail the request over it
		s.logger.Warn("failed to load impersonation state", zap.Error(err))
		return eff, nil
	}
	if state == nil {
		return eff, nil
	}

	target, err := s.users.FindByID(ctx, state.TargetID)
	if err != nil {
		// Target vanished mid-impersonation: drop back to the real identity
		s.logger.Warn("impersonation target no longer resolves, ending substitution",
			zap.String("target_id", state.TargetID),
			zap.Error(err),
		)
		_ = s.sessions.ClearImpersonation(ctx, jti)
		return eff, nil
	}

	substituted, err := BeginImpersonation(eff, *target)
	if err != nil {
		// The operator's own role changed under the stored record
		_ = s.sessions.ClearImpersonation(ctx, jti)
		return eff, nil
	}

	return substituted, nil
}

// Impersonate validates and persists a new substitution for the session.
func (s *Service) Impersonate(ctx context.Context, current identity.EffectiveIdentity, jti, targetID string) (identity.EffectiveIdentity, error) {
	if targetID == current.ActingAs.ID {
		return current, xerrors.Wrap(xerrors.ErrInvalidInput, "cannot impersonate yourself")
	}

	target, err := s.users.FindByID(ctx, targetID)
	if err != nil {
		return current, fmt.Errorf("target user: %w", err)
	}

	substituted, err := BeginImpersonation(current, *target)
	if err != nil {
		return current, err
	}

	state := &session.ImpersonationState{
		TargetID:  target.ID,
		StartedBy: substituted.RealIdentity.ID,
		StartedAt: time.Now(),
	}
	if err := s.sessions.SaveImpersonation(ctx, jti, state); err != nil {
		return current, fmt.Errorf("failed to persist impersonation: %w", err)
	}

	s.logger.Info("impersonation started",
		zap.String("operator", state.StartedBy),
		zap.String("target", target.ID),
	)

	return substituted, nil
}

// StopImpersonating restores the real identity and clears the session record.
func (s *Service) StopImpersonating(ctx context.Context, current identity.EffectiveIdentity, jti string) (identity.EffectiveIdentity, error) {
	restored, err := EndImpersonation(current)
	if err != nil {
		return current, err
	}

	if err := s.sessions.ClearImpersonation(ctx, jti); err != nil {
		return current, fmt.Errorf("failed to clear impersonation: %w", err)
	}

	s.logger.Info("impersonation ended", zap.String("operator", restored.ActingAs.ID))

	return restored, nil
}
