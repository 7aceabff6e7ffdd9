// internal/service/gate/gate.go
package gate

import (
	"context"

	"go.uber.org/zap"

	"fedportal-service/internal/domain/identity"
	xerrors "fedportal-service/internal/pkg/errors"
)

// ControlHeader carries the client's declared control marker so whitelisted
// interactions pass the observation gate.
const ControlHeader = "X-Portal-Control"

// Control markers that stay interactive during observation mode. Everything
// else that mutates is blocked.
const (
	ControlExitImpersonation = "exit-impersonation"
	ControlNavigation        = "navigation"
	ControlTabBar            = "tab-bar"
	ControlPeriodSelector    = "period-selector"
)

// WarningDisplayMS is how long the client should show the blocked-action
// toast.
const WarningDisplayMS = 2500

// Warning is the transient payload returned alongside a blocked
// interaction.
type Warning struct {
	Message      string `json:"message"`
	DisplayMS    int    `json:"display_ms"`
	BlockedCount int64  `json:"blocked_count"`
}

var allowedControls = map[string]struct{}{
	ControlExitImpersonation: {},
	ControlNavigation:        {},
	ControlTabBar:            {},
	ControlPeriodSelector:    {},
}

// Allowed reports whether a control marker is on the observation whitelist.
func Allowed(control string) bool {
	_, ok := allowedControls[control]
	return ok
}

// BlockedCounter tracks blocked interactions per session.
type BlockedCounter interface {
	IncrementBlocked(ctx context.Context, jti string) (int64, error)
	BlockedCount(ctx context.Context, jti string) (int64, error)
}

// Gate is the server half of observation mode: while a super admin is
// viewing the portal as another user, every mutating interaction outside
// the whitelist is rejected and counted.
type Gate struct {
	counter BlockedCounter
	logger  *zap.Logger
}

func NewGate(counter BlockedCounter, logger *zap.Logger) *Gate {
	return &Gate{counter: counter, logger: logger}
}

// CheckMutation is the defense-in-depth hook called inside every mutating
// handler, independent of the middleware. It fails only in observation
// mode.
func (g *Gate) CheckMutation(eff *identity.EffectiveIdentity) error {
	if eff != nil && eff.IsObservation {
		return xerrors.Wrap(xerrors.ErrPermissionDenied, "interactions are disabled while viewing as another user")
	}
	return nil
}

// Block records a rejected interaction and builds the warning payload the
// client renders. Counter failures are swallowed; blocking never depends on
// the counter store being up.
func (g *Gate) Block(ctx context.Context, eff *identity.EffectiveIdentity, jti, control string) Warning {
	count, err := g.counter.IncrementBlocked(ctx, jti)
	if err != nil {
		g.logger.Debug("failed to count blocked interaction", zap.Error(err))
	}

	g.logger.Info("blocked interaction in observation mode",
		zap.String("operator", eff.RealIdentity.Email),
		zap.String("viewing_as", eff.ActingAs.Email),
		zap.String("control", control))

	return Warning{
		Message:      "You are viewing the portal as another user. Interactions are disabled.",
		DisplayMS:    WarningDisplayMS,
		BlockedCount: count,
	}
}

// Blocked returns the session's blocked-interaction count.
func (g *Gate) Blocked(ctx context.Context, jti string) int64 {
	count, err := g.counter.BlockedCount(ctx, jti)
	if err != nil {
		return 0
	}
	return count
}
