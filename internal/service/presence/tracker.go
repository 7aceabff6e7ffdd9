// internal/service/presence/tracker.go
package presence

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"fedportal-service/internal/domain/identity"
	"fedportal-service/internal/domain/presence"
	xerrors "fedportal-service/internal/pkg/errors"
)

// Repository is the presence-registry storage the tracker drives.
type Repository interface {
	Insert(ctx context.Context, rec *presence.Record) error
	FindByID(ctx context.Context, sessionID string) (*presence.Record, error)
	Touch(ctx context.Context, sessionID string, at time.Time) error
	SetState(ctx context.Context, sessionID string, state presence.State, at time.Time) error
	UpdateActivity(ctx context.Context, sessionID, page string, tool presence.Tool, at time.Time) error
	Delete(ctx context.Context, sessionID string) error
	DeleteByUserExcept(ctx context.Context, userID, keepID string) error
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
	ListSince(ctx context.Context, cutoff time.Time) ([]presence.Record, error)
}

// Tracker maintains the ephemeral who-is-active registry. Writes are
// best-effort and advisory; a failed presence write never fails a request.
type Tracker struct {
	repo             Repository
	logger           *zap.Logger
	expiry           time.Duration
	bootstrapTimeout time.Duration
	now              func() time.Time
}

func NewTracker(repo Repository, logger *zap.Logger, expiry, bootstrapTimeout time.Duration) *Tracker {
	return &Tracker{
		repo:             repo,
		logger:           logger,
		expiry:           expiry,
		bootstrapTimeout: bootstrapTimeout,
		now:              time.Now,
	}
}

// Start bootstraps a presence session. When the client presents a previously
// persisted identifier that still resolves to a live record owned by the
// same user, the record is reclaimed so a reloaded tab does not duplicate
// itself. Otherwise any other live records of the user are cleared and a
// fresh record is created. Impersonating identities never create records.
func (t *Tracker) Start(ctx context.Context, eff *identity.EffectiveIdentity, req presence.StartRequest) (*presence.StartResponse, error) {
	if eff.IsImpersonating {
		return nil, xerrors.Wrap(xerrors.ErrPermissionDenied, "impersonating sessions are not tracked")
	}

	tool, err := presence.ParseTool(req.Tool)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, err.Error())
	}

	page := req.Page
	if page == "" {
		page = "dashboard"
	}

	now := t.now()
	user := eff.ActingAs

	if req.SessionID != "" {
		// Bound the reuse lookup so a slow registry never stalls bootstrap;
		// on timeout we fall through to a fresh session.
		lookupCtx, cancel := context.WithTimeout(ctx, t.bootstrapTimeout)
		existing, err := t.repo.FindByID(lookupCtx, req.SessionID)
		cancel()

		if err == nil && existing.UserID == user.ID && now.Sub(existing.LastActivityAt) <= t.expiry {
			if err := t.repo.Touch(ctx, existing.SessionID, now); err == nil {
				return &presence.StartResponse{
					SessionID: existing.SessionID,
					Reused:    true,
					State:     presence.StateActive,
				}, nil
			}
		}
	}

	// Single-active-session policy: best effort, never blocks the start
	if err := t.repo.DeleteByUserExcept(ctx, user.ID, ""); err != nil {
		t.logger.Debug("failed to clear old sessions", zap.Error(err))
	}

	rec := &presence.Record{
		SessionID:      ulid.Make().String(),
		UserID:         user.ID,
		UserEmail:      user.Email,
		DisplayName:    user.DisplayName,
		AvatarURL:      user.AvatarURL,
		CurrentPage:    page,
		CurrentTool:    tool,
		State:          presence.StateActive,
		LastActivityAt: now,
		StartedAt:      now,
	}

	if err := t.repo.Insert(ctx, rec); err != nil {
		return nil, xerrors.Wrap(xerrors.ErrUpstreamUnavailable, err.Error())
	}

	return &presence.StartResponse{
		SessionID: rec.SessionID,
		Reused:    false,
		State:     presence.StateActive,
	}, nil
}

// Heartbeat refreshes last activity. ErrNotFound tells the client to
// bootstrap a new session.
func (t *Tracker) Heartbeat(ctx context.Context, sessionID string) error {
	return t.repo.Touch(ctx, sessionID, t.now())
}

// SetVisibility moves the session between Active and Away. Away records are
// retained and tagged, not deleted.
func (t *Tracker) SetVisibility(ctx context.Context, sessionID string, hidden bool) error {
	rec, err := t.repo.FindByID(ctx, sessionID)
	if err != nil {
		return err
	}

	next := presence.StateActive
	if hidden {
		next = presence.StateAway
	}
	if rec.State == next {
		return t.repo.Touch(ctx, sessionID, t.now())
	}
	if !rec.State.CanTransition(next) {
		return xerrors.Wrap(xerrors.ErrInvalidState, "illegal presence transition")
	}

	return t.repo.SetState(ctx, sessionID, next, t.now())
}

// UpdateActivity records a navigation: page, tool and last activity move in
// one write.
func (t *Tracker) UpdateActivity(ctx context.Context, sessionID string, req presence.ActivityRequest) error {
	tool, err := presence.ParseTool(req.Tool)
	if err != nil {
		return xerrors.Wrap(xerrors.ErrInvalidInput, err.Error())
	}
	return t.repo.UpdateActivity(ctx, sessionID, req.Page, tool, t.now())
}

// Stop terminates the session and removes its record.
func (t *Tracker) Stop(ctx context.Context, sessionID string) error {
	return t.repo.Delete(ctx, sessionID)
}

// List reaps stale records, then returns one entry per user, most recent
// first. Visibility is scope-gated: callers without administrative
// capability get an empty result, not an error.
func (t *Tracker) List(ctx context.Context, eff *identity.EffectiveIdentity) ([]presence.ActiveUser, error) {
	if !eff.Can(identity.PermPresenceView) {
		return []presence.ActiveUser{}, nil
	}

	cutoff := t.now().Add(-t.expiry)

	if _, err := t.repo.PurgeBefore(ctx, cutoff); err != nil {
		// Reaping is opportunistic; the cutoff filter below still hides
		// stale rows
		t.logger.Debug("failed to purge stale presence records", zap.Error(err))
	}

	records, err := t.repo.ListSince(ctx, cutoff)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.ErrUpstreamUnavailable, err.Error())
	}

	return dedupeByUser(records), nil
}

// dedupeByUser folds per-session records into one entry per user. The most
// recent record wins page and recency; tools and alternate display names
// from concurrent sessions are merged. Input is ordered by descending
// recency, so the first record seen for a user is its freshest.
func dedupeByUser(records []presence.Record) []presence.ActiveUser {
	byUser := make(map[string]*presence.ActiveUser)
	order := make([]string, 0, len(records))

	for _, rec := range records {
		existing, ok := byUser[rec.UserID]
		if !ok {
			u := &presence.ActiveUser{
				UserID:         rec.UserID,
				UserEmail:      rec.UserEmail,
				DisplayName:    rec.DisplayName,
				AvatarURL:      rec.AvatarURL,
				CurrentPage:    rec.CurrentPage,
				Tools:          []presence.Tool{rec.CurrentTool},
				LastActivityAt: rec.LastActivityAt,
				StartedAt:      rec.StartedAt,
			}
			if rec.DisplayName != "" {
				u.Names = []string{rec.DisplayName}
			}
			byUser[rec.UserID] = u
			order = append(order, rec.UserID)
			continue
		}

		if !containsTool(existing.Tools, rec.CurrentTool) {
			existing.Tools = append(existing.Tools, rec.CurrentTool)
		}
		if rec.DisplayName != "" && !containsNameFold(existing.Names, rec.DisplayName) {
			existing.Names = append(existing.Names, rec.DisplayName)
		}
		if existing.AvatarURL == "" && rec.AvatarURL != "" {
			existing.AvatarURL = rec.AvatarURL
		}
		if rec.StartedAt.Before(existing.StartedAt) {
			existing.StartedAt = rec.StartedAt
		}
	}

	out := make([]presence.ActiveUser, 0, len(order))
	for _, id := range order {
		out = append(out, *byUser[id])
	}
	return out
}

func containsTool(tools []presence.Tool, t presence.Tool) bool {
	for _, existing := range tools {
		if existing == t {
			return true
		}
	}
	return false
}

func containsNameFold(names []string, name string) bool {
	for _, existing := range names {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(name)) {
			return true
		}
	}
	return false
}
