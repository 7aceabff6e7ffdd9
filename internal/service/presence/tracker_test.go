package presence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	identitydom "fedportal-service/internal/domain/identity"
	presencedom "fedportal-service/internal/domain/presence"
	xerrors "fedportal-service/internal/pkg/errors"
)

type fakeRepo struct {
	records map[string]*presencedom.Record
	listed  []presencedom.Record

	inserted       []*presencedom.Record
	touched        []string
	deletedExcept  []string
	purgedBefore   time.Time
	listSinceGiven time.Time

	findErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: make(map[string]*presencedom.Record)}
}

func (f *fakeRepo) Insert(ctx context.Context, rec *presencedom.Record) error {
	f.inserted = append(f.inserted, rec)
	f.records[rec.SessionID] = rec
	return nil
}

func (f *fakeRepo) FindByID(ctx context.Context, sessionID string) (*presencedom.Record, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	rec, ok := f.records[sessionID]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return rec, nil
}

func (f *fakeRepo) Touch(ctx context.Context, sessionID string, at time.Time) error {
	if _, ok := f.records[sessionID]; !ok {
		return xerrors.ErrNotFound
	}
	f.touched = append(f.touched, sessionID)
	f.records[sessionID].LastActivityAt = at
	return nil
}

func (f *fakeRepo) SetState(ctx context.Context, sessionID string, state presencedom.State, at time.Time) error {
	rec, ok := f.records[sessionID]
	if !ok {
		return xerrors.ErrNotFound
	}
	rec.State = state
	rec.LastActivityAt = at
	return nil
}

func (f *fakeRepo) UpdateActivity(ctx context.Context, sessionID, page string, tool presencedom.Tool, at time.Time) error {
	rec, ok := f.records[sessionID]
	if !ok {
		return xerrors.ErrNotFound
	}
	rec.CurrentPage = page
	rec.CurrentTool = tool
	rec.LastActivityAt = at
	return nil
}

func (f *fakeRepo) Delete(ctx context.Context, sessionID string) error {
	delete(f.records, sessionID)
	return nil
}

func (f *fakeRepo) DeleteByUserExcept(ctx context.Context, userID, keepID string) error {
	f.deletedExcept = append(f.deletedExcept, userID)
	for id, rec := range f.records {
		if rec.UserID == userID && id != keepID {
			delete(f.records, id)
		}
	}
	return nil
}

func (f *fakeRepo) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	f.purgedBefore = cutoff
	return 0, nil
}

func (f *fakeRepo) ListSince(ctx context.Context, cutoff time.Time) ([]presencedom.Record, error) {
	f.listSinceGiven = cutoff
	return f.listed, nil
}

var testNow = time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)

func newTestTracker(repo *fakeRepo) *Tracker {
	tr := NewTracker(repo, zap.NewNop(), 300*time.Second, 3*time.Second)
	tr.now = func() time.Time { return testNow }
	return tr
}

func member(role identitydom.Role) *identitydom.EffectiveIdentity {
	return &identitydom.EffectiveIdentity{
		ActingAs: identitydom.Principal{
			ID:          "u1",
			Email:       "u1@fed.org",
			DisplayName: "User One",
			Role:        role,
		},
	}
}

func TestStartCreatesSession(t *testing.T) {
	repo := newFakeRepo()
	tracker := newTestTracker(repo)

	resp, err := tracker.Start(context.Background(), member(identitydom.RoleSecretary), presencedom.StartRequest{Page: "documents"})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.SessionID)
	assert.False(t, resp.Reused)
	assert.Equal(t, presencedom.StateActive, resp.State)

	require.Len(t, repo.inserted, 1)
	assert.Equal(t, "documents", repo.inserted[0].CurrentPage)
	assert.Equal(t, []string{"u1"}, repo.deletedExcept)
}

func TestStartReusesLiveSessionAcrossReload(t *testing.T) {
	repo := newFakeRepo()
	repo.records["sess-1"] = &presencedom.Record{
		SessionID:      "sess-1",
		UserID:         "u1",
		State:          presencedom.StateActive,
		LastActivityAt: testNow.Add(-10 * time.Second),
	}
	tracker := newTestTracker(repo)

	resp, err := tracker.Start(context.Background(), member(identitydom.RoleSecretary), presencedom.StartRequest{
		SessionID: "sess-1",
		Page:      "dashboard",
	})
	require.NoError(t, err)

	assert.True(t, resp.Reused)
	assert.Equal(t, "sess-1", resp.SessionID)
	assert.Empty(t, repo.inserted)
}

func TestStartIgnoresExpiredSession(t *testing.T) {
	repo := newFakeRepo()
	repo.records["sess-1"] = &presencedom.Record{
		SessionID:      "sess-1",
		UserID:         "u1",
		LastActivityAt: testNow.Add(-301 * time.Second),
	}
	tracker := newTestTracker(repo)

	resp, err := tracker.Start(context.Background(), member(identitydom.RoleSecretary), presencedom.StartRequest{
		SessionID: "sess-1",
	})
	require.NoError(t, err)

	assert.False(t, resp.Reused)
	assert.NotEqual(t, "sess-1", resp.SessionID)
}

func TestStartRejectsForeignSessionID(t *testing.T) {
	repo := newFakeRepo()
	repo.records["sess-other"] = &presencedom.Record{
		SessionID:      "sess-other",
		UserID:         "someone-else",
		LastActivityAt: testNow,
	}
	tracker := newTestTracker(repo)

	resp, err := tracker.Start(context.Background(), member(identitydom.RoleSecretary), presencedom.StartRequest{
		SessionID: "sess-other",
	})
	require.NoError(t, err)

	assert.False(t, resp.Reused)
	assert.NotEqual(t, "sess-other", resp.SessionID)
}

func TestStartSurvivesSlowLookup(t *testing.T) {
	repo := newFakeRepo()
	repo.findErr = errors.New("timeout")
	tracker := newTestTracker(repo)

	resp, err := tracker.Start(context.Background(), member(identitydom.RoleSecretary), presencedom.StartRequest{
		SessionID: "sess-1",
	})
	require.NoError(t, err)
	assert.False(t, resp.Reused)
}

func TestStartRejectsImpersonatingIdentity(t *testing.T) {
	repo := newFakeRepo()
	tracker := newTestTracker(repo)

	real := identitydom.Principal{ID: "sa", Role: identitydom.RoleSuperAdmin}
	eff := &identitydom.EffectiveIdentity{
		ActingAs:        identitydom.Principal{ID: "u1", Role: identitydom.RoleSecretary},
		RealIdentity:    &real,
		IsImpersonating: true,
		IsObservation:   true,
	}

	_, err := tracker.Start(context.Background(), eff, presencedom.StartRequest{})
	require.Error(t, err)
	assert.True(t, xerrors.Is(err, xerrors.ErrPermissionDenied))
	assert.Empty(t, repo.inserted)
}

func TestSetVisibility(t *testing.T) {
	repo := newFakeRepo()
	repo.records["sess-1"] = &presencedom.Record{
		SessionID: "sess-1",
		UserID:    "u1",
		State:     presencedom.StateActive,
	}
	tracker := newTestTracker(repo)

	require.NoError(t, tracker.SetVisibility(context.Background(), "sess-1", true))
	assert.Equal(t, presencedom.StateAway, repo.records["sess-1"].State)

	require.NoError(t, tracker.SetVisibility(context.Background(), "sess-1", false))
	assert.Equal(t, presencedom.StateActive, repo.records["sess-1"].State)
}

func TestSetVisibilityRejectsTerminated(t *testing.T) {
	repo := newFakeRepo()
	repo.records["sess-1"] = &presencedom.Record{
		SessionID: "sess-1",
		State:     presencedom.StateTerminated,
	}
	tracker := newTestTracker(repo)

	err := tracker.SetVisibility(context.Background(), "sess-1", true)
	require.Error(t, err)
	assert.True(t, xerrors.Is(err, xerrors.ErrInvalidState))
}

func TestHeartbeatUnknownSession(t *testing.T) {
	repo := newFakeRepo()
	tracker := newTestTracker(repo)

	err := tracker.Heartbeat(context.Background(), "gone")
	assert.True(t, xerrors.Is(err, xerrors.ErrNotFound))
}

func TestListUsesExpiryCutoff(t *testing.T) {
	repo := newFakeRepo()
	tracker := newTestTracker(repo)

	_, err := tracker.List(context.Background(), member(identitydom.RoleAdmin))
	require.NoError(t, err)

	want := testNow.Add(-300 * time.Second)
	assert.Equal(t, want, repo.purgedBefore)
	assert.Equal(t, want, repo.listSinceGiven)
}

func TestListDedupesByUserAndMergesSessions(t *testing.T) {
	repo := newFakeRepo()
	repo.listed = []presencedom.Record{
		// Descending recency, as the store returns them
		{SessionID: "s1", UserID: "u1", UserEmail: "u1@fed.org", DisplayName: "Úna",
			CurrentPage: "docease", CurrentTool: presencedom.ToolDocease,
			LastActivityAt: testNow, StartedAt: testNow.Add(-time.Minute)},
		{SessionID: "s2", UserID: "u2", UserEmail: "u2@fed.org", DisplayName: "Marc",
			CurrentPage: "dashboard", LastActivityAt: testNow.Add(-30 * time.Second), StartedAt: testNow.Add(-time.Hour)},
		{SessionID: "s3", UserID: "u1", UserEmail: "u1@fed.org", DisplayName: "Una Byrne",
			CurrentPage: "signease", CurrentTool: presencedom.ToolSignease,
			LastActivityAt: testNow.Add(-2 * time.Minute), StartedAt: testNow.Add(-2 * time.Hour)},
	}
	tracker := newTestTracker(repo)

	users, err := tracker.List(context.Background(), member(identitydom.RoleAdmin))
	require.NoError(t, err)
	require.Len(t, users, 2)

	u1 := users[0]
	assert.Equal(t, "u1", u1.UserID)
	// Most recent session wins the page
	assert.Equal(t, "docease", u1.CurrentPage)
	// Tools and alternate names from the older session are merged
	assert.ElementsMatch(t, []presencedom.Tool{presencedom.ToolDocease, presencedom.ToolSignease}, u1.Tools)
	assert.ElementsMatch(t, []string{"Úna", "Una Byrne"}, u1.Names)
	// Earliest start is kept
	assert.Equal(t, testNow.Add(-2*time.Hour), u1.StartedAt)

	assert.Equal(t, "u2", users[1].UserID)
}

func TestListEmptyForNonAdmin(t *testing.T) {
	repo := newFakeRepo()
	repo.listed = []presencedom.Record{
		{SessionID: "s1", UserID: "u9", LastActivityAt: testNow},
	}
	tracker := newTestTracker(repo)

	users, err := tracker.List(context.Background(), member(identitydom.RoleSecretary))
	require.NoError(t, err)
	assert.Empty(t, users)
}
