package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	identitydom "fedportal-service/internal/domain/identity"
	metricsdom "fedportal-service/internal/domain/metrics"
)

type fakeDocease struct {
	count   int
	types   []metricsdom.TypeStat
	userIDs []string
	events  []metricsdom.DoceaseEvent
	err     error
}

func (f *fakeDocease) CountSince(ctx context.Context, since time.Time, scope metricsdom.Scope) (int, error) {
	return f.count, f.err
}

func (f *fakeDocease) TypeCounts(ctx context.Context, since time.Time, scope metricsdom.Scope) ([]metricsdom.TypeStat, error) {
	return f.types, f.err
}

func (f *fakeDocease) UserIDsSince(ctx context.Context, since time.Time, scope metricsdom.Scope) ([]string, error) {
	return f.userIDs, f.err
}

func (f *fakeDocease) ListSince(ctx context.Context, since time.Time, scope metricsdom.Scope) ([]metricsdom.DoceaseEvent, error) {
	return f.events, f.err
}

type fakeSignease struct {
	count  int
	emails []string
	events []metricsdom.SigneaseEvent
	err    error
}

func (f *fakeSignease) CountSince(ctx context.Context, since time.Time, scope metricsdom.Scope) (int, error) {
	return f.count, f.err
}

func (f *fakeSignease) EmailsSince(ctx context.Context, since time.Time, scope metricsdom.Scope) ([]string, error) {
	return f.emails, f.err
}

func (f *fakeSignease) ListSince(ctx context.Context, since time.Time, scope metricsdom.Scope) ([]metricsdom.SigneaseEvent, error) {
	return f.events, f.err
}

type fakeSignatures struct {
	count   int
	userIDs []string
	events  []metricsdom.SignatureEvent
	err     error
}

func (f *fakeSignatures) CountSince(ctx context.Context, since time.Time, scope metricsdom.Scope) (int, error) {
	return f.count, f.err
}

func (f *fakeSignatures) UserIDsSince(ctx context.Context, since time.Time, scope metricsdom.Scope) ([]string, error) {
	return f.userIDs, f.err
}

func (f *fakeSignatures) ListSince(ctx context.Context, since time.Time, scope metricsdom.Scope) ([]metricsdom.SignatureEvent, error) {
	return f.events, f.err
}

type fakeSessions struct {
	count  int
	emails []string
	err    error
}

func (f *fakeSessions) CountSince(ctx context.Context, since time.Time, ownerID string) (int, error) {
	return f.count, f.err
}

func (f *fakeSessions) EmailsSince(ctx context.Context, since time.Time) ([]string, error) {
	return f.emails, f.err
}

type fakeDirectory struct {
	principals []identitydom.Principal
	err        error
}

func (f *fakeDirectory) Directory(ctx context.Context) ([]identitydom.Principal, error) {
	return f.principals, f.err
}

func newTestEngine(d *fakeDocease, s *fakeSignease, g *fakeSignatures, p *fakeSessions, u *fakeDirectory) *Engine {
	e := NewEngine(d, s, g, p, u, zap.NewNop())
	e.now = func() time.Time {
		return time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)
	}
	return e
}

func TestComputeSnapshotCounts(t *testing.T) {
	engine := newTestEngine(
		&fakeDocease{count: 12, userIDs: []string{"u1"}},
		&fakeSignease{count: 7, emails: []string{"alice@fed.org", "bob@fed.org"}},
		&fakeSignatures{count: 3, userIDs: []string{"u2"}},
		&fakeSessions{count: 40, emails: []string{"Bob@fed.org", "carol@fed.org"}},
		&fakeDirectory{principals: []identitydom.Principal{
			{ID: "u1", Email: "alice@fed.org"},
			{ID: "u2", Email: "dave@fed.org"},
		}},
	)

	snap, err := engine.ComputeSnapshot(context.Background(), metricsdom.Query{TimeRange: metricsdom.RangeMonth})
	require.NoError(t, err)

	assert.Equal(t, 12, snap.Counts[metricsdom.CategoryDocease])
	assert.Equal(t, 7, snap.Counts[metricsdom.CategorySignease])
	assert.Equal(t, 3, snap.Counts[metricsdom.CategorySignatures])
	assert.Equal(t, 40, snap.Counts[metricsdom.CategorySessions])
	assert.Empty(t, snap.DegradedCategories)

	// alice, bob (case-insensitive merge), carol, dave
	assert.Equal(t, 4, snap.ActivePrincipalCount)
	assert.Equal(t, "Last 30 days", snap.PeriodLabel)
}

func TestComputeSnapshotDegradesFailingCategory(t *testing.T) {
	engine := newTestEngine(
		&fakeDocease{count: 5},
		&fakeSignease{err: errors.New("connection refused")},
		&fakeSignatures{count: 2},
		&fakeSessions{count: 9},
		&fakeDirectory{},
	)

	snap, err := engine.ComputeSnapshot(context.Background(), metricsdom.Query{TimeRange: metricsdom.RangeWeek})
	require.NoError(t, err)

	assert.Equal(t, 0, snap.Counts[metricsdom.CategorySignease])
	assert.Contains(t, snap.DegradedCategories, metricsdom.CategorySignease)

	// Siblings are unaffected
	assert.Equal(t, 5, snap.Counts[metricsdom.CategoryDocease])
	assert.Equal(t, 2, snap.Counts[metricsdom.CategorySignatures])
	assert.Equal(t, 9, snap.Counts[metricsdom.CategorySessions])
	assert.Len(t, snap.DegradedCategories, 1)
}

func TestRestrictedScopeActivePrincipalCount(t *testing.T) {
	engine := newTestEngine(
		&fakeDocease{count: 2, userIDs: []string{"owner"}},
		&fakeSignease{count: 1, emails: []string{"owner@fed.org"}},
		&fakeSignatures{},
		&fakeSessions{count: 4},
		&fakeDirectory{},
	)

	q := metricsdom.Query{
		Scope:     metricsdom.Scope{Restricted: true, OwnerID: "owner", OwnerEmail: "owner@fed.org"},
		TimeRange: metricsdom.RangeMonth,
	}
	snap, err := engine.ComputeSnapshot(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, 1, snap.ActivePrincipalCount)
}

func TestTypeBreakdownPercentages(t *testing.T) {
	engine := newTestEngine(
		&fakeDocease{
			count: 4,
			types: []metricsdom.TypeStat{
				{Label: "Report", Count: 3},
				{Label: "Letter", Count: 1},
			},
		},
		&fakeSignease{}, &fakeSignatures{}, &fakeSessions{}, &fakeDirectory{},
	)

	snap, err := engine.ComputeSnapshot(context.Background(), metricsdom.Query{TimeRange: metricsdom.RangeMonth})
	require.NoError(t, err)

	require.Len(t, snap.TypeBreakdown, 2)
	assert.Equal(t, 75, snap.TypeBreakdown[0].Percentage)
	assert.Equal(t, 25, snap.TypeBreakdown[1].Percentage)
}

func TestTypeBreakdownEmptyDoesNotDivideByZero(t *testing.T) {
	engine := newTestEngine(
		&fakeDocease{}, &fakeSignease{}, &fakeSignatures{}, &fakeSessions{}, &fakeDirectory{},
	)

	snap, err := engine.ComputeSnapshot(context.Background(), metricsdom.Query{TimeRange: metricsdom.RangeYear})
	require.NoError(t, err)
	assert.Empty(t, snap.TypeBreakdown)
}

func TestTypeBreakdownKeepsTopSix(t *testing.T) {
	types := make([]metricsdom.TypeStat, 9)
	for i := range types {
		types[i] = metricsdom.TypeStat{Label: string(rune('A' + i)), Count: 9 - i}
	}
	engine := newTestEngine(
		&fakeDocease{types: types},
		&fakeSignease{}, &fakeSignatures{}, &fakeSessions{}, &fakeDirectory{},
	)

	snap, err := engine.ComputeSnapshot(context.Background(), metricsdom.Query{TimeRange: metricsdom.RangeMonth})
	require.NoError(t, err)

	require.Len(t, snap.TypeBreakdown, 6)
	assert.Equal(t, "A", snap.TypeBreakdown[0].Label)
}

func TestDailySeriesSpansSevenDays(t *testing.T) {
	now := time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)
	engine := newTestEngine(
		&fakeDocease{events: []metricsdom.DoceaseEvent{
			{ID: 1, CreatedAt: now},
			{ID: 2, CreatedAt: now.AddDate(0, 0, -2)},
			{ID: 3, CreatedAt: now.AddDate(0, 0, -2)},
			// Outside the window, must not appear
			{ID: 4, CreatedAt: now.AddDate(0, 0, -9)},
		}},
		&fakeSignease{events: []metricsdom.SigneaseEvent{
			{ID: 1, CreatedAt: now.AddDate(0, 0, -1)},
		}},
		&fakeSignatures{}, &fakeSessions{}, &fakeDirectory{},
	)

	// The series stays seven days wide even for the year range
	snap, err := engine.ComputeSnapshot(context.Background(), metricsdom.Query{TimeRange: metricsdom.RangeYear})
	require.NoError(t, err)

	require.Len(t, snap.DailySeries, 7)

	last := snap.DailySeries[6]
	assert.Equal(t, 1, last.Docease)
	assert.Equal(t, 0, last.Signease)

	assert.Equal(t, 2, snap.DailySeries[4].Docease)
	assert.Equal(t, 1, snap.DailySeries[5].Signease)

	totalDocease := 0
	for _, day := range snap.DailySeries {
		totalDocease += day.Docease
	}
	assert.Equal(t, 3, totalDocease)
}

func TestScopeFor(t *testing.T) {
	restricted := identitydom.EffectiveIdentity{
		ActingAs: identitydom.Principal{ID: "u1", Email: "u1@fed.org", Role: identitydom.RoleSecretary},
	}
	scope := ScopeFor(&restricted)
	assert.True(t, scope.Restricted)
	assert.Equal(t, "u1", scope.OwnerID)
	assert.Equal(t, "u1@fed.org", scope.OwnerEmail)

	admin := identitydom.EffectiveIdentity{
		ActingAs: identitydom.Principal{ID: "a1", Role: identitydom.RoleAdmin},
	}
	assert.False(t, ScopeFor(&admin).Restricted)
}
