package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	identitydom "fedportal-service/internal/domain/identity"
	metricsdom "fedportal-service/internal/domain/metrics"
)

func feedFixture() (*fakeDocease, *fakeSignease, *fakeSignatures, *fakeDirectory) {
	now := time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)

	docease := &fakeDocease{events: []metricsdom.DoceaseEvent{
		{ID: 1, UserID: "u1", Title: "Congress minutes", DocumentType: "Minutes", CreatedAt: now.Add(-time.Hour)},
		{ID: 2, UserID: "u2", Title: "Branch report", DocumentType: "Report", CreatedAt: now.Add(-3 * time.Hour)},
	}}
	signease := &fakeSignease{events: []metricsdom.SigneaseEvent{
		{ID: 10, UserEmail: "alice@fed.org", UserName: "Alice", ActionType: metricsdom.ActionDocumentSigned,
			DocumentName: "CBA draft", CreatedAt: now.Add(-30 * time.Minute)},
	}}
	signatures := &fakeSignatures{events: []metricsdom.SignatureEvent{
		{ID: 20, UserID: "u1", DocumentID: 99, SignedAt: now.Add(-2 * time.Hour)},
	}}
	directory := &fakeDirectory{principals: []identitydom.Principal{
		{ID: "u1", Email: "alice@fed.org", DisplayName: "Alice"},
		{ID: "u2", Email: "bob@fed.org", DisplayName: "Bob"},
	}}
	return docease, signease, signatures, directory
}

func TestActivityFeedMergesAndSorts(t *testing.T) {
	d, s, g, u := feedFixture()
	engine := newTestEngine(d, s, g, &fakeSessions{}, u)

	feed, err := engine.ActivityFeed(context.Background(), metricsdom.Scope{}, metricsdom.ActivityFilter{})
	require.NoError(t, err)

	require.Len(t, feed.Events, 4)
	assert.False(t, feed.Partial)
	assert.Equal(t, 4, feed.Total)

	// Newest first
	assert.Equal(t, "signease-10", feed.Events[0].ID)
	assert.Equal(t, "docease-1", feed.Events[1].ID)
	assert.Equal(t, "signature-20", feed.Events[2].ID)
	assert.Equal(t, "docease-2", feed.Events[3].ID)

	// Id-keyed sources are enriched through the directory
	assert.Equal(t, "alice@fed.org", feed.Events[1].UserEmail)
	assert.Equal(t, "Bob", feed.Events[3].UserName)
}

func TestActivityFeedRollups(t *testing.T) {
	d, s, g, u := feedFixture()
	engine := newTestEngine(d, s, g, &fakeSessions{}, u)

	feed, err := engine.ActivityFeed(context.Background(), metricsdom.Scope{}, metricsdom.ActivityFilter{})
	require.NoError(t, err)

	require.Len(t, feed.Users, 2)

	// Alice is the most recently active: one docease doc, two signature events
	alice := feed.Users[0]
	assert.Equal(t, "alice@fed.org", alice.Email)
	assert.Equal(t, 1, alice.DoceaseCount)
	assert.Equal(t, 2, alice.SignatureCount)

	bob := feed.Users[1]
	assert.Equal(t, "bob@fed.org", bob.Email)
	assert.Equal(t, 1, bob.DoceaseCount)
	assert.Equal(t, 0, bob.SignatureCount)
}

func TestActivityFeedSourceFilter(t *testing.T) {
	d, s, g, u := feedFixture()
	engine := newTestEngine(d, s, g, &fakeSessions{}, u)

	feed, err := engine.ActivityFeed(context.Background(), metricsdom.Scope{}, metricsdom.ActivityFilter{
		Source: metricsdom.CategoryDocease,
	})
	require.NoError(t, err)

	require.Len(t, feed.Events, 2)
	for _, ev := range feed.Events {
		assert.Equal(t, metricsdom.CategoryDocease, ev.Source)
	}
}

func TestActivityFeedSearchFilter(t *testing.T) {
	d, s, g, u := feedFixture()
	engine := newTestEngine(d, s, g, &fakeSessions{}, u)

	feed, err := engine.ActivityFeed(context.Background(), metricsdom.Scope{}, metricsdom.ActivityFilter{
		Search: "congress",
	})
	require.NoError(t, err)

	require.Len(t, feed.Events, 1)
	assert.Equal(t, "docease-1", feed.Events[0].ID)
}

func TestActivityFeedUserFilter(t *testing.T) {
	d, s, g, u := feedFixture()
	engine := newTestEngine(d, s, g, &fakeSessions{}, u)

	feed, err := engine.ActivityFeed(context.Background(), metricsdom.Scope{}, metricsdom.ActivityFilter{
		UserEmail: "ALICE@fed.org",
	})
	require.NoError(t, err)

	require.Len(t, feed.Events, 3)
	for _, ev := range feed.Events {
		assert.Equal(t, "alice@fed.org", ev.UserEmail)
	}
}

func TestActivityFeedPartialOnSourceFailure(t *testing.T) {
	d, s, g, u := feedFixture()
	s.err = errors.New("connection refused")
	engine := newTestEngine(d, s, g, &fakeSessions{}, u)

	feed, err := engine.ActivityFeed(context.Background(), metricsdom.Scope{}, metricsdom.ActivityFilter{})
	require.NoError(t, err)

	assert.True(t, feed.Partial)
	assert.Len(t, feed.Events, 3)
}

func TestActionLabels(t *testing.T) {
	assert.Equal(t, "Document signed", metricsdom.ActionLabel(metricsdom.ActionDocumentSigned))
	assert.Equal(t, "custom_thing", metricsdom.ActionLabel("custom_thing"))
}
