package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	identitydom "fedportal-service/internal/domain/identity"
	xerrors "fedportal-service/internal/pkg/errors"
	"fedportal-service/internal/pkg/session"
)

type fakeDirectory struct {
	users map[string]*identitydom.Principal
	err   error
}

func (f *fakeDirectory) FindByID(ctx context.Context, id string) (*identitydom.Principal, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return u, nil
}

type fakeSessions struct {
	states  map[string]*session.ImpersonationState
	loadErr error
	saveErr error
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{states: make(map[string]*session.ImpersonationState)}
}

func (f *fakeSessions) SaveImpersonation(ctx context.Context, jti string, state *session.ImpersonationState) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.states[jti] = state
	return nil
}

func (f *fakeSessions) LoadImpersonation(ctx context.Context, jti string) (*session.ImpersonationState, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.states[jti], nil
}

func (f *fakeSessions) ClearImpersonation(ctx context.Context, jti string) error {
	delete(f.states, jti)
	return nil
}

func testService(dir *fakeDirectory, sess *fakeSessions) *Service {
	return NewService(dir, sess, zap.NewNop())
}

func TestServiceImpersonateRoundTrip(t *testing.T) {
	dir := &fakeDirectory{users: map[string]*identitydom.Principal{
		"sec-1": {ID: "sec-1", Email: "sec@fed.org", Role: identitydom.RoleSecretary},
	}}
	sess := newFakeSessions()
	svc := testService(dir, sess)

	operator := Resolve(superAdmin())
	eff, err := svc.Impersonate(context.Background(), operator, "jti-1", "sec-1")
	require.NoError(t, err)
	assert.Equal(t, "sec-1", eff.ActingAs.ID)
	assert.True(t, eff.IsObservation)

	// A later request with the same session resolves to the substitution
	resolved, err := svc.Resolve(context.Background(), superAdmin(), "jti-1")
	require.NoError(t, err)
	assert.True(t, resolved.IsImpersonating)
	assert.Equal(t, "sec-1", resolved.ActingAs.ID)

	// Stopping clears the stored state
	restored, err := svc.StopImpersonating(context.Background(), resolved, "jti-1")
	require.NoError(t, err)
	assert.False(t, restored.IsImpersonating)

	after, err := svc.Resolve(context.Background(), superAdmin(), "jti-1")
	require.NoError(t, err)
	assert.False(t, after.IsImpersonating)
}

func TestServiceImpersonateSelfRejected(t *testing.T) {
	svc := testService(&fakeDirectory{}, newFakeSessions())

	operator := Resolve(superAdmin())
	got, err := svc.Impersonate(context.Background(), operator, "jti-1", operator.ActingAs.ID)
	require.Error(t, err)
	assert.True(t, xerrors.Is(err, xerrors.ErrInvalidInput))
	assert.Equal(t, operator, got)
}

func TestServiceImpersonateUnknownTarget(t *testing.T) {
	svc := testService(&fakeDirectory{users: map[string]*identitydom.Principal{}}, newFakeSessions())

	operator := Resolve(superAdmin())
	_, err := svc.Impersonate(context.Background(), operator, "jti-1", "ghost")
	require.Error(t, err)
	assert.True(t, xerrors.Is(err, xerrors.ErrNotFound))
}

func TestServiceResolveDegradesOnSessionStoreFailure(t *testing.T) {
	sess := newFakeSessions()
	sess.loadErr = errors.New("redis down")
	svc := testService(&fakeDirectory{}, sess)

	eff, err := svc.Resolve(context.Background(), superAdmin(), "jti-1")
	require.NoError(t, err)
	assert.False(t, eff.IsImpersonating)
	assert.Equal(t, "sa-1", eff.ActingAs.ID)
}

func TestServiceResolveClearsVanishedTarget(t *testing.T) {
	dir := &fakeDirectory{users: map[string]*identitydom.Principal{}}
	sess := newFakeSessions()
	sess.states["jti-1"] = &session.ImpersonationState{TargetID: "gone", StartedBy: "sa-1"}
	svc := testService(dir, sess)

	eff, err := svc.Resolve(context.Background(), superAdmin(), "jti-1")
	require.NoError(t, err)
	assert.False(t, eff.IsImpersonating)
	assert.Nil(t, sess.states["jti-1"])
}
