// internal/pkg/session/manager.go
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Manager keeps per-session portal state in Redis: the impersonation record
// and the blocked-interactions counter the read-only overlay maintains.
type Manager struct {
	client *redis.Client
	ttl    time.Duration
}

func NewManager(client *redis.Client, ttl time.Duration) *Manager {
	return &Manager{
		client: client,
		ttl:    ttl,
	}
}

// SaveImpersonation stores the impersonation state for a session.
func (m *Manager) SaveImpersonation(ctx context.Context, jti string, state *ImpersonationState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal impersonation state: %w", err)
	}

	if err := m.client.Set(ctx, m.impersonationKey(jti), data, m.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store impersonation state: %w", err)
	}

	return nil
}

// LoadImpersonation returns the session's impersonation state, or nil when
// the session is not impersonating.
func (m *Manager) LoadImpersonation(ctx context.Context, jti string) (*ImpersonationState, error) {
	data, err := m.client.Get(ctx, m.impersonationKey(jti)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load impersonation state: %w", err)
	}

	var state ImpersonationState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal impersonation state: %w", err)
	}

	return &state, nil
}

// ClearImpersonation removes the session's impersonation state.
func (m *Manager) ClearImpersonation(ctx context.Context, jti string) error {
	return m.client.Del(ctx, m.impersonationKey(jti)).Err()
}

// IncrementBlocked bumps the session-local blocked-interactions counter and
// returns the new value.
func (m *Manager) IncrementBlocked(ctx context.Context, jti string) (int64, error) {
	key := m.blockedKey(jti)
	count, err := m.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment blocked counter: %w", err)
	}
	// Counter lives only as long as the session
	m.client.Expire(ctx, key, m.ttl)
	return count, nil
}

// BlockedCount reads the session-local blocked-interactions counter.
func (m *Manager) BlockedCount(ctx context.Context, jti string) (int64, error) {
	count, err := m.client.Get(ctx, m.blockedKey(jti)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read blocked counter: %w", err)
	}
	return count, nil
}

func (m *Manager) impersonationKey(jti string) string {
	return fmt.Sprintf("portal:impersonation:%s", jti)
}

func (m *Manager) blockedKey(jti string) string {
	return fmt.Sprintf("portal:blocked:%s", jti)
}
