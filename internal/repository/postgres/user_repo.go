// internal/repository/postgres/user_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fedportal-service/internal/domain/identity"
	xerrors "fedportal-service/internal/pkg/errors"
)

type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID resolves one portal user to a principal.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*identity.Principal, error) {
	query := `
		SELECT id, email, COALESCE(name, ''), role, COALESCE(avatar_url, '')
		FROM users
		WHERE id = $1 AND status = 'active'
	`

	var p identity.Principal
	var role string
	err := r.db.QueryRow(ctx, query, id).Scan(&p.ID, &p.Email, &p.DisplayName, &role, &p.AvatarURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	parsed, err := identity.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("user %s has invalid role: %w", id, err)
	}
	p.Role = parsed

	return &p, nil
}

// Directory returns all active users. Used to resolve event-source author
// ids to emails and to enrich the activity feed.
func (r *UserRepository) Directory(ctx context.Context) ([]identity.Principal, error) {
	query := `
		SELECT id, email, COALESCE(name, ''), role, COALESCE(avatar_url, '')
		FROM users
		WHERE status = 'active'
		ORDER BY email
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []identity.Principal
	for rows.Next() {
		var p identity.Principal
		var role string
		if err := rows.Scan(&p.ID, &p.Email, &p.DisplayName, &role, &p.AvatarURL); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		// Skip rows carrying roles outside the closed set rather than
		// failing the whole directory
		parsed, err := identity.ParseRole(role)
		if err != nil {
			continue
		}
		p.Role = parsed
		users = append(users, p)
	}

	return users, rows.Err()
}

// UpdateRole changes one user's role.
func (r *UserRepository) UpdateRole(ctx context.Context, id string, role identity.Role) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET role = $2 WHERE id = $1`, id, string(role))
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// Delete marks one user deleted.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET status = 'deleted' WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// Invite inserts a pending user the auth collaborator will activate on
// first login.
func (r *UserRepository) Invite(ctx context.Context, id, email string, role identity.Role, invitedBy string) error {
	query := `
		INSERT INTO users (id, email, role, status, invited_by, created_at)
		VALUES ($1, $2, $3, 'invited', $4, $5)
		ON CONFLICT (email) DO NOTHING
	`

	tag, err := r.db.Exec(ctx, query, id, email, string(role), invitedBy, time.Now())
	if err != nil {
		return fmt.Errorf("failed to invite user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s already exists", email)
	}
	return nil
}
