// internal/repository/postgres/presence_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fedportal-service/internal/domain/presence"
	xerrors "fedportal-service/internal/pkg/errors"
)

type PresenceRepository struct {
	db *pgxpool.Pool
}

func NewPresenceRepository(db *pgxpool.Pool) *PresenceRepository {
	return &PresenceRepository{db: db}
}

// Insert creates a new presence record.
func (r *PresenceRepository) Insert(ctx context.Context, rec *presence.Record) error {
	query := `
		INSERT INTO presence_sessions
			(id, user_id, user_email, user_name, avatar_url, current_page, current_tool, state, last_activity, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.Exec(ctx, query,
		rec.SessionID, rec.UserID, rec.UserEmail, rec.DisplayName, rec.AvatarURL,
		rec.CurrentPage, string(rec.CurrentTool), string(rec.State),
		rec.LastActivityAt, rec.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert presence record: %w", err)
	}

	return nil
}

// FindByID retrieves one record by session id.
func (r *PresenceRepository) FindByID(ctx context.Context, sessionID string) (*presence.Record, error) {
	query := `
		SELECT id, user_id, user_email, user_name, avatar_url, current_page, current_tool, state, last_activity, started_at
		FROM presence_sessions
		WHERE id = $1
	`

	var rec presence.Record
	var tool, state string
	err := r.db.QueryRow(ctx, query, sessionID).Scan(
		&rec.SessionID, &rec.UserID, &rec.UserEmail, &rec.DisplayName, &rec.AvatarURL,
		&rec.CurrentPage, &tool, &state, &rec.LastActivityAt, &rec.StartedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find presence record: %w", err)
	}

	rec.CurrentTool = presence.Tool(tool)
	rec.State = presence.State(state)
	return &rec, nil
}

// Touch refreshes last_activity for a heartbeat.
func (r *PresenceRepository) Touch(ctx context.Context, sessionID string, at time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE presence_sessions SET last_activity = $2 WHERE id = $1`,
		sessionID, at,
	)
	if err != nil {
		return fmt.Errorf("failed to touch presence record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// SetState tags the record with a lifecycle state. Away records are retained,
// never deleted.
func (r *PresenceRepository) SetState(ctx context.Context, sessionID string, state presence.State, at time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE presence_sessions SET state = $2, last_activity = $3 WHERE id = $1`,
		sessionID, string(state), at,
	)
	if err != nil {
		return fmt.Errorf("failed to set presence state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// UpdateActivity updates page, tool and last_activity in one write.
func (r *PresenceRepository) UpdateActivity(ctx context.Context, sessionID, page string, tool presence.Tool, at time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE presence_sessions SET current_page = $2, current_tool = $3, last_activity = $4 WHERE id = $1`,
		sessionID, page, string(tool), at,
	)
	if err != nil {
		return fmt.Errorf("failed to update presence activity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// Delete removes one record.
func (r *PresenceRepository) Delete(ctx context.Context, sessionID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM presence_sessions WHERE id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete presence record: %w", err)
	}
	return nil
}

// DeleteByUserExcept clears other live records of a user. keepID may be
// empty to clear them all (single-active-session policy).
func (r *PresenceRepository) DeleteByUserExcept(ctx context.Context, userID, keepID string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM presence_sessions WHERE user_id = $1 AND id <> $2`,
		userID, keepID,
	)
	if err != nil {
		return fmt.Errorf("failed to clear user sessions: %w", err)
	}
	return nil
}

// PurgeBefore reaps records whose last activity predates the cutoff.
func (r *PresenceRepository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM presence_sessions WHERE last_activity < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge stale presence records: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListSince returns live records in descending recency order.
func (r *PresenceRepository) ListSince(ctx context.Context, cutoff time.Time) ([]presence.Record, error) {
	query := `
		SELECT id, user_id, user_email, user_name, avatar_url, current_page, current_tool, state, last_activity, started_at
		FROM presence_sessions
		WHERE last_activity >= $1
		ORDER BY last_activity DESC
	`

	rows, err := r.db.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list presence records: %w", err)
	}
	defer rows.Close()

	var records []presence.Record
	for rows.Next() {
		var rec presence.Record
		var tool, state string
		if err := rows.Scan(
			&rec.SessionID, &rec.UserID, &rec.UserEmail, &rec.DisplayName, &rec.AvatarURL,
			&rec.CurrentPage, &tool, &state, &rec.LastActivityAt, &rec.StartedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan presence record: %w", err)
		}
		rec.CurrentTool = presence.Tool(tool)
		rec.State = presence.State(state)
		records = append(records, rec)
	}

	return records, rows.Err()
}

// CountSince counts sessions started within the window, optionally scoped
// to one owner.
func (r *PresenceRepository) CountSince(ctx context.Context, since time.Time, ownerID string) (int, error) {
	query := `SELECT COUNT(*) FROM presence_sessions WHERE started_at >= $1`
	args := []interface{}{since}
	if ownerID != "" {
		query += ` AND user_id = $2`
		args = append(args, ownerID)
	}

	var count int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return count, nil
}

// EmailsSince returns distinct emails of sessions active within the window.
func (r *PresenceRepository) EmailsSince(ctx context.Context, since time.Time) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT DISTINCT user_email FROM presence_sessions WHERE last_activity >= $1`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list session emails: %w", err)
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("failed to scan session email: %w", err)
		}
		emails = append(emails, email)
	}

	return emails, rows.Err()
}
