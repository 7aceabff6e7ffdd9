// internal/repository/postgres/signease_repo.go
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"fedportal-service/internal/domain/metrics"
)

// SigneaseRepository reads the signature-tool activity log. This source keys
// authors by email.
type SigneaseRepository struct {
	db *pgxpool.Pool
}

func NewSigneaseRepository(db *pgxpool.Pool) *SigneaseRepository {
	return &SigneaseRepository{db: db}
}

func (r *SigneaseRepository) scopeClause(scope metrics.Scope, argPos int) (string, []interface{}) {
	if scope.Restricted && scope.OwnerEmail != "" {
		return fmt.Sprintf(" AND user_email = $%d", argPos), []interface{}{scope.OwnerEmail}
	}
	return "", nil
}

// CountSince counts activity rows within the window.
func (r *SigneaseRepository) CountSince(ctx context.Context, since time.Time, scope metrics.Scope) (int, error) {
	return r.CountBetween(ctx, since, time.Time{}, scope)
}

// CountBetween counts activity rows in [from, to). A zero `to` leaves the
// window open-ended.
func (r *SigneaseRepository) CountBetween(ctx context.Context, from, to time.Time, scope metrics.Scope) (int, error) {
	query := `SELECT COUNT(*) FROM signease_activity WHERE created_at >= $1`
	args := []interface{}{from}

	if !to.IsZero() {
		query += fmt.Sprintf(" AND created_at < $%d", len(args)+1)
		args = append(args, to)
	}
	clause, extra := r.scopeClause(scope, len(args)+1)
	query += clause
	args = append(args, extra...)

	var count int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count signease activity: %w", err)
	}
	return count, nil
}

// EmailsSince returns distinct author emails within the window.
func (r *SigneaseRepository) EmailsSince(ctx context.Context, since time.Time, scope metrics.Scope) ([]string, error) {
	query := `SELECT DISTINCT user_email FROM signease_activity WHERE created_at >= $1`
	args := []interface{}{since}

	clause, extra := r.scopeClause(scope, len(args)+1)
	query += clause
	args = append(args, extra...)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list signease authors: %w", err)
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("failed to scan author email: %w", err)
		}
		emails = append(emails, email)
	}

	return emails, rows.Err()
}

// ListSince returns the window's activity rows, newest first.
func (r *SigneaseRepository) ListSince(ctx context.Context, since time.Time, scope metrics.Scope) ([]metrics.SigneaseEvent, error) {
	query := `
		SELECT id, user_email, COALESCE(user_name, ''), action_type,
		       COALESCE(document_name, ''), COALESCE(recipient_email, ''), COALESCE(recipient_name, ''),
		       COALESCE(envelope_id, ''), metadata, created_at
		FROM signease_activity
		WHERE created_at >= $1`
	args := []interface{}{since}

	clause, extra := r.scopeClause(scope, len(args)+1)
	query += clause
	args = append(args, extra...)

	query += ` ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list signease activity: %w", err)
	}
	defer rows.Close()

	var events []metrics.SigneaseEvent
	for rows.Next() {
		var e metrics.SigneaseEvent
		var metadataJSON []byte
		if err := rows.Scan(
			&e.ID, &e.UserEmail, &e.UserName, &e.ActionType,
			&e.DocumentName, &e.RecipientEmail, &e.RecipientName,
			&e.EnvelopeID, &metadataJSON, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan signease activity: %w", err)
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &e.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		events = append(events, e)
	}

	return events, rows.Err()
}
