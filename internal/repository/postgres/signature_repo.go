// internal/repository/postgres/signature_repo.go
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"fedportal-service/internal/domain/metrics"
)

// SignatureRepository reads the legacy signature log, kept for historical
// counts. Authors are keyed by user id.
type SignatureRepository struct {
	db *pgxpool.Pool
}

func NewSignatureRepository(db *pgxpool.Pool) *SignatureRepository {
	return &SignatureRepository{db: db}
}

func (r *SignatureRepository) scopeClause(scope metrics.Scope, argPos int) (string, []interface{}) {
	if scope.Restricted && scope.OwnerID != "" {
		return fmt.Sprintf(" AND user_id = $%d", argPos), []interface{}{scope.OwnerID}
	}
	return "", nil
}

// CountSince counts legacy signatures within the window.
func (r *SignatureRepository) CountSince(ctx context.Context, since time.Time, scope metrics.Scope) (int, error) {
	query := `SELECT COUNT(*) FROM signatures WHERE signed_at >= $1`
	args := []interface{}{since}

	clause, extra := r.scopeClause(scope, len(args)+1)
	query += clause
	args = append(args, extra...)

	var count int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count signatures: %w", err)
	}
	return count, nil
}

// UserIDsSince returns distinct signer ids within the window.
func (r *SignatureRepository) UserIDsSince(ctx context.Context, since time.Time, scope metrics.Scope) ([]string, error) {
	query := `SELECT DISTINCT user_id FROM signatures WHERE signed_at >= $1 AND user_id IS NOT NULL`
	args := []interface{}{since}

	clause, extra := r.scopeClause(scope, len(args)+1)
	query += clause
	args = append(args, extra...)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list signers: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan signer id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// ListSince returns the window's legacy signatures, newest first.
func (r *SignatureRepository) ListSince(ctx context.Context, since time.Time, scope metrics.Scope) ([]metrics.SignatureEvent, error) {
	query := `
		SELECT id, COALESCE(user_id, ''), COALESCE(document_id, 0), signed_at
		FROM signatures
		WHERE signed_at >= $1`
	args := []interface{}{since}

	clause, extra := r.scopeClause(scope, len(args)+1)
	query += clause
	args = append(args, extra...)

	query += ` ORDER BY signed_at DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list signatures: %w", err)
	}
	defer rows.Close()

	var events []metrics.SignatureEvent
	for rows.Next() {
		var e metrics.SignatureEvent
		if err := rows.Scan(&e.ID, &e.UserID, &e.DocumentID, &e.SignedAt); err != nil {
			return nil, fmt.Errorf("failed to scan signature: %w", err)
		}
		events = append(events, e)
	}

	return events, rows.Err()
}
