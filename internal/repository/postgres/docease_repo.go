// internal/repository/postgres/docease_repo.go
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"fedportal-service/internal/domain/metrics"
)

// DoceaseRepository reads the document-generation log. This source keys
// authors by user id.
type DoceaseRepository struct {
	db *pgxpool.Pool
}

func NewDoceaseRepository(db *pgxpool.Pool) *DoceaseRepository {
	return &DoceaseRepository{db: db}
}

func (r *DoceaseRepository) scopeClause(scope metrics.Scope, argPos int) (string, []interface{}) {
	if scope.Restricted && scope.OwnerID != "" {
		return fmt.Sprintf(" AND user_id = $%d", argPos), []interface{}{scope.OwnerID}
	}
	return "", nil
}

// CountSince counts documents generated within the window.
func (r *DoceaseRepository) CountSince(ctx context.Context, since time.Time, scope metrics.Scope) (int, error) {
	return r.CountBetween(ctx, since, time.Time{}, scope)
}

// CountBetween counts documents in [from, to). A zero `to` leaves the window
// open-ended.
func (r *DoceaseRepository) CountBetween(ctx context.Context, from, to time.Time, scope metrics.Scope) (int, error) {
	query := `SELECT COUNT(*) FROM docease_documents WHERE created_at >= $1`
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
		return 0, fmt.Errorf("failed to count docease documents: %w", err)
	}
	return count, nil
}

// TypeCounts groups the window's documents by type, descending by count.
func (r *DoceaseRepository) TypeCounts(ctx context.Context, since time.Time, scope metrics.Scope) ([]metrics.TypeStat, error) {
	query := `
		SELECT COALESCE(NULLIF(document_type, ''), 'Other') AS doc_type, COUNT(*) AS cnt
		FROM docease_documents
		WHERE created_at >= $1`
	args := []interface{}{since}

	clause, extra := r.scopeClause(scope, len(args)+1)
	query += clause
	args = append(args, extra...)

	query += ` GROUP BY doc_type ORDER BY cnt DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to group docease documents: %w", err)
	}
	defer rows.Close()

	var stats []metrics.TypeStat
	for rows.Next() {
		var s metrics.TypeStat
		if err := rows.Scan(&s.Label, &s.Count); err != nil {
			return nil, fmt.Errorf("failed to scan type count: %w", err)
		}
		stats = append(stats, s)
	}

	return stats, rows.Err()
}

// UserIDsSince returns distinct author ids within the window.
func (r *DoceaseRepository) UserIDsSince(ctx context.Context, since time.Time, scope metrics.Scope) ([]string, error) {
	query := `SELECT DISTINCT user_id FROM docease_documents WHERE created_at >= $1 AND user_id IS NOT NULL`
	args := []interface{}{since}

	clause, extra := r.scopeClause(scope, len(args)+1)
	query += clause
	args = append(args, extra...)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list docease authors: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan author id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// ListSince returns the window's documents, newest first.
func (r *DoceaseRepository) ListSince(ctx context.Context, since time.Time, scope metrics.Scope) ([]metrics.DoceaseEvent, error) {
	query := `
		SELECT id, COALESCE(user_id, ''), COALESCE(title, ''), COALESCE(document_type, ''), metadata, created_at
		FROM docease_documents
		WHERE created_at >= $1`
	args := []interface{}{since}

	clause, extra := r.scopeClause(scope, len(args)+1)
	query += clause
	args = append(args, extra...)

	query += ` ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list docease documents: %w", err)
	}
	defer rows.Close()

	var events []metrics.DoceaseEvent
	for rows.Next() {
		var e metrics.DoceaseEvent
		var metadataJSON []byte
		if err := rows.Scan(&e.ID, &e.UserID, &e.Title, &e.DocumentType, &metadataJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan docease document: %w", err)
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
