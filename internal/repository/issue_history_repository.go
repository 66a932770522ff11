package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/grievance-desk/sla-service/internal/domain"
)

// IssueHistoryRepository stores audit entries.
type IssueHistoryRepository interface {
	Create(ctx context.Context, history *domain.IssueHistory) error
	ListByIssue(ctx context.Context, issueID string, limit int) ([]domain.IssueHistory, error)
}

type issueHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewIssueHistoryRepository builds repository.
func NewIssueHistoryRepository(pool *pgxpool.Pool) IssueHistoryRepository {
	return &issueHistoryRepository{pool: pool}
}

func (r *issueHistoryRepository) Create(ctx context.Context, history *domain.IssueHistory) error {
	return insertHistory(ctx, r.pool, history)
}

func (r *issueHistoryRepository) ListByIssue(ctx context.Context, issueID string, limit int) ([]domain.IssueHistory, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `
        SELECT id, issue_id, changed_by_type, changed_by_id, change_type, reason, old_value, new_value, created_at
        FROM issue_history WHERE issue_id=$1 ORDER BY created_at ASC, id ASC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, issueID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.IssueHistory
	for rows.Next() {
		var history domain.IssueHistory
		if err := rows.Scan(
			&history.ID,
			&history.IssueID,
			&history.ChangedByType,
			&history.ChangedByID,
			&history.ChangeType,
			&history.Reason,
			&history.OldValue,
			&history.NewValue,
			&history.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, history)
	}
	return result, rows.Err()
}

func insertHistory(ctx context.Context, q querier, history *domain.IssueHistory) error {
	const query = `
        INSERT INTO issue_history (issue_id, changed_by_type, changed_by_id, change_type, reason, old_value, new_value, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,COALESCE($8::timestamptz, NOW()))
        RETURNING id, created_at`
	var at any
	if !history.CreatedAt.IsZero() {
		at = history.CreatedAt
	}
	return q.QueryRow(ctx, query,
		history.IssueID,
		history.ChangedByType,
		history.ChangedByID,
		history.ChangeType,
		history.Reason,
		history.OldValue,
		history.NewValue,
		at,
	).Scan(&history.ID, &history.CreatedAt)
}
