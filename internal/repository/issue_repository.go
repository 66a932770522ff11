package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/grievance-desk/sla-service/internal/domain"
)

// ErrStaleIssue is returned when an issue changed after it was read.
var ErrStaleIssue = errors.New("issue modified concurrently")

// SlaUpdate is the SLA state written back by the escalation cycle.
type SlaUpdate struct {
	IssueID           string
	ExpectedUpdatedAt time.Time
	Priority          domain.IssuePriority
	SlaStatus         domain.SlaStatus
	SlaDeadline       *time.Time
	HoursElapsed      float64
	EscalationLevel   int
}

// SlaCount is one bucket of the SLA compliance summary.
type SlaCount struct {
	SlaStatus domain.SlaStatus
	Priority  domain.IssuePriority
	Count     int
}

// IssueRepository encapsulates issue persistence.
type IssueRepository interface {
	Create(ctx context.Context, issue *domain.Issue) error
	GetByID(ctx context.Context, id string) (*domain.Issue, error)
	ListOpenIssues(ctx context.Context, afterID string, limit int) ([]domain.Issue, error)
	ApplyEvaluation(ctx context.Context, update SlaUpdate, history *domain.IssueHistory) error
	Save(ctx context.Context, issue *domain.Issue, expectedUpdatedAt time.Time, history *domain.IssueHistory) error
	CountBySlaStatus(ctx context.Context) ([]SlaCount, error)
}

type issueRepository struct {
	pool *pgxpool.Pool
}

// NewIssueRepository instantiates repository.
func NewIssueRepository(pool *pgxpool.Pool) IssueRepository {
	return &issueRepository{pool: pool}
}

const issueColumns = `id, external_key, requester_id, assignee_id, title, description, status, priority,
               sla_status, sla_deadline, sla_hours_elapsed, sla_final, escalation_level,
               created_at, updated_at, closed_at`

func (r *issueRepository) Create(ctx context.Context, issue *domain.Issue) error {
	const query = `
        INSERT INTO issues (external_key, requester_id, assignee_id, title, description, status, priority, sla_status, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,COALESCE($9::timestamptz, NOW()))
        RETURNING id, created_at, updated_at`
	if issue.SlaStatus == "" {
		issue.SlaStatus = domain.SlaStatusPending
	}
	var createdAt any
	if !issue.CreatedAt.IsZero() {
		createdAt = issue.CreatedAt
	}
	return r.pool.QueryRow(ctx, query,
		issue.ExternalKey,
		issue.RequesterID,
		issue.AssigneeID,
		issue.Title,
		issue.Description,
		issue.Status,
		issue.Priority,
		issue.SlaStatus,
		createdAt,
	).Scan(&issue.ID, &issue.CreatedAt, &issue.UpdatedAt)
}

func (r *issueRepository) GetByID(ctx context.Context, id string) (*domain.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues WHERE id=$1`
	issue, err := scanIssue(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	return issue, nil
}

// ListOpenIssues pages through active issues by ascending id. An empty
// afterID starts from the beginning.
func (r *issueRepository) ListOpenIssues(ctx context.Context, afterID string, limit int) ([]domain.Issue, error) {
	statuses := make([]string, 0, 4)
	for _, s := range domain.ActiveIssueStatuses() {
		statuses = append(statuses, string(s))
	}

	query := `SELECT ` + issueColumns + ` FROM issues WHERE status = ANY($1)`
	args := []any{statuses}
	if afterID != "" {
		args = append(args, afterID)
		query += fmt.Sprintf(" AND id > $%d::uuid", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY id ASC LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *issue)
	}
	return result, rows.Err()
}

// ApplyEvaluation writes the SLA state and its audit entry in one
// transaction. The write only lands if the issue is unchanged since it was
// read, still active and not frozen; otherwise ErrStaleIssue is returned.
func (r *issueRepository) ApplyEvaluation(ctx context.Context, update SlaUpdate, history *domain.IssueHistory) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const query = `
        UPDATE issues SET priority=$1, sla_status=$2, sla_deadline=$3, sla_hours_elapsed=$4,
            escalation_level=$5, updated_at=NOW()
        WHERE id=$6 AND updated_at=$7 AND sla_final=FALSE AND status = ANY($8)`
	statuses := make([]string, 0, 4)
	for _, s := range domain.ActiveIssueStatuses() {
		statuses = append(statuses, string(s))
	}
	cmd, err := tx.Exec(ctx, query,
		update.Priority,
		update.SlaStatus,
		update.SlaDeadline,
		update.HoursElapsed,
		update.EscalationLevel,
		update.IssueID,
		update.ExpectedUpdatedAt,
		statuses,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrStaleIssue
	}

	if history != nil {
		history.IssueID = update.IssueID
		if err := insertHistory(ctx, tx, history); err != nil {
			return fmt.Errorf("insert history: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// Save persists a staff change to an issue together with its audit entry.
func (r *issueRepository) Save(ctx context.Context, issue *domain.Issue, expectedUpdatedAt time.Time, history *domain.IssueHistory) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const query = `
        UPDATE issues SET assignee_id=$1, status=$2, priority=$3, sla_status=$4, sla_deadline=$5,
            sla_hours_elapsed=$6, sla_final=$7, escalation_level=$8, closed_at=$9, updated_at=NOW()
        WHERE id=$10 AND updated_at=$11
        RETURNING updated_at`
	err = tx.QueryRow(ctx, query,
		issue.AssigneeID,
		issue.Status,
		issue.Priority,
		issue.SlaStatus,
		issue.SlaDeadline,
		issue.SlaHoursElapsed,
		issue.SlaFinal,
		issue.EscalationLevel,
		issue.ClosedAt,
		issue.ID,
		expectedUpdatedAt,
	).Scan(&issue.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrStaleIssue
	}
	if err != nil {
		return err
	}

	if history != nil {
		history.IssueID = issue.ID
		if err := insertHistory(ctx, tx, history); err != nil {
			return fmt.Errorf("insert history: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (r *issueRepository) CountBySlaStatus(ctx context.Context) ([]SlaCount, error) {
	const query = `
        SELECT sla_status, priority, COUNT(*)
        FROM issues GROUP BY sla_status, priority ORDER BY sla_status, priority`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []SlaCount
	for rows.Next() {
		var c SlaCount
		if err := rows.Scan(&c.SlaStatus, &c.Priority, &c.Count); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func scanIssue(row pgx.Row) (*domain.Issue, error) {
	var issue domain.Issue
	if err := row.Scan(
		&issue.ID,
		&issue.ExternalKey,
		&issue.RequesterID,
		&issue.AssigneeID,
		&issue.Title,
		&issue.Description,
		&issue.Status,
		&issue.Priority,
		&issue.SlaStatus,
		&issue.SlaDeadline,
		&issue.SlaHoursElapsed,
		&issue.SlaFinal,
		&issue.EscalationLevel,
		&issue.CreatedAt,
		&issue.UpdatedAt,
		&issue.ClosedAt,
	); err != nil {
		return nil, err
	}
	return &issue, nil
}
