package dto

import (
	"time"

	"github.com/grievance-desk/sla-service/internal/domain"
	"github.com/grievance-desk/sla-service/internal/sla"
)

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status  string `json:"status" validate:"required,oneof=open in_progress pending escalated resolved closed"`
	Comment string `json:"comment" validate:"max=2000"`
}

// UpdatePriorityRequest payload.
type UpdatePriorityRequest struct {
	Priority string `json:"priority" validate:"required,oneof=low medium high critical"`
}

// IssueResponse provides issue info with its stored SLA state.
type IssueResponse struct {
	ID              string               `json:"id"`
	ExternalKey     string               `json:"external_key"`
	RequesterID     string               `json:"requester_id"`
	AssigneeID      *string              `json:"assignee_id"`
	Title           string               `json:"title"`
	Description     string               `json:"description"`
	Status          domain.IssueStatus   `json:"status"`
	Priority        domain.IssuePriority `json:"priority"`
	SlaStatus       domain.SlaStatus     `json:"sla_status"`
	SlaDeadline     *time.Time           `json:"sla_deadline"`
	SlaHoursElapsed float64              `json:"sla_hours_elapsed"`
	SlaFinal        bool                 `json:"sla_final"`
	EscalationLevel int                  `json:"escalation_level"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
	ClosedAt        *time.Time           `json:"closed_at"`
}

// SlaEvaluationResponse is a live evaluation next to the stored state.
type SlaEvaluationResponse struct {
	IssueID                    string                `json:"issue_id"`
	EvaluatedAt                time.Time             `json:"evaluated_at"`
	WorkingHoursElapsed        float64               `json:"working_hours_elapsed"`
	Deadline                   *time.Time            `json:"deadline"`
	Status                     domain.SlaStatus      `json:"status"`
	Priority                   domain.IssuePriority  `json:"priority"`
	RecommendedPriority        *domain.IssuePriority `json:"recommended_priority"`
	RecommendedEscalationLevel int                   `json:"recommended_escalation_level"`
	Stored                     StoredSlaState        `json:"stored"`
	Stale                      bool                  `json:"stale"`
}

// StoredSlaState is the SLA state as last persisted.
type StoredSlaState struct {
	Priority        domain.IssuePriority `json:"priority"`
	SlaStatus       domain.SlaStatus     `json:"sla_status"`
	EscalationLevel int                  `json:"escalation_level"`
	Final           bool                 `json:"final"`
}

// HistoryEntryResponse represents one audit entry.
type HistoryEntryResponse struct {
	ID            string                 `json:"id"`
	ChangedByType domain.ChangeActorType `json:"changed_by_type"`
	ChangedByID   *string                `json:"changed_by_id"`
	ChangeType    domain.IssueChangeType `json:"change_type"`
	Reason        string                 `json:"reason,omitempty"`
	OldValue      map[string]any         `json:"old_value"`
	NewValue      map[string]any         `json:"new_value"`
	CreatedAt     time.Time              `json:"created_at"`
}

// NewIssueResponse maps a domain issue.
func NewIssueResponse(issue *domain.Issue) IssueResponse {
	return IssueResponse{
		ID:              issue.ID,
		ExternalKey:     issue.ExternalKey,
		RequesterID:     issue.RequesterID,
		AssigneeID:      issue.AssigneeID,
		Title:           issue.Title,
		Description:     issue.Description,
		Status:          issue.Status,
		Priority:        issue.Priority,
		SlaStatus:       issue.SlaStatus,
		SlaDeadline:     issue.SlaDeadline,
		SlaHoursElapsed: issue.SlaHoursElapsed,
		SlaFinal:        issue.SlaFinal,
		EscalationLevel: issue.EscalationLevel,
		CreatedAt:       issue.CreatedAt,
		UpdatedAt:       issue.UpdatedAt,
		ClosedAt:        issue.ClosedAt,
	}
}

// NewSlaEvaluationResponse maps an evaluation of issue made at at.
func NewSlaEvaluationResponse(issue *domain.Issue, eval sla.Evaluation, at time.Time) SlaEvaluationResponse {
	return SlaEvaluationResponse{
		IssueID:                    eval.IssueID,
		EvaluatedAt:                at,
		WorkingHoursElapsed:        eval.WorkingHoursElapsed,
		Deadline:                   eval.Deadline,
		Status:                     eval.Status,
		Priority:                   eval.Priority,
		RecommendedPriority:        eval.RecommendedPriority,
		RecommendedEscalationLevel: eval.RecommendedEscalationLevel,
		Stored: StoredSlaState{
			Priority:        issue.Priority,
			SlaStatus:       issue.SlaStatus,
			EscalationLevel: issue.EscalationLevel,
			Final:           issue.SlaFinal,
		},
		Stale: !issue.Status.IsTerminal() && eval.Differs(sla.SnapshotOf(issue)),
	}
}

// NewHistoryEntryResponse maps an audit entry.
func NewHistoryEntryResponse(h domain.IssueHistory) HistoryEntryResponse {
	return HistoryEntryResponse{
		ID:            h.ID,
		ChangedByType: h.ChangedByType,
		ChangedByID:   h.ChangedByID,
		ChangeType:    h.ChangeType,
		Reason:        h.Reason,
		OldValue:      h.OldValue,
		NewValue:      h.NewValue,
		CreatedAt:     h.CreatedAt,
	}
}
