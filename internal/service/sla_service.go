package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/grievance-desk/sla-service/internal/domain"
	"github.com/grievance-desk/sla-service/internal/escalation"
	"github.com/grievance-desk/sla-service/internal/events"
	"github.com/grievance-desk/sla-service/internal/repository"
	"github.com/grievance-desk/sla-service/internal/sla"
	"github.com/grievance-desk/sla-service/pkg/util"
)

// SummaryInvalidator drops cached SLA summaries after writes.
type SummaryInvalidator interface {
	Invalidate()
}

// SlaService evaluates issues on demand and persists escalation mutations.
type SlaService struct {
	issues     repository.IssueRepository
	calendar   *sla.WorkingCalendar
	policy     sla.Policy
	dispatcher events.Dispatcher
	summaries  SummaryInvalidator
	clock      sla.Clock
	logger     *zap.Logger
}

// SlaDependencies bundles collaborators for the SLA service.
type SlaDependencies struct {
	IssueRepo  repository.IssueRepository
	Calendar   *sla.WorkingCalendar
	Policy     sla.Policy
	Dispatcher events.Dispatcher
	Summaries  SummaryInvalidator
	Clock      sla.Clock
	Logger     *zap.Logger
}

// NewSlaService constructs the service.
func NewSlaService(deps SlaDependencies) *SlaService {
	if deps.Clock == nil {
		deps.Clock = sla.SystemClock
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &SlaService{
		issues:     deps.IssueRepo,
		calendar:   deps.Calendar,
		policy:     deps.Policy,
		dispatcher: deps.Dispatcher,
		summaries:  deps.Summaries,
		clock:      deps.Clock,
		logger:     deps.Logger,
	}
}

// IssueEvaluation is an on-demand classification of a stored issue.
type IssueEvaluation struct {
	Issue      *domain.Issue
	Evaluation sla.Evaluation
	At         time.Time
}

// EvaluateIssue classifies a single issue at the current instant without
// persisting anything.
func (s *SlaService) EvaluateIssue(ctx context.Context, issueID string) (IssueEvaluation, error) {
	issue, err := s.issues.GetByID(ctx, issueID)
	if err != nil {
		return IssueEvaluation{}, err
	}
	now := s.clock()
	return IssueEvaluation{
		Issue:      issue,
		Evaluation: sla.Classify(s.calendar, s.policy, sla.SnapshotOf(issue), now),
		At:         now,
	}, nil
}

// ApplyMutation persists one cycle mutation with its audit entry. A
// concurrent change to the issue surfaces as a conflict and is left for the
// next cycle.
func (s *SlaService) ApplyMutation(ctx context.Context, m escalation.Mutation, at time.Time) error {
	next := m.Next()
	update := repository.SlaUpdate{
		IssueID:           m.IssueID,
		ExpectedUpdatedAt: m.ExpectedUpdatedAt,
		Priority:          next.Priority,
		SlaStatus:         next.SlaStatus,
		SlaDeadline:       m.Evaluation.Deadline,
		HoursElapsed:      m.Evaluation.WorkingHoursElapsed,
		EscalationLevel:   next.EscalationLevel,
	}
	entry := &domain.IssueHistory{
		IssueID:       m.IssueID,
		ChangedByType: domain.ActorTypeSystem,
		ChangeType:    domain.ChangeTypeSlaEscalation,
		Reason:        domain.ReasonSlaEscalation,
		OldValue: map[string]any{
			"priority":         m.Previous.Priority,
			"sla_status":       m.Previous.SlaStatus,
			"escalation_level": m.Previous.EscalationLevel,
		},
		NewValue: map[string]any{
			"priority":         next.Priority,
			"sla_status":       next.SlaStatus,
			"escalation_level": next.EscalationLevel,
			"hours_elapsed":    m.Evaluation.WorkingHoursElapsed,
		},
		CreatedAt: at,
	}

	if err := s.issues.ApplyEvaluation(ctx, update, entry); err != nil {
		if errors.Is(err, repository.ErrStaleIssue) {
			return util.NewConflict("issue changed since evaluation", map[string]any{"issue_id": m.IssueID})
		}
		return fmt.Errorf("apply mutation %s: %w", m.IssueID, err)
	}

	if s.summaries != nil {
		s.summaries.Invalidate()
	}

	if next.SlaStatus != m.Previous.SlaStatus {
		s.publish(ctx, events.New(events.EventIssueSlaStatusChanged, m.IssueID, events.SystemActor, at,
			events.IssueSlaStatusChangedPayload{
				OldStatus:    m.Previous.SlaStatus,
				NewStatus:    next.SlaStatus,
				HoursElapsed: m.Evaluation.WorkingHoursElapsed,
				Deadline:     m.Evaluation.Deadline,
			}))
	}
	if m.Escalated() {
		s.publish(ctx, events.New(events.EventIssueSlaEscalated, m.IssueID, events.SystemActor, at,
			events.IssueSlaEscalatedPayload{
				OldPriority:  m.Previous.Priority,
				NewPriority:  next.Priority,
				OldLevel:     m.Previous.EscalationLevel,
				NewLevel:     next.EscalationLevel,
				SlaStatus:    next.SlaStatus,
				HoursElapsed: m.Evaluation.WorkingHoursElapsed,
				Reason:       domain.ReasonSlaEscalation,
			}))
	}
	return nil
}

func (s *SlaService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handlers failed",
			zap.String("event_type", string(event.Type)),
			zap.String("issue_id", event.IssueID),
			zap.Error(err))
	}
}
