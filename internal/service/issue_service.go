package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/grievance-desk/sla-service/internal/domain"
	"github.com/grievance-desk/sla-service/internal/events"
	"github.com/grievance-desk/sla-service/internal/repository"
	"github.com/grievance-desk/sla-service/internal/sla"
	"github.com/grievance-desk/sla-service/pkg/util"
)

// IssueService coordinates staff changes to issues.
type IssueService struct {
	issues     repository.IssueRepository
	history    repository.IssueHistoryRepository
	calendar   *sla.WorkingCalendar
	policy     sla.Policy
	dispatcher events.Dispatcher
	summaries  SummaryInvalidator
	clock      sla.Clock
	logger     *zap.Logger
}

// IssueDependencies bundles collaborators for the issue service.
type IssueDependencies struct {
	IssueRepo   repository.IssueRepository
	HistoryRepo repository.IssueHistoryRepository
	Calendar    *sla.WorkingCalendar
	Policy      sla.Policy
	Dispatcher  events.Dispatcher
	Summaries   SummaryInvalidator
	Clock       sla.Clock
	Logger      *zap.Logger
}

// NewIssueService constructs the service.
func NewIssueService(deps IssueDependencies) *IssueService {
	if deps.Clock == nil {
		deps.Clock = sla.SystemClock
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &IssueService{
		issues:     deps.IssueRepo,
		history:    deps.HistoryRepo,
		calendar:   deps.Calendar,
		policy:     deps.Policy,
		dispatcher: deps.Dispatcher,
		summaries:  deps.Summaries,
		clock:      deps.Clock,
		logger:     deps.Logger,
	}
}

// GetIssue returns a stored issue.
func (s *IssueService) GetIssue(ctx context.Context, issueID string) (*domain.Issue, error) {
	return s.issues.GetByID(ctx, issueID)
}

// History lists the audit trail of an issue, oldest first.
func (s *IssueService) History(ctx context.Context, issueID string, limit int) ([]domain.IssueHistory, error) {
	if _, err := s.issues.GetByID(ctx, issueID); err != nil {
		return nil, err
	}
	return s.history.ListByIssue(ctx, issueID, limit)
}

// UpdateStatus moves an issue through its workflow. Entering resolved or
// closed freezes the SLA outcome; reopening a resolved issue unfreezes it.
func (s *IssueService) UpdateStatus(ctx context.Context, staffID string, issueID string, newStatus domain.IssueStatus, comment string) (*domain.Issue, error) {
	if !newStatus.Valid() {
		return nil, util.NewValidationError("unknown status", map[string]any{"status": newStatus})
	}
	issue, err := s.issues.GetByID(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if !isValidTransition(issue.Status, newStatus) {
		return nil, util.NewValidationError("invalid status transition", map[string]any{
			"from": issue.Status,
			"to":   newStatus,
		})
	}

	now := s.clock()
	expected := issue.UpdatedAt
	oldStatus := issue.Status
	oldSla := issue.SlaStatus

	issue.Status = newStatus
	switch {
	case newStatus.IsTerminal() && !issue.SlaFinal:
		issue.ClosedAt = &now
		eval := sla.Classify(s.calendar, s.policy, sla.SnapshotOf(issue), now)
		issue.SlaStatus = eval.Status
		issue.SlaHoursElapsed = eval.WorkingHoursElapsed
		issue.SlaDeadline = eval.Deadline
		issue.SlaFinal = true
	case !newStatus.IsTerminal() && oldStatus.IsTerminal():
		issue.ClosedAt = nil
		issue.SlaFinal = false
		eval := sla.Classify(s.calendar, s.policy, sla.SnapshotOf(issue), now)
		issue.SlaStatus = eval.Status
		issue.SlaHoursElapsed = eval.WorkingHoursElapsed
		issue.SlaDeadline = eval.Deadline
	}

	entry := &domain.IssueHistory{
		ChangedByType: domain.ActorTypeStaff,
		ChangedByID:   &staffID,
		ChangeType:    domain.ChangeTypeStatus,
		OldValue:      map[string]any{"status": oldStatus, "sla_status": oldSla},
		NewValue: map[string]any{
			"status":     newStatus,
			"sla_status": issue.SlaStatus,
			"comment":    strings.TrimSpace(comment),
		},
		CreatedAt: now,
	}
	if err := s.save(ctx, issue, expected, entry); err != nil {
		return nil, err
	}

	actor := staffActor(staffID)
	s.publish(ctx, events.New(events.EventIssueStatusChanged, issue.ID, actor, now, events.IssueStatusChangedPayload{
		OldStatus: oldStatus,
		NewStatus: newStatus,
		Comment:   strings.TrimSpace(comment),
	}))
	if issue.SlaStatus != oldSla {
		s.publish(ctx, events.New(events.EventIssueSlaStatusChanged, issue.ID, actor, now, events.IssueSlaStatusChangedPayload{
			OldStatus:    oldSla,
			NewStatus:    issue.SlaStatus,
			HoursElapsed: issue.SlaHoursElapsed,
			Deadline:     issue.SlaDeadline,
		}))
	}
	return issue, nil
}

// UpdatePriority sets the priority chosen by staff. Staff may lower a
// priority the escalation cycle raised; the next cycle re-derives the SLA
// state against the new tier.
func (s *IssueService) UpdatePriority(ctx context.Context, staffID string, issueID string, newPriority domain.IssuePriority) (*domain.Issue, error) {
	if !newPriority.Valid() {
		return nil, util.NewValidationError("unknown priority", map[string]any{"priority": newPriority})
	}
	issue, err := s.issues.GetByID(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if issue.Status.IsTerminal() {
		return nil, util.NewValidationError("priority of a closed issue cannot change", map[string]any{"status": issue.Status})
	}
	if issue.Priority == newPriority {
		return issue, nil
	}

	now := s.clock()
	expected := issue.UpdatedAt
	oldPriority := issue.Priority
	issue.Priority = newPriority

	entry := &domain.IssueHistory{
		ChangedByType: domain.ActorTypeStaff,
		ChangedByID:   &staffID,
		ChangeType:    domain.ChangeTypePriority,
		OldValue:      map[string]any{"priority": oldPriority},
		NewValue:      map[string]any{"priority": newPriority},
		CreatedAt:     now,
	}
	if err := s.save(ctx, issue, expected, entry); err != nil {
		return nil, err
	}

	s.publish(ctx, events.New(events.EventIssuePriorityChanged, issue.ID, staffActor(staffID), now, events.IssuePriorityChangedPayload{
		OldPriority: oldPriority,
		NewPriority: newPriority,
	}))
	return issue, nil
}

func (s *IssueService) save(ctx context.Context, issue *domain.Issue, expected time.Time, entry *domain.IssueHistory) error {
	err := s.issues.Save(ctx, issue, expected, entry)
	if errors.Is(err, repository.ErrStaleIssue) {
		return util.NewConflict("issue changed concurrently; reload and retry", map[string]any{"issue_id": issue.ID})
	}
	if err != nil {
		return err
	}
	if s.summaries != nil {
		s.summaries.Invalidate()
	}
	return nil
}

var allowedTransitions = map[domain.IssueStatus][]domain.IssueStatus{
	domain.IssueStatusOpen:       {domain.IssueStatusInProgress, domain.IssueStatusPending, domain.IssueStatusEscalated, domain.IssueStatusResolved, domain.IssueStatusClosed},
	domain.IssueStatusInProgress: {domain.IssueStatusPending, domain.IssueStatusEscalated, domain.IssueStatusResolved, domain.IssueStatusClosed},
	domain.IssueStatusPending:    {domain.IssueStatusInProgress, domain.IssueStatusEscalated, domain.IssueStatusResolved, domain.IssueStatusClosed},
	domain.IssueStatusEscalated:  {domain.IssueStatusInProgress, domain.IssueStatusPending, domain.IssueStatusResolved, domain.IssueStatusClosed},
	domain.IssueStatusResolved:   {domain.IssueStatusClosed, domain.IssueStatusInProgress},
	domain.IssueStatusClosed:     {},
}

func isValidTransition(current, next domain.IssueStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

func staffActor(staffID string) events.Actor {
	return events.Actor{Type: domain.ActorTypeStaff, StaffID: &staffID}
}

func (s *IssueService) publish(ctx context.Context, event events.Event) {
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
