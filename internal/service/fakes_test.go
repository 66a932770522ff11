package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/grievance-desk/sla-service/internal/domain"
	"github.com/grievance-desk/sla-service/internal/events"
	"github.com/grievance-desk/sla-service/internal/repository"
	"github.com/grievance-desk/sla-service/internal/sla"
)

type fakeIssueRepo struct {
	mu      sync.Mutex
	issues  map[string]*domain.Issue
	history []domain.IssueHistory
	updates []repository.SlaUpdate
	counts  []repository.SlaCount
	countN  int
}

func newFakeIssueRepo(issues ...domain.Issue) *fakeIssueRepo {
	r := &fakeIssueRepo{issues: make(map[string]*domain.Issue)}
	for i := range issues {
		issue := issues[i]
		r.issues[issue.ID] = &issue
	}
	return r
}

func (r *fakeIssueRepo) Create(_ context.Context, issue *domain.Issue) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *issue
	r.issues[issue.ID] = &copied
	return nil
}

func (r *fakeIssueRepo) GetByID(_ context.Context, id string) (*domain.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	issue, ok := r.issues[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *issue
	return &copied, nil
}

func (r *fakeIssueRepo) ListOpenIssues(context.Context, string, int) ([]domain.Issue, error) {
	return nil, nil
}

func (r *fakeIssueRepo) ApplyEvaluation(_ context.Context, u repository.SlaUpdate, h *domain.IssueHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	issue, ok := r.issues[u.IssueID]
	if !ok || !issue.UpdatedAt.Equal(u.ExpectedUpdatedAt) || issue.SlaFinal || issue.Status.IsTerminal() {
		return repository.ErrStaleIssue
	}
	issue.Priority = u.Priority
	issue.SlaStatus = u.SlaStatus
	issue.SlaDeadline = u.SlaDeadline
	issue.SlaHoursElapsed = u.HoursElapsed
	issue.EscalationLevel = u.EscalationLevel
	issue.UpdatedAt = issue.UpdatedAt.Add(time.Second)
	r.updates = append(r.updates, u)
	if h != nil {
		r.history = append(r.history, *h)
	}
	return nil
}

func (r *fakeIssueRepo) Save(_ context.Context, issue *domain.Issue, expected time.Time, h *domain.IssueHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.issues[issue.ID]
	if !ok || !stored.UpdatedAt.Equal(expected) {
		return repository.ErrStaleIssue
	}
	issue.UpdatedAt = expected.Add(time.Second)
	copied := *issue
	r.issues[issue.ID] = &copied
	if h != nil {
		h.IssueID = issue.ID
		r.history = append(r.history, *h)
	}
	return nil
}

func (r *fakeIssueRepo) CountBySlaStatus(context.Context) ([]repository.SlaCount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.countN++
	return r.counts, nil
}

func (r *fakeIssueRepo) ListByIssue(_ context.Context, issueID string, _ int) ([]domain.IssueHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.IssueHistory
	for _, h := range r.history {
		if h.IssueID == issueID {
			out = append(out, h)
		}
	}
	return out, nil
}

// fakeHistoryRepo exposes fakeIssueRepo's history as a
// repository.IssueHistoryRepository (the two interfaces both declare Create).
type fakeHistoryRepo struct {
	*fakeIssueRepo
}

func (r fakeHistoryRepo) Create(_ context.Context, h *domain.IssueHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, *h)
	return nil
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, e events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, e)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) types() []events.EventType {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]events.EventType, 0, len(d.events))
	for _, e := range d.events {
		out = append(out, e.Type)
	}
	return out
}

type countingInvalidator struct{ n int }

func (c *countingInvalidator) Invalidate() { c.n++ }

func testCalendar(t *testing.T) *sla.WorkingCalendar {
	t.Helper()
	cal, err := sla.NewWorkingCalendar(sla.CalendarConfig{
		Location:     time.UTC,
		DayStartHour: 9,
		DayEndHour:   17,
		WorkingDays: []time.Weekday{
			time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday,
		},
	})
	require.NoError(t, err)
	return cal
}

// monday is 2026-10-12, a working Monday.
func monday(h, m int) time.Time {
	return time.Date(2026, 10, 12, h, m, 0, 0, time.UTC)
}

func openIssue(id string, priority domain.IssuePriority, created time.Time) domain.Issue {
	return domain.Issue{
		ID:          id,
		ExternalKey: "GRV-" + id,
		RequesterID: "emp-1",
		Title:       "Leave balance incorrect",
		Status:      domain.IssueStatusOpen,
		Priority:    priority,
		SlaStatus:   domain.SlaStatusPending,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}
