package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grievance-desk/sla-service/internal/domain"
	"github.com/grievance-desk/sla-service/internal/events"
	"github.com/grievance-desk/sla-service/internal/sla"
	"github.com/grievance-desk/sla-service/pkg/util"
)

func newIssueService(t *testing.T, repo *fakeIssueRepo, now time.Time) (*IssueService, *recordingDispatcher) {
	t.Helper()
	dispatcher := &recordingDispatcher{}
	svc := NewIssueService(IssueDependencies{
		IssueRepo:   repo,
		HistoryRepo: fakeHistoryRepo{repo},
		Calendar:    testCalendar(t),
		Policy:      sla.DefaultPolicy(),
		Dispatcher:  dispatcher,
		Summaries:   &countingInvalidator{},
		Clock:       sla.FixedClock(now),
	})
	return svc, dispatcher
}

func TestIssueService_CloseFreezesOutcome(t *testing.T) {
	tests := []struct {
		name   string
		closed time.Time
		want   domain.SlaStatus
		hours  float64
	}{
		{"within budget", monday(12, 0), domain.SlaStatusOnTime, 3},
		{"exactly at budget", monday(13, 0), domain.SlaStatusOnTime, 4},
		{"over budget", monday(14, 0), domain.SlaStatusBreached, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeIssueRepo(openIssue("a", domain.IssuePriorityLow, monday(9, 0)))
			svc, dispatcher := newIssueService(t, repo, tt.closed)

			issue, err := svc.UpdateStatus(context.Background(), "staff-1", "a", domain.IssueStatusClosed, "done")
			require.NoError(t, err)

			assert.Equal(t, domain.IssueStatusClosed, issue.Status)
			assert.Equal(t, tt.want, issue.SlaStatus)
			assert.Equal(t, tt.hours, issue.SlaHoursElapsed)
			assert.True(t, issue.SlaFinal)
			require.NotNil(t, issue.ClosedAt)
			assert.Equal(t, tt.closed, *issue.ClosedAt)
			assert.Contains(t, dispatcher.types(), events.EventIssueStatusChanged)
		})
	}
}

func TestIssueService_FrozenOutcomeIgnoresLaterHolidays(t *testing.T) {
	repo := newFakeIssueRepo(openIssue("a", domain.IssuePriorityLow, monday(9, 0)))
	svc, _ := newIssueService(t, repo, monday(14, 0))

	_, err := svc.UpdateStatus(context.Background(), "staff-1", "a", domain.IssueStatusClosed, "")
	require.NoError(t, err)

	// Declaring the closure day a holiday afterwards must not rewrite history.
	withHoliday, err := testCalendar(t).WithHolidays("2026-10-12")
	require.NoError(t, err)
	stored, err := repo.GetByID(context.Background(), "a")
	require.NoError(t, err)

	eval := sla.Classify(withHoliday, sla.DefaultPolicy(), sla.SnapshotOf(stored), monday(18, 0))
	assert.Equal(t, domain.SlaStatusBreached, eval.Status)
	assert.Equal(t, 5.0, eval.WorkingHoursElapsed)
}

func TestIssueService_ResolveThenCloseKeepsResolutionTime(t *testing.T) {
	repo := newFakeIssueRepo(openIssue("a", domain.IssuePriorityLow, monday(9, 0)))
	svc, _ := newIssueService(t, repo, monday(11, 0))

	_, err := svc.UpdateStatus(context.Background(), "staff-1", "a", domain.IssueStatusResolved, "")
	require.NoError(t, err)

	later, _ := newIssueService(t, repo, monday(16, 0))
	issue, err := later.UpdateStatus(context.Background(), "staff-1", "a", domain.IssueStatusClosed, "")
	require.NoError(t, err)

	assert.Equal(t, domain.SlaStatusOnTime, issue.SlaStatus)
	require.NotNil(t, issue.ClosedAt)
	assert.Equal(t, monday(11, 0), *issue.ClosedAt)
}

func TestIssueService_ReopenUnfreezes(t *testing.T) {
	repo := newFakeIssueRepo(openIssue("a", domain.IssuePriorityLow, monday(9, 0)))
	svc, _ := newIssueService(t, repo, monday(11, 0))

	_, err := svc.UpdateStatus(context.Background(), "staff-1", "a", domain.IssueStatusResolved, "")
	require.NoError(t, err)

	later, _ := newIssueService(t, repo, monday(15, 0))
	issue, err := later.UpdateStatus(context.Background(), "staff-1", "a", domain.IssueStatusInProgress, "not fixed")
	require.NoError(t, err)

	assert.False(t, issue.SlaFinal)
	assert.Nil(t, issue.ClosedAt)
	assert.Equal(t, domain.SlaStatusBreached, issue.SlaStatus)
	assert.Equal(t, 6.0, issue.SlaHoursElapsed)
}

func TestIssueService_InvalidTransition(t *testing.T) {
	closed := openIssue("a", domain.IssuePriorityLow, monday(9, 0))
	closed.Status = domain.IssueStatusClosed
	repo := newFakeIssueRepo(closed)
	svc, dispatcher := newIssueService(t, repo, monday(12, 0))

	_, err := svc.UpdateStatus(context.Background(), "staff-1", "a", domain.IssueStatusOpen, "")
	assert.Equal(t, http.StatusBadRequest, util.ToDomainError(err).HTTPStatus)

	_, err = svc.UpdateStatus(context.Background(), "staff-1", "a", domain.IssueStatus("archived"), "")
	assert.Equal(t, http.StatusBadRequest, util.ToDomainError(err).HTTPStatus)
	assert.Empty(t, dispatcher.types())
}

func TestIssueService_StaleSaveIsConflict(t *testing.T) {
	repo := newFakeIssueRepo(openIssue("a", domain.IssuePriorityLow, monday(9, 0)))
	svc, _ := newIssueService(t, repo, monday(12, 0))

	svc.issues = &staleOnSave{fakeIssueRepo: repo}

	_, err := svc.UpdateStatus(context.Background(), "staff-1", "a", domain.IssueStatusInProgress, "")
	assert.Equal(t, http.StatusConflict, util.ToDomainError(err).HTTPStatus)
}

// staleOnSave simulates a concurrent writer landing between read and save.
type staleOnSave struct {
	*fakeIssueRepo
}

func (s *staleOnSave) Save(ctx context.Context, issue *domain.Issue, expected time.Time, h *domain.IssueHistory) error {
	s.mu.Lock()
	s.issues[issue.ID].UpdatedAt = expected.Add(time.Minute)
	s.mu.Unlock()
	return s.fakeIssueRepo.Save(ctx, issue, expected, h)
}

func TestIssueService_UpdatePriorityLowersEscalatedIssue(t *testing.T) {
	issue := openIssue("a", domain.IssuePriorityHigh, monday(9, 0))
	issue.EscalationLevel = 2
	repo := newFakeIssueRepo(issue)
	svc, dispatcher := newIssueService(t, repo, monday(12, 0))

	updated, err := svc.UpdatePriority(context.Background(), "lead-1", "a", domain.IssuePriorityLow)
	require.NoError(t, err)
	assert.Equal(t, domain.IssuePriorityLow, updated.Priority)
	assert.Equal(t, 2, updated.EscalationLevel)

	history, err := svc.History(context.Background(), "a", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.ChangeTypePriority, history[0].ChangeType)
	assert.Equal(t, []events.EventType{events.EventIssuePriorityChanged}, dispatcher.types())
}

func TestIssueService_UpdatePriorityRejectsClosed(t *testing.T) {
	closed := openIssue("a", domain.IssuePriorityLow, monday(9, 0))
	closed.Status = domain.IssueStatusResolved
	repo := newFakeIssueRepo(closed)
	svc, _ := newIssueService(t, repo, monday(12, 0))

	_, err := svc.UpdatePriority(context.Background(), "lead-1", "a", domain.IssuePriorityHigh)
	assert.Equal(t, http.StatusBadRequest, util.ToDomainError(err).HTTPStatus)

	_, err = svc.UpdatePriority(context.Background(), "lead-1", "a", domain.IssuePriority("urgent"))
	assert.Equal(t, http.StatusBadRequest, util.ToDomainError(err).HTTPStatus)
}
