package escalation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/grievance-desk/sla-service/internal/domain"
	"github.com/grievance-desk/sla-service/internal/sla"
)

// ErrStorageUnavailable is returned when the issue set could not be read. The
// cycle stops at the failing page and is retried on the next tick.
var ErrStorageUnavailable = errors.New("issue storage unavailable")

// IssueSource lists issues whose status is still active, ordered by ID.
type IssueSource interface {
	ListOpenIssues(ctx context.Context, afterID string, limit int) ([]domain.Issue, error)
}

// State is the part of an issue a cycle may change.
type State struct {
	Priority        domain.IssuePriority
	SlaStatus       domain.SlaStatus
	EscalationLevel int
}

// Mutation describes one issue whose stored SLA state differs from its
// evaluation.
type Mutation struct {
	IssueID  string
	Previous State
	// ExpectedUpdatedAt is the version the evaluation was computed from.
	ExpectedUpdatedAt time.Time
	Evaluation        sla.Evaluation
}

// Next returns the state the issue should be stored with.
func (m Mutation) Next() State {
	next := State{
		Priority:        m.Previous.Priority,
		SlaStatus:       m.Evaluation.Status,
		EscalationLevel: m.Evaluation.RecommendedEscalationLevel,
	}
	if m.Evaluation.RecommendedPriority != nil {
		next.Priority = *m.Evaluation.RecommendedPriority
	}
	return next
}

// Escalated reports whether the mutation raises escalation level or priority.
func (m Mutation) Escalated() bool {
	next := m.Next()
	return next.EscalationLevel > m.Previous.EscalationLevel || next.Priority != m.Previous.Priority
}

// Scheduler classifies the open issue set against a calendar and policy.
type Scheduler struct {
	calendar  *sla.WorkingCalendar
	policy    sla.Policy
	source    IssueSource
	batchSize int
	workers   int
	logger    *zap.Logger
}

// NewScheduler creates a new [Scheduler] with the given options.
func NewScheduler(calendar *sla.WorkingCalendar, policy sla.Policy, source IssueSource, opts ...Option) *Scheduler {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.BatchSize <= 0 {
		o.BatchSize = defaultBatchSize
	}
	if o.Workers <= 0 {
		o.Workers = defaultWorkers
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}

	return &Scheduler{
		calendar:  calendar,
		policy:    policy,
		source:    source,
		batchSize: o.BatchSize,
		workers:   o.Workers,
		logger:    o.Logger,
	}
}

// RunCycle evaluates every open issue at now and returns the mutations for
// issues whose stored state is stale.
//
// When ctx is cancelled or a page cannot be read, RunCycle stops enumerating
// and returns the mutations computed so far together with the error. Those
// mutations remain valid because issues are evaluated independently.
func (s *Scheduler) RunCycle(ctx context.Context, now time.Time) ([]Mutation, error) {
	var (
		mutations []Mutation
		afterID   string
	)
	for {
		if err := ctx.Err(); err != nil {
			return mutations, err
		}

		page, err := s.source.ListOpenIssues(ctx, afterID, s.batchSize)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return mutations, ctxErr
			}
			s.logger.Warn("escalation cycle aborted", zap.String("after_id", afterID), zap.Error(err))
			return mutations, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
		}
		if len(page) == 0 {
			return mutations, nil
		}

		found, err := s.evaluatePage(ctx, page, now)
		mutations = append(mutations, found...)
		if err != nil {
			return mutations, err
		}

		if len(page) < s.batchSize {
			return mutations, nil
		}
		afterID = page[len(page)-1].ID
	}
}

func (s *Scheduler) evaluatePage(ctx context.Context, page []domain.Issue, now time.Time) ([]Mutation, error) {
	results := make([]*Mutation, len(page))

	var g errgroup.Group
	g.SetLimit(s.workers)
	for i := range page {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			results[i] = s.evaluate(&page[i], now)
			return nil
		})
	}
	_ = g.Wait()

	mutations := make([]Mutation, 0, len(results))
	for _, m := range results {
		if m != nil {
			mutations = append(mutations, *m)
		}
	}
	return mutations, ctx.Err()
}

// evaluate returns nil when the issue is up to date.
func (s *Scheduler) evaluate(issue *domain.Issue, now time.Time) *Mutation {
	if issue.Status.IsTerminal() {
		return nil
	}
	if issue.CreatedAt.After(now) {
		s.logger.Debug("clock skew: issue created after evaluation time",
			zap.String("issue_id", issue.ID),
			zap.Time("created_at", issue.CreatedAt),
			zap.Time("now", now))
	}

	snap := sla.SnapshotOf(issue)
	eval := sla.Classify(s.calendar, s.policy, snap, now)
	if !eval.Differs(snap) {
		return nil
	}
	return &Mutation{
		IssueID: issue.ID,
		Previous: State{
			Priority:        issue.Priority,
			SlaStatus:       issue.SlaStatus,
			EscalationLevel: issue.EscalationLevel,
		},
		ExpectedUpdatedAt: issue.UpdatedAt,
		Evaluation:        eval,
	}
}
