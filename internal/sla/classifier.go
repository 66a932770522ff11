package sla

import (
	"math"
	"time"

	"github.com/grievance-desk/sla-service/internal/domain"
)

// FrozenOutcome is the SLA result persisted when an issue was closed.
type FrozenOutcome struct {
	Status       domain.SlaStatus
	HoursElapsed float64
}

// IssueSnapshot is the read view of an issue consumed by the classifier.
type IssueSnapshot struct {
	ID              string
	Priority        domain.IssuePriority
	Status          domain.IssueStatus
	CreatedAt       time.Time
	ClosedAt        *time.Time
	SlaStatus       domain.SlaStatus
	EscalationLevel int
	Frozen          *FrozenOutcome
}

// SnapshotOf builds the classifier view of a stored issue.
func SnapshotOf(issue *domain.Issue) IssueSnapshot {
	snap := IssueSnapshot{
		ID:              issue.ID,
		Priority:        issue.Priority,
		Status:          issue.Status,
		CreatedAt:       issue.CreatedAt,
		ClosedAt:        issue.ClosedAt,
		SlaStatus:       issue.SlaStatus,
		EscalationLevel: issue.EscalationLevel,
	}
	if issue.SlaFinal {
		snap.Frozen = &FrozenOutcome{Status: issue.SlaStatus, HoursElapsed: issue.SlaHoursElapsed}
	}
	return snap
}

// Evaluation is the transient result of classifying one issue.
type Evaluation struct {
	IssueID             string
	WorkingHoursElapsed float64
	// Deadline is nil for soft budgets.
	Deadline *time.Time
	Status   domain.SlaStatus
	Priority domain.IssuePriority
	// RecommendedPriority is set only when escalation bumps the priority.
	RecommendedPriority        *domain.IssuePriority
	RecommendedEscalationLevel int
}

// Differs reports whether the evaluation changes the stored SLA state of issue.
func (e Evaluation) Differs(issue IssueSnapshot) bool {
	if e.Status != issue.SlaStatus || e.RecommendedEscalationLevel != issue.EscalationLevel {
		return true
	}
	return e.RecommendedPriority != nil && *e.RecommendedPriority != issue.Priority
}

// Classify derives the SLA status, deadline and escalation recommendation of
// issue at now. It is total over valid inputs and has no side effects.
func Classify(cal *WorkingCalendar, policy Policy, issue IssueSnapshot, now time.Time) Evaluation {
	level := issue.EscalationLevel
	if level < 0 {
		level = 0
	}
	eval := Evaluation{
		IssueID:                    issue.ID,
		Priority:                   issue.Priority,
		RecommendedEscalationLevel: level,
	}

	if issue.Status.IsTerminal() && issue.ClosedAt != nil {
		budget := policy.BudgetFor(issue.Priority)
		eval.Deadline = deadline(cal, issue.CreatedAt, budget)
		if issue.Frozen != nil {
			eval.Status = issue.Frozen.Status
			eval.WorkingHoursElapsed = issue.Frozen.HoursElapsed
			return eval
		}
		eval.WorkingHoursElapsed = cal.ElapsedWorkingHours(issue.CreatedAt, *issue.ClosedAt)
		eval.Status = domain.SlaStatusOnTime
		if eval.WorkingHoursElapsed > budget.Hours {
			eval.Status = domain.SlaStatusBreached
		}
		return eval
	}

	age := cal.ElapsedWorkingHours(issue.CreatedAt, now)
	eval.WorkingHoursElapsed = age

	budget := policy.BudgetFor(issue.Priority)
	if derived := escalationLevel(policy, issue.Priority, budget, age); derived > level {
		eval.RecommendedEscalationLevel = derived
		if steps := priorityBumps(policy.PriorityBumpEvery(), level, derived); steps > 0 {
			if raised := issue.Priority.Raise(steps); raised != issue.Priority {
				eval.RecommendedPriority = &raised
				eval.Priority = raised
				// Status and deadline describe the issue as it will be stored.
				budget = policy.BudgetFor(raised)
			}
		}
	}

	eval.Status = openStatus(age, budget.Hours, policy.AtRiskRatio())
	eval.Deadline = deadline(cal, issue.CreatedAt, budget)
	return eval
}

func openStatus(age, budget, ratio float64) domain.SlaStatus {
	switch {
	case age > budget:
		return domain.SlaStatusBreached
	case age > budget*ratio:
		return domain.SlaStatusAtRisk
	default:
		return domain.SlaStatusPending
	}
}

func deadline(cal *WorkingCalendar, created time.Time, budget Budget) *time.Time {
	if budget.Soft {
		return nil
	}
	at := cal.AddWorkingHours(created, budget.Hours)
	return &at
}

// escalationLevel counts the breach thresholds (multiples of the budget)
// age has crossed, capped at the tier maximum.
func escalationLevel(policy Policy, priority domain.IssuePriority, budget Budget, age float64) int {
	if budget.Hours <= 0 || age <= budget.Hours {
		return 0
	}
	crossed := int(math.Ceil(age/budget.Hours)) - 1
	if limit := policy.MaxEscalationLevel(priority); crossed > limit {
		crossed = limit
	}
	return crossed
}

func priorityBumps(every, from, to int) int {
	if every <= 0 {
		return 0
	}
	return to/every - from/every
}
