package domain

import "time"

// IssueStatus enumerates lifecycle states for grievance issues.
type IssueStatus string

const (
	IssueStatusOpen       IssueStatus = "open"
	IssueStatusInProgress IssueStatus = "in_progress"
	IssueStatusPending    IssueStatus = "pending"
	IssueStatusEscalated  IssueStatus = "escalated"
	IssueStatusResolved   IssueStatus = "resolved"
	IssueStatusClosed     IssueStatus = "closed"
)

// ActiveIssueStatuses lists the statuses the escalation cycle revisits.
func ActiveIssueStatuses() []IssueStatus {
	return []IssueStatus{IssueStatusOpen, IssueStatusInProgress, IssueStatusPending, IssueStatusEscalated}
}

// IsTerminal reports whether the status ends the SLA clock.
func (s IssueStatus) IsTerminal() bool {
	return s == IssueStatusResolved || s == IssueStatusClosed
}

// Valid reports whether s is a known status.
func (s IssueStatus) Valid() bool {
	switch s {
	case IssueStatusOpen, IssueStatusInProgress, IssueStatusPending, IssueStatusEscalated, IssueStatusResolved, IssueStatusClosed:
		return true
	}
	return false
}

// IssuePriority enumerates issue urgency. Ordering is low < medium < high < critical.
type IssuePriority string

const (
	IssuePriorityLow      IssuePriority = "low"
	IssuePriorityMedium   IssuePriority = "medium"
	IssuePriorityHigh     IssuePriority = "high"
	IssuePriorityCritical IssuePriority = "critical"
)

var priorityOrder = []IssuePriority{IssuePriorityLow, IssuePriorityMedium, IssuePriorityHigh, IssuePriorityCritical}

// Priorities returns every priority in ascending order.
func Priorities() []IssuePriority {
	return append([]IssuePriority(nil), priorityOrder...)
}

// Rank returns the position of p in the priority ordering, or -1 if unknown.
func (p IssuePriority) Rank() int {
	for i, candidate := range priorityOrder {
		if candidate == p {
			return i
		}
	}
	return -1
}

// Valid reports whether p is a known priority.
func (p IssuePriority) Valid() bool {
	return p.Rank() >= 0
}

// Raise returns the priority steps tiers above p, capped at critical.
// Unknown priorities are treated as medium.
func (p IssuePriority) Raise(steps int) IssuePriority {
	rank := p.Rank()
	if rank < 0 {
		rank = IssuePriorityMedium.Rank()
	}
	if steps < 0 {
		steps = 0
	}
	rank += steps
	if rank >= len(priorityOrder) {
		rank = len(priorityOrder) - 1
	}
	return priorityOrder[rank]
}

// SlaStatus is the derived SLA state of an issue.
type SlaStatus string

const (
	SlaStatusPending  SlaStatus = "pending"
	SlaStatusAtRisk   SlaStatus = "at_risk"
	SlaStatusBreached SlaStatus = "breached"
	SlaStatusOnTime   SlaStatus = "on_time"
)

// Issue is the aggregate for employee grievances.
type Issue struct {
	ID              string
	ExternalKey     string
	RequesterID     string
	AssigneeID      *string
	Title           string
	Description     string
	Status          IssueStatus
	Priority        IssuePriority
	SlaStatus       SlaStatus
	SlaDeadline     *time.Time
	SlaHoursElapsed float64
	// SlaFinal is set once the SLA outcome was frozen at closure.
	SlaFinal        bool
	EscalationLevel int
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ClosedAt        *time.Time
}
