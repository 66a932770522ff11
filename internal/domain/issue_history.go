package domain

import "time"

// IssueChangeType captures what changed in a history entry.
type IssueChangeType string

const (
	ChangeTypeStatus        IssueChangeType = "STATUS_CHANGE"
	ChangeTypePriority      IssueChangeType = "PRIORITY_CHANGE"
	ChangeTypeSlaEscalation IssueChangeType = "SLA_ESCALATION"
)

// ChangeActorType indicates who made a change.
type ChangeActorType string

const (
	ActorTypeStaff  ChangeActorType = "STAFF"
	ActorTypeSystem ChangeActorType = "SYSTEM"
)

// ReasonSlaEscalation marks audit entries written by the escalation cycle.
const ReasonSlaEscalation = "sla_escalation"

// IssueHistory is an immutable audit trail entry.
type IssueHistory struct {
	ID            string
	IssueID       string
	ChangedByType ChangeActorType
	ChangedByID   *string
	ChangeType    IssueChangeType
	Reason        string
	OldValue      map[string]any
	NewValue      map[string]any
	CreatedAt     time.Time
}
