package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/grievance-desk/sla-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventIssueStatusChanged    EventType = "issue_status_changed"
	EventIssuePriorityChanged  EventType = "issue_priority_changed"
	EventIssueSlaStatusChanged EventType = "issue_sla_status_changed"
	EventIssueSlaEscalated     EventType = "issue_sla_escalated"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type    domain.ChangeActorType `json:"type"`
	StaffID *string                `json:"staff_id,omitempty"`
}

// SystemActor is the actor of escalation cycle events.
var SystemActor = Actor{Type: domain.ActorTypeSystem}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	IssueID   string    `json:"issue_id"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// New builds an event with a fresh ID.
func New(eventType EventType, issueID string, actor Actor, at time.Time, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		IssueID:   issueID,
		Actor:     actor,
		Timestamp: at,
		Payload:   payload,
	}
}

// IssueStatusChangedPayload payload.
type IssueStatusChangedPayload struct {
	OldStatus domain.IssueStatus `json:"old_status"`
	NewStatus domain.IssueStatus `json:"new_status"`
	Comment   string             `json:"comment,omitempty"`
}

// IssuePriorityChangedPayload payload.
type IssuePriorityChangedPayload struct {
	OldPriority domain.IssuePriority `json:"old_priority"`
	NewPriority domain.IssuePriority `json:"new_priority"`
}

// IssueSlaStatusChangedPayload payload.
type IssueSlaStatusChangedPayload struct {
	OldStatus    domain.SlaStatus `json:"old_status"`
	NewStatus    domain.SlaStatus `json:"new_status"`
	HoursElapsed float64          `json:"hours_elapsed"`
	Deadline     *time.Time       `json:"deadline,omitempty"`
}

// IssueSlaEscalatedPayload payload.
type IssueSlaEscalatedPayload struct {
	OldPriority  domain.IssuePriority `json:"old_priority"`
	NewPriority  domain.IssuePriority `json:"new_priority"`
	OldLevel     int                  `json:"old_level"`
	NewLevel     int                  `json:"new_level"`
	SlaStatus    domain.SlaStatus     `json:"sla_status"`
	HoursElapsed float64              `json:"hours_elapsed"`
	Reason       string               `json:"reason"`
}
