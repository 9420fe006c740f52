package notification

import (
	"fmt"
	"time"

	"github.com/volatiletech/null/v8"
)

type Type string

const (
	TypeDeadlineReminder  Type = "deadline_reminder"
	TypeSupervisorComment Type = "supervisor_comment"
	TypeExamSchedule      Type = "exam_schedule"
	TypeDocumentReview    Type = "document_review"
	TypeProgressUpdate    Type = "progress_update"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

type Status string

const (
	StatusUnread   Status = "unread"
	StatusRead     Status = "read"
	StatusArchived Status = "archived"
)

// Related entity types
const (
	RelatedAssignment = "role_assignment"
	RelatedMilestone  = "milestone_instance"
)

// Notification is an inbox record created by the dispatcher. Only the inbox
// moves it Unread -> Read -> Archived; the dispatcher never mutates a stored row.
type Notification struct {
	ID            string      `json:"id"`
	RecipientID   string      `json:"recipient_id"`
	RecipientRole string      `json:"recipient_role"`
	SenderID      null.String `json:"sender_id,omitempty"`
	Type          Type        `json:"type"`
	Title         string      `json:"title"`
	Message       string      `json:"message"`
	Priority      Priority    `json:"priority"`
	Status        Status      `json:"status"`
	RelatedType   null.String `json:"related_entity_type,omitempty"`
	RelatedID     null.String `json:"related_entity_id,omitempty"`
	DedupKey      string      `json:"-"`
	CreatedAt     time.Time   `json:"created_at"` // UTC
	ExpiresAt     null.Time   `json:"expires_at,omitempty"`
}

func (n Notification) Expired(now time.Time) bool {
	return n.ExpiresAt.Valid && now.After(n.ExpiresAt.Time)
}

// EventKind identifies a workflow state change feeding the dispatcher.
type EventKind string

const (
	AssignmentApproved   EventKind = "assignment_approved"
	AssignmentRejected   EventKind = "assignment_rejected"
	MilestoneReminderDue EventKind = "milestone_reminder_due"
	MilestoneOverdue     EventKind = "milestone_overdue"
	MilestoneCompleted   EventKind = "milestone_completed"
	DocumentReviewed     EventKind = "document_reviewed"
)

// windowed reports whether equivalent notifications for this kind are
// suppressed within the cool-down window (and re-fired after it elapses).
// One-shot kinds dedup forever on their key instead, which makes a retried
// dispatch harmless.
func (k EventKind) windowed() bool {
	return k == MilestoneReminderDue || k == MilestoneOverdue
}

func (k EventKind) notificationType() Type {
	switch k {
	case MilestoneReminderDue, MilestoneOverdue:
		return TypeDeadlineReminder
	case DocumentReviewed:
		return TypeDocumentReview
	default:
		return TypeProgressUpdate
	}
}

func (k EventKind) priority() Priority {
	switch k {
	case MilestoneOverdue:
		return PriorityHigh
	case MilestoneReminderDue:
		return PriorityNormal
	default:
		return PriorityNormal
	}
}

// Event is the dispatcher input: a state change plus just enough context to
// address and render the resulting notifications.
type Event struct {
	Kind      EventKind
	StudentID string
	// StaffID is the assignment counterpart, or the student's main supervisor
	// for milestone events (empty when none is assigned yet).
	StaffID string
	// ActorID is the person whose action produced the event, when any.
	ActorID     string
	RelatedType string
	RelatedID   string
	// Subject names the thing the event is about (assignment type label or
	// milestone name).
	Subject  string
	Deadline null.Time
}

func dedupKey(recipientID string, kind EventKind, relatedType, relatedID string, bucket int64) string {
	if kind.windowed() {
		return fmt.Sprintf("%s|%s|%s|%s|%d", recipientID, kind, relatedType, relatedID, bucket)
	}
	return fmt.Sprintf("%s|%s|%s|%s", recipientID, kind, relatedType, relatedID)
}
