package milestone

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// Template is a reusable milestone definition scoped to a program or a
// department (or global when neither is set). Administrative edits never
// retroactively alter instances already materialized from it.
type Template struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	DocumentType   null.String `json:"document_type,omitempty"`
	SortOrder      int         `json:"sort_order"`
	DefaultDueDays null.Int    `json:"default_due_days,omitempty"`
	AlertLeadDays  int         `json:"alert_lead_days"`
	ProgramID      null.String `json:"program_id,omitempty"`
	DepartmentID   null.String `json:"department_id,omitempty"`
	IsActive       bool        `json:"is_active"`
}

// scopeRank orders templates by specificity: program beats department beats global.
func (t Template) scopeRank() int {
	if t.ProgramID.Valid {
		return 2
	}
	if t.DepartmentID.Valid {
		return 1
	}
	return 0
}

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusOverdue   Status = "overdue"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition is allowed from this status.
func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusCancelled }

// Instance is a tracked deliverable with a deadline for a given student,
// created either from a template at materialization time or ad hoc by staff.
type Instance struct {
	ID            string      `json:"id"`
	StudentID     string      `json:"student_id"`
	TemplateID    null.String `json:"template_id,omitempty"`
	Name          string      `json:"name"`
	DocumentType  null.String `json:"document_type,omitempty"`
	Deadline      null.Time   `json:"deadline,omitempty"` // UTC
	AlertLeadDays int         `json:"alert_lead_days"`    // copied from the template at materialization
	Status        Status      `json:"status"`
	Reason        null.String `json:"reason,omitempty"`
	CompletedAt   null.Time   `json:"completed_at,omitempty"`
	CreatedAt     time.Time   `json:"created_at"` // UTC
	UpdatedAt     time.Time   `json:"updated_at"` // UTC
}

// NewTemplate is the payload for creating a milestone template.
type NewTemplate struct {
	Name           string `json:"name" validate:"required"`
	DocumentType   string `json:"document_type"`
	SortOrder      int    `json:"sort_order"`
	DefaultDueDays *int   `json:"default_due_days" validate:"omitempty,gt=0"`
	AlertLeadDays  int    `json:"alert_lead_days" validate:"gte=0"`
	ProgramID      string `json:"program_id"`
	DepartmentID   string `json:"department_id"`
}

// NewAdHoc is the payload for scheduling a milestone outside any template.
type NewAdHoc struct {
	StudentID     string     `json:"student_id" validate:"required"`
	Name          string     `json:"name" validate:"required"`
	DocumentType  string     `json:"document_type"`
	Deadline      *time.Time `json:"deadline"`
	AlertLeadDays int        `json:"alert_lead_days" validate:"gte=0"`
}

// SubmissionResult reports the effect of a document submission. Unmatched is
// set when no Active instance matched the document type: the submission is
// accepted but produced no milestone transition.
type SubmissionResult struct {
	Instance  *Instance `json:"instance,omitempty"`
	Unmatched bool      `json:"unmatched"`
}

type TemplateFilter struct {
	ProgramID    string
	DepartmentID string
	ActiveOnly   bool
}
