package assignment

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// Type identifies the supervisory/examiner capacity a staff member is
// requested for.
type Type string

const (
	TypeMainSupervisor      Type = "main_supervisor"
	TypeCoSupervisor        Type = "co_supervisor"
	TypeProposalExaminer    Type = "proposal_examiner"
	TypeFinalThesisExaminer Type = "final_thesis_examiner"
	TypeVivaExaminer        Type = "viva_examiner"
)

var AllTypes = []Type{
	TypeMainSupervisor,
	TypeCoSupervisor,
	TypeProposalExaminer,
	TypeFinalThesisExaminer,
	TypeVivaExaminer,
}

// Singular reports whether at most one Approved assignment of this type may
// exist per student. Only co-supervision allows concurrent approved entries.
func (t Type) Singular() bool { return t != TypeCoSupervisor }

func (t Type) Valid() bool {
	for _, at := range AllTypes {
		if t == at {
			return true
		}
	}
	return false
}

func (t Type) Label() string {
	switch t {
	case TypeMainSupervisor:
		return "Main Supervisor"
	case TypeCoSupervisor:
		return "Co-Supervisor"
	case TypeProposalExaminer:
		return "Proposal Examiner"
	case TypeFinalThesisExaminer:
		return "Final Thesis Examiner"
	case TypeVivaExaminer:
		return "Viva Examiner"
	}
	return string(t)
}

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

func (d Decision) Valid() bool { return d == DecisionApprove || d == DecisionReject }

// Assignment links a student to a staff member in a specific capacity.
// Lifecycle: created Pending; transitions once to Approved or Rejected;
// terminal thereafter. Re-requests create a new row.
type Assignment struct {
	ID           string      `json:"id"`
	StudentID    string      `json:"student_id"`
	StaffID      string      `json:"staff_id"`
	StaffRole    string      `json:"staff_role"`
	Type         Type        `json:"assignment_type"`
	Status       Status      `json:"status"`
	DepartmentID string      `json:"department_id"` // student's department at request time
	RequestedBy  string      `json:"requested_by"`
	ApprovedBy   null.String `json:"approved_by,omitempty"`
	Remarks      null.String `json:"remarks,omitempty"`
	RequestedAt  time.Time   `json:"requested_at"` // UTC
	ApprovedAt   null.Time   `json:"approved_at,omitempty"`
}

func (a Assignment) IsPending() bool  { return a.Status == StatusPending }
func (a Assignment) IsApproved() bool { return a.Status == StatusApproved }

// NewAssignment is the payload for requesting an assignment. The department
// the request belongs to is not part of it: it is resolved from the student's
// directory record, never taken from the caller.
type NewAssignment struct {
	StudentID string `json:"student_id" validate:"required"`
	StaffID   string `json:"staff_id" validate:"required"`
	StaffRole string `json:"staff_role"`
	Type      Type   `json:"assignment_type" validate:"required,assignmenttype"`
}

// QueryFilter applies AND operation on available fields.
type QueryFilter struct {
	StudentID string
	StaffID   string
	Type      Type
	Status    Status
}
