package assignment

import (
	"context"
	"time"

	"github.com/trezcool/maendeleo/core"
	"github.com/trezcool/maendeleo/core/staff"
)

var (
	// errors
	ErrNotFound         = core.NewNotFoundError("assignment not found")
	ErrNotPending       = core.NewInvalidStateError("assignment has already been decided")
	ErrDuplicateRequest = core.NewConflictError("an identical pending request already exists")
	ErrAlreadyAssigned  = core.NewConflictError("an approved assignment of this type already exists for this student")
	ErrNotAuthorized    = core.NewAuthorizationError("actor is not allowed to decide this assignment")
)

type (
	Repository interface {
		// CreateAssignment persists a Pending row. It returns ErrDuplicateRequest
		// or ErrAlreadyAssigned when the corresponding uniqueness constraint is hit.
		CreateAssignment(ctx context.Context, a Assignment) (Assignment, error)
		GetAssignmentByID(ctx context.Context, id string) (Assignment, error)
		// ApproveAssignment flips a row from Pending to Approved as a single
		// conditional write, recording `at` as the decision time. For a singular
		// type the write is additionally conditioned on no existing Approved row
		// of that type for the student. A losing writer gets ErrNotPending or
		// ErrAlreadyAssigned, never silent success.
		ApproveAssignment(ctx context.Context, id, approvedBy, remarks string, at time.Time) (Assignment, error)
		// RejectAssignment flips a row from Pending to Rejected, conditionally.
		RejectAssignment(ctx context.Context, id, approvedBy, remarks string, at time.Time) (Assignment, error)
		HasApprovedAssignment(ctx context.Context, studentID string, typ Type) (bool, error)
		HasPendingRequest(ctx context.Context, studentID, staffID string, typ Type) (bool, error)
		// FilterAssignments applies AND operation on available QueryFilter fields.
		FilterAssignments(ctx context.Context, filter QueryFilter) ([]Assignment, error)
	}

	Service struct {
		repo  Repository
		clock core.Clock
	}
)

func NewService(repo Repository, clock core.Clock) *Service {
	return &Service{repo: repo, clock: clock}
}

// Request records a new Pending assignment request. departmentID is the
// student's department as resolved from the directory by the caller; the
// authority check at decide time keys on it.
// The pre-checks give early friendly errors; the storage constraints remain
// the authority under concurrent requests.
func (svc *Service) Request(ctx context.Context, na NewAssignment, requestedBy, departmentID string) (Assignment, error) {
	if err := core.Validate.Struct(na); err != nil {
		return Assignment{}, err
	}

	if na.Type.Singular() {
		taken, err := svc.repo.HasApprovedAssignment(ctx, na.StudentID, na.Type)
		if err != nil {
			return Assignment{}, err
		}
		if taken {
			return Assignment{}, ErrAlreadyAssigned
		}
	}
	pending, err := svc.repo.HasPendingRequest(ctx, na.StudentID, na.StaffID, na.Type)
	if err != nil {
		return Assignment{}, err
	}
	if pending {
		return Assignment{}, ErrDuplicateRequest
	}

	a := Assignment{
		StudentID:    na.StudentID,
		StaffID:      na.StaffID,
		StaffRole:    na.StaffRole,
		Type:         na.Type,
		Status:       StatusPending,
		DepartmentID: departmentID,
		RequestedBy:  requestedBy,
		RequestedAt:  svc.clock.Now(),
	}
	return svc.repo.CreateAssignment(ctx, a)
}

// Decide applies an Approve or Reject decision on a Pending request.
// The decision is exactly-once: the Pending check and the write happen as one
// conditional update in the repository, so a losing concurrent caller gets
// ErrNotPending (or ErrAlreadyAssigned for a racing singular Approve).
func (svc *Service) Decide(ctx context.Context, id string, decision Decision, actor staff.Actor, remarks string) (Assignment, error) {
	if !decision.Valid() {
		return Assignment{}, core.NewValidationError(
			nil, core.FieldError{Field: "decision", Error: "must be one of: approve, reject"})
	}

	a, err := svc.repo.GetAssignmentByID(ctx, id)
	if err != nil {
		return Assignment{}, err
	}
	if !a.IsPending() {
		return Assignment{}, ErrNotPending
	}
	if !staff.CanDecideAssignment(actor, a.DepartmentID) {
		return Assignment{}, ErrNotAuthorized
	}

	if decision == DecisionApprove {
		return svc.repo.ApproveAssignment(ctx, id, actor.ID, remarks, svc.clock.Now())
	}
	return svc.repo.RejectAssignment(ctx, id, actor.ID, remarks, svc.clock.Now())
}

func (svc *Service) GetByID(ctx context.Context, id string) (Assignment, error) {
	return svc.repo.GetAssignmentByID(ctx, id)
}

func (svc *Service) Filter(ctx context.Context, filter QueryFilter) ([]Assignment, error) {
	return svc.repo.FilterAssignments(ctx, filter)
}

// ApprovedMainSupervisor returns the student's approved main supervisor staff
// id, or "" if none is assigned yet.
func (svc *Service) ApprovedMainSupervisor(ctx context.Context, studentID string) (string, error) {
	assignments, err := svc.repo.FilterAssignments(ctx, QueryFilter{
		StudentID: studentID,
		Type:      TypeMainSupervisor,
		Status:    StatusApproved,
	})
	if err != nil {
		return "", err
	}
	if len(assignments) == 0 {
		return "", nil
	}
	return assignments[0].StaffID, nil
}
