package sqlxrepos

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/maendeleo/core/assignment"
)

type assignmentRow struct {
	ID           string      `db:"id"`
	StudentID    string      `db:"student_id"`
	StaffID      string      `db:"staff_id"`
	StaffRole    string      `db:"staff_role"`
	Type         string      `db:"assignment_type"`
	Status       string      `db:"status"`
	DepartmentID string      `db:"department_id"`
	RequestedBy  string      `db:"requested_by"`
	ApprovedBy   null.String `db:"approved_by"`
	Remarks      null.String `db:"remarks"`
	RequestedAt  time.Time   `db:"requested_at"`
	ApprovedAt   null.Time   `db:"approved_at"`
}

func (r assignmentRow) toCore() assignment.Assignment {
	return assignment.Assignment{
		ID:           r.ID,
		StudentID:    r.StudentID,
		StaffID:      r.StaffID,
		StaffRole:    r.StaffRole,
		Type:         assignment.Type(r.Type),
		Status:       assignment.Status(r.Status),
		DepartmentID: r.DepartmentID,
		RequestedBy:  r.RequestedBy,
		ApprovedBy:   r.ApprovedBy,
		Remarks:      r.Remarks,
		RequestedAt:  r.RequestedAt,
		ApprovedAt:   r.ApprovedAt,
	}
}

type assignmentRepository struct {
	db *sqlx.DB
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db *sqlx.DB) *assignmentRepository {
	return &assignmentRepository{db: db}
}

func (repo *assignmentRepository) CreateAssignment(ctx context.Context, a assignment.Assignment) (assignment.Assignment, error) {
	const q = `
		INSERT INTO role_assignment
			(id, student_id, staff_id, staff_role, assignment_type, status, department_id, requested_by, remarks, requested_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	a.ID = uuid.New().String()
	err := withRetry(func() error {
		_, err := repo.db.ExecContext(ctx, q,
			a.ID, a.StudentID, a.StaffID, a.StaffRole, a.Type, a.Status,
			a.DepartmentID, a.RequestedBy, a.Remarks, a.RequestedAt,
		)
		return err
	})
	if err != nil {
		switch {
		case uniqueViolation(err, "uq_assignment_singular"):
			return assignment.Assignment{}, assignment.ErrAlreadyAssigned
		case uniqueViolation(err, "uq_assignment_pending"):
			return assignment.Assignment{}, assignment.ErrDuplicateRequest
		}
		return assignment.Assignment{}, errors.Wrap(err, "creating assignment")
	}
	return a, nil
}

func (repo *assignmentRepository) GetAssignmentByID(ctx context.Context, id string) (assignment.Assignment, error) {
	const q = `SELECT * FROM role_assignment WHERE id = $1`

	var row assignmentRow
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return assignment.Assignment{}, trapNoRowsErr(err, assignment.ErrNotFound, "getting assignment")
	}
	return row.toCore(), nil
}

// ApproveAssignment is the exactly-once decision write: the status check and
// the singular-uniqueness check run inside the one UPDATE, so two racing
// approvers cannot both succeed. When no row comes back, a re-read
// disambiguates which precondition failed.
func (repo *assignmentRepository) ApproveAssignment(ctx context.Context, id, approvedBy, remarks string, at time.Time) (assignment.Assignment, error) {
	const q = `
		UPDATE role_assignment ra
		SET status = 'approved', approved_by = $2, remarks = NULLIF($3, ''), approved_at = $4
		WHERE ra.id = $1
		  AND ra.status = 'pending'
		  AND (
			ra.assignment_type = 'co_supervisor'
			OR NOT EXISTS (
				SELECT 1 FROM role_assignment other
				WHERE other.student_id = ra.student_id
				  AND other.assignment_type = ra.assignment_type
				  AND other.status = 'approved'
			)
		  )
		RETURNING *`

	var row assignmentRow
	err := withRetry(func() error {
		return repo.db.QueryRowxContext(ctx, q, id, approvedBy, remarks, at).StructScan(&row)
	})
	if err == nil {
		return row.toCore(), nil
	}
	if errors.Cause(err) != sql.ErrNoRows {
		if uniqueViolation(err, "uq_assignment_singular") {
			return assignment.Assignment{}, assignment.ErrAlreadyAssigned
		}
		return assignment.Assignment{}, errors.Wrap(err, "approving assignment")
	}

	// the conditional update matched nothing: figure out why
	current, gerr := repo.GetAssignmentByID(ctx, id)
	if gerr != nil {
		return assignment.Assignment{}, gerr
	}
	if !current.IsPending() {
		return assignment.Assignment{}, assignment.ErrNotPending
	}
	return assignment.Assignment{}, assignment.ErrAlreadyAssigned
}

func (repo *assignmentRepository) RejectAssignment(ctx context.Context, id, approvedBy, remarks string, at time.Time) (assignment.Assignment, error) {
	const q = `
		UPDATE role_assignment
		SET status = 'rejected', approved_by = $2, remarks = NULLIF($3, ''), approved_at = $4
		WHERE id = $1 AND status = 'pending'
		RETURNING *`

	var row assignmentRow
	err := withRetry(func() error {
		return repo.db.QueryRowxContext(ctx, q, id, approvedBy, remarks, at).StructScan(&row)
	})
	if err == nil {
		return row.toCore(), nil
	}
	if errors.Cause(err) != sql.ErrNoRows {
		return assignment.Assignment{}, errors.Wrap(err, "rejecting assignment")
	}

	if _, gerr := repo.GetAssignmentByID(ctx, id); gerr != nil {
		return assignment.Assignment{}, gerr
	}
	return assignment.Assignment{}, assignment.ErrNotPending
}

func (repo *assignmentRepository) HasApprovedAssignment(ctx context.Context, studentID string, typ assignment.Type) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM role_assignment
			WHERE student_id = $1 AND assignment_type = $2 AND status = 'approved'
		)`

	var exists bool
	if err := repo.db.GetContext(ctx, &exists, q, studentID, typ); err != nil {
		return false, errors.Wrap(err, "checking approved assignment")
	}
	return exists, nil
}

func (repo *assignmentRepository) HasPendingRequest(ctx context.Context, studentID, staffID string, typ assignment.Type) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM role_assignment
			WHERE student_id = $1 AND staff_id = $2 AND assignment_type = $3 AND status = 'pending'
		)`

	var exists bool
	if err := repo.db.GetContext(ctx, &exists, q, studentID, staffID, typ); err != nil {
		return false, errors.Wrap(err, "checking pending request")
	}
	return exists, nil
}

func (repo *assignmentRepository) FilterAssignments(ctx context.Context, filter assignment.QueryFilter) ([]assignment.Assignment, error) {
	q := `SELECT * FROM role_assignment WHERE 1=1`
	args := make([]interface{}, 0, 4)
	add := func(column string, val interface{}) {
		args = append(args, val)
		q += ` AND ` + column + ` = $` + strconv.Itoa(len(args))
	}
	if filter.StudentID != "" {
		add("student_id", filter.StudentID)
	}
	if filter.StaffID != "" {
		add("staff_id", filter.StaffID)
	}
	if filter.Type != "" {
		add("assignment_type", string(filter.Type))
	}
	if filter.Status != "" {
		add("status", string(filter.Status))
	}
	q += ` ORDER BY requested_at, id`

	rows := make([]assignmentRow, 0)
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "filtering assignments")
	}
	out := make([]assignment.Assignment, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toCore())
	}
	return out, nil
}
