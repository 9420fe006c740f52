package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/maendeleo/core/assignment"
)

type assignmentRepository struct {
	db *assignmentTable
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db *DB) *assignmentRepository {
	return &assignmentRepository{db: db.assignments}
}

func (repo *assignmentRepository) query() []assignment.Assignment {
	out := make([]assignment.Assignment, 0, len(repo.db.t))
	for _, a := range repo.db.t {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.Before(out[j].RequestedAt) })
	return out
}

// hasApprovedLocked re-checks singular-type uniqueness under the write lock;
// it is the in-memory twin of the partial unique index.
func (repo *assignmentRepository) hasApprovedLocked(studentID string, typ assignment.Type) bool {
	for _, a := range repo.db.t {
		if a.StudentID == studentID && a.Type == typ && a.Status == assignment.StatusApproved {
			return true
		}
	}
	return false
}

func (repo *assignmentRepository) hasPendingLocked(studentID, staffID string, typ assignment.Type) bool {
	for _, a := range repo.db.t {
		if a.StudentID == studentID && a.StaffID == staffID && a.Type == typ && a.Status == assignment.StatusPending {
			return true
		}
	}
	return false
}

func (repo *assignmentRepository) CreateAssignment(ctx context.Context, a assignment.Assignment) (assignment.Assignment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if a.Type.Singular() && repo.hasApprovedLocked(a.StudentID, a.Type) {
		return assignment.Assignment{}, assignment.ErrAlreadyAssigned
	}
	if repo.hasPendingLocked(a.StudentID, a.StaffID, a.Type) {
		return assignment.Assignment{}, assignment.ErrDuplicateRequest
	}

	a.ID = uuid.New().String()
	repo.db.t[a.ID] = &a
	return a, nil
}

func (repo *assignmentRepository) GetAssignmentByID(ctx context.Context, id string) (assignment.Assignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if a, ok := repo.db.t[id]; ok {
		return *a, nil
	}
	return assignment.Assignment{}, assignment.ErrNotFound
}

func (repo *assignmentRepository) ApproveAssignment(ctx context.Context, id, approvedBy, remarks string, at time.Time) (assignment.Assignment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	a, ok := repo.db.t[id]
	if !ok {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	if a.Status != assignment.StatusPending {
		return assignment.Assignment{}, assignment.ErrNotPending
	}
	if a.Type.Singular() && repo.hasApprovedLocked(a.StudentID, a.Type) {
		return assignment.Assignment{}, assignment.ErrAlreadyAssigned
	}

	a.Status = assignment.StatusApproved
	a.ApprovedBy = null.StringFrom(approvedBy)
	a.Remarks = null.NewString(remarks, remarks != "")
	a.ApprovedAt = null.TimeFrom(at)
	return *a, nil
}

func (repo *assignmentRepository) RejectAssignment(ctx context.Context, id, approvedBy, remarks string, at time.Time) (assignment.Assignment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	a, ok := repo.db.t[id]
	if !ok {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	if a.Status != assignment.StatusPending {
		return assignment.Assignment{}, assignment.ErrNotPending
	}

	a.Status = assignment.StatusRejected
	a.ApprovedBy = null.StringFrom(approvedBy)
	a.Remarks = null.NewString(remarks, remarks != "")
	a.ApprovedAt = null.TimeFrom(at)
	return *a, nil
}

func (repo *assignmentRepository) HasApprovedAssignment(ctx context.Context, studentID string, typ assignment.Type) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.hasApprovedLocked(studentID, typ), nil
}

func (repo *assignmentRepository) HasPendingRequest(ctx context.Context, studentID, staffID string, typ assignment.Type) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.hasPendingLocked(studentID, staffID, typ), nil
}

func (repo *assignmentRepository) FilterAssignments(ctx context.Context, filter assignment.QueryFilter) ([]assignment.Assignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	out := make([]assignment.Assignment, 0)
	for _, a := range repo.query() {
		if filter.StudentID != "" && a.StudentID != filter.StudentID {
			continue
		}
		if filter.StaffID != "" && a.StaffID != filter.StaffID {
			continue
		}
		if filter.Type != "" && a.Type != filter.Type {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}
