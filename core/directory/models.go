// Package directory exposes read-only people records owned by the (external)
// registration system. The engine reads them to seed milestones at enrollment
// and to address notification emails; it never mutates them.
package directory

import (
	"context"
	"time"

	"github.com/trezcool/maendeleo/core"
)

var (
	ErrStudentNotFound = core.NewNotFoundError("student not found")
	ErrStaffNotFound   = core.NewNotFoundError("staff member not found")
)

type Student struct {
	ID             string    `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	Email          string    `json:"email" db:"email"`
	ProgramID      string    `json:"program_id" db:"program_id"`
	DepartmentID   string    `json:"department_id" db:"department_id"`
	EnrollmentDate time.Time `json:"enrollment_date" db:"enrollment_date"` // UTC
}

type Staff struct {
	ID           string `json:"id" db:"id"`
	Name         string `json:"name" db:"name"`
	Email        string `json:"email" db:"email"`
	DepartmentID string `json:"department_id" db:"department_id"`
}

type Directory interface {
	GetStudent(ctx context.Context, id string) (Student, error)
	GetStaff(ctx context.Context, id string) (Staff, error)
}
