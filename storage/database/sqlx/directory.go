package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/maendeleo/core/directory"
)

// directoryRepository reads the student/staff tables replicated from the
// registration system. Read-only by contract.
type directoryRepository struct {
	db *sqlx.DB
}

var _ directory.Directory = (*directoryRepository)(nil) // interface compliance check

func NewDirectory(db *sqlx.DB) *directoryRepository {
	return &directoryRepository{db: db}
}

func (repo *directoryRepository) GetStudent(ctx context.Context, id string) (directory.Student, error) {
	const q = `SELECT * FROM student WHERE id = $1`

	var st directory.Student
	if err := repo.db.GetContext(ctx, &st, q, id); err != nil {
		return directory.Student{}, trapNoRowsErr(err, directory.ErrStudentNotFound, "getting student")
	}
	return st, nil
}

func (repo *directoryRepository) GetStaff(ctx context.Context, id string) (directory.Staff, error) {
	const q = `SELECT * FROM staff WHERE id = $1`

	var sf directory.Staff
	if err := repo.db.GetContext(ctx, &sf, q, id); err != nil {
		return directory.Staff{}, trapNoRowsErr(err, directory.ErrStaffNotFound, "getting staff member")
	}
	return sf, nil
}
