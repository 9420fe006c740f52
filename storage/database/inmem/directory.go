package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/maendeleo/core/directory"
)

type DirectoryRepository struct {
	students *studentTable
	staffs   *staffTable
}

var _ directory.Directory = (*DirectoryRepository)(nil) // interface compliance check

func NewDirectory(db *DB) *DirectoryRepository {
	return &DirectoryRepository{students: db.students, staffs: db.staffs}
}

func (repo *DirectoryRepository) GetStudent(ctx context.Context, id string) (directory.Student, error) {
	repo.students.mutex.RLock()
	defer repo.students.mutex.RUnlock()

	if st, ok := repo.students.t[id]; ok {
		return *st, nil
	}
	return directory.Student{}, directory.ErrStudentNotFound
}

func (repo *DirectoryRepository) GetStaff(ctx context.Context, id string) (directory.Staff, error) {
	repo.staffs.mutex.RLock()
	defer repo.staffs.mutex.RUnlock()

	if sf, ok := repo.staffs.t[id]; ok {
		return *sf, nil
	}
	return directory.Staff{}, directory.ErrStaffNotFound
}

// AddStudent and AddStaff seed the in-memory directory; the durable directory
// is owned by the external registration system.

func (repo *DirectoryRepository) AddStudent(st directory.Student) directory.Student {
	repo.students.mutex.Lock()
	defer repo.students.mutex.Unlock()

	if st.ID == "" {
		st.ID = uuid.New().String()
	}
	repo.students.t[st.ID] = &st
	return st
}

func (repo *DirectoryRepository) AddStaff(sf directory.Staff) directory.Staff {
	repo.staffs.mutex.Lock()
	defer repo.staffs.mutex.Unlock()

	if sf.ID == "" {
		sf.ID = uuid.New().String()
	}
	repo.staffs.t[sf.ID] = &sf
	return sf
}
