// Package inmemdb provides mutex-guarded in-memory repositories enforcing the
// same uniqueness and conditional-update contracts as the SQL layer. It backs
// unit tests and local hacking; nothing here survives a restart.
package inmemdb

import (
	"sync"

	"github.com/trezcool/maendeleo/core/assignment"
	"github.com/trezcool/maendeleo/core/directory"
	"github.com/trezcool/maendeleo/core/milestone"
	"github.com/trezcool/maendeleo/core/notification"
)

type (
	DB struct {
		assignments   *assignmentTable
		templates     *templateTable
		instances     *instanceTable
		notifications *notificationTable
		students      *studentTable
		staffs        *staffTable
	}

	assignmentTable struct {
		t     map[string]*assignment.Assignment
		mutex sync.RWMutex
	}

	templateTable struct {
		t     map[string]*milestone.Template
		mutex sync.RWMutex
	}

	instanceTable struct {
		t     map[string]*milestone.Instance
		mutex sync.RWMutex
	}

	notificationTable struct {
		t     map[string]*notification.Notification
		keys  map[string]string // dedup key -> notification id
		mutex sync.RWMutex
	}

	studentTable struct {
		t     map[string]*directory.Student
		mutex sync.RWMutex
	}

	staffTable struct {
		t     map[string]*directory.Staff
		mutex sync.RWMutex
	}
)

func Open() (*DB, error) {
	db := &DB{
		assignments:   &assignmentTable{t: make(map[string]*assignment.Assignment)},
		templates:     &templateTable{t: make(map[string]*milestone.Template)},
		instances:     &instanceTable{t: make(map[string]*milestone.Instance)},
		notifications: &notificationTable{t: make(map[string]*notification.Notification), keys: make(map[string]string)},
		students:      &studentTable{t: make(map[string]*directory.Student)},
		staffs:        &staffTable{t: make(map[string]*directory.Staff)},
	}
	return db, nil
}
