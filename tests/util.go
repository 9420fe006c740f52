package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/maendeleo/core"
	"github.com/trezcool/maendeleo/core/assignment"
	"github.com/trezcool/maendeleo/core/directory"
	"github.com/trezcool/maendeleo/core/milestone"
	"github.com/trezcool/maendeleo/core/notification"
	"github.com/trezcool/maendeleo/core/workflow"
	"github.com/trezcool/maendeleo/services/email"
	"github.com/trezcool/maendeleo/storage/database/inmem"
)

// Engine bundles the services over the in-memory storage for tests.
type Engine struct {
	DB             *inmemdb.DB
	Dir            *inmemdb.DirectoryRepository
	Clock          *core.FixedClock
	AssignmentRepo assignment.Repository
	MilestoneRepo  milestone.Repository
	NotifRepo      notification.Repository
	AssignmentSvc  *assignment.Service
	MilestoneSvc   *milestone.Service
	NotifSvc       *notification.Service
	Coordinator    *workflow.Coordinator
}

func NewEngine(t *testing.T, now time.Time, coolDown time.Duration) *Engine {
	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("opening inmem DB failed: %v", err)
	}
	clock := &core.FixedClock{T: now}
	dir := inmemdb.NewDirectory(db)
	conf := &core.Config{AppName: "Maendeleo", TestMode: true, DefaultFromEmail: "noreply@test.local"}
	mailSvc := emailsvc.NewConsoleServiceMock(conf)

	assignmentRepo := inmemdb.NewAssignmentRepository(db)
	milestoneRepo := inmemdb.NewMilestoneRepository(db)
	notifRepo := inmemdb.NewNotificationRepository(db)

	assignmentSvc := assignment.NewService(assignmentRepo, clock)
	milestoneSvc := milestone.NewService(milestoneRepo, clock)
	notifSvc := notification.NewService(notifRepo, clock, dir, mailSvc, coolDown)

	return &Engine{
		DB:             db,
		Dir:            dir,
		Clock:          clock,
		AssignmentRepo: assignmentRepo,
		MilestoneRepo:  milestoneRepo,
		NotifRepo:      notifRepo,
		AssignmentSvc:  assignmentSvc,
		MilestoneSvc:   milestoneSvc,
		NotifSvc:       notifSvc,
		Coordinator:    workflow.NewCoordinator(assignmentSvc, milestoneSvc, notifSvc, dir, clock, core.NewNopLogger()),
	}
}

func CreateStudent(
	t *testing.T,
	dir *inmemdb.DirectoryRepository,
	name, email, programID, departmentID string,
	enrollmentDate time.Time,
) directory.Student {
	return dir.AddStudent(directory.Student{
		Name:           name,
		Email:          email,
		ProgramID:      programID,
		DepartmentID:   departmentID,
		EnrollmentDate: enrollmentDate.UTC(),
	})
}

func CreateStaff(
	t *testing.T,
	dir *inmemdb.DirectoryRepository,
	name, email, departmentID string,
) directory.Staff {
	return dir.AddStaff(directory.Staff{
		Name:         name,
		Email:        email,
		DepartmentID: departmentID,
	})
}

func CreateTemplate(
	t *testing.T,
	svc *milestone.Service,
	name, documentType string,
	sortOrder int,
	defaultDueDays *int,
	alertLeadDays int,
	programID, departmentID string,
) milestone.Template {
	tpl, err := svc.CreateTemplate(context.Background(), milestone.NewTemplate{
		Name:           name,
		DocumentType:   documentType,
		SortOrder:      sortOrder,
		DefaultDueDays: defaultDueDays,
		AlertLeadDays:  alertLeadDays,
		ProgramID:      programID,
		DepartmentID:   departmentID,
	})
	if err != nil {
		t.Fatalf("CreateTemplate() failed: %v", err)
	}
	return tpl
}

func CreateAssignment(
	t *testing.T,
	repo assignment.Repository,
	studentID, staffID string,
	typ assignment.Type,
	status assignment.Status,
	departmentID string,
	requestedAt time.Time,
) assignment.Assignment {
	a := assignment.Assignment{
		StudentID:    studentID,
		StaffID:      staffID,
		Type:         typ,
		Status:       status,
		DepartmentID: departmentID,
		RequestedAt:  requestedAt.UTC(),
	}
	if status == assignment.StatusApproved {
		a.ApprovedBy = null.StringFrom("seed")
		a.ApprovedAt = null.TimeFrom(requestedAt.UTC())
	}
	a, err := repo.CreateAssignment(context.Background(), a)
	if err != nil {
		t.Fatalf("CreateAssignment() failed: %v", err)
	}
	return a
}

func IntPtr(i int) *int              { return &i }
func TimePtr(t time.Time) *time.Time { return &t }
