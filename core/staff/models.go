package staff

import "strings"

// Roles
const (
	// Admin
	RoleAdmin          = "admin:"
	RoleAdminOwner     = "admin:owner"
	RoleAdminRegistrar = "admin:registrar"

	// Staff
	RoleStaff       = "staff:"
	RoleDirector    = "staff:director"
	RoleCoordinator = "staff:coordinator"
	RoleSupervisor  = "staff:supervisor"
	RoleExaminer    = "staff:examiner"

	// Student
	RoleStudent = "student:"
)

var (
	AdminRoles   = []string{RoleAdmin, RoleAdminOwner, RoleAdminRegistrar}
	StaffRoles   = []string{RoleStaff, RoleDirector, RoleCoordinator, RoleSupervisor, RoleExaminer}
	StudentRoles = []string{RoleStudent}
	AllRoles     = getAllRoles()

	rolePriorities = map[string]int{
		// Admins: 30 - 21
		RoleAdminOwner:     30,
		RoleAdminRegistrar: 29,
		RoleAdmin:          21,

		// Staff: 20 - 11
		RoleDirector:    20,
		RoleCoordinator: 15,
		RoleSupervisor:  13,
		RoleExaminer:    12,
		RoleStaff:       11,

		// Students: 10 - 1
		RoleStudent: 1,
	}
)

func getAllRoles() []string {
	all := make([]string, 0, len(AdminRoles)+len(StaffRoles)+len(StudentRoles))
	all = append(all, AdminRoles...)
	all = append(all, StaffRoles...)
	all = append(all, StudentRoles...)
	return all
}

func RolePriority(role string) int {
	return rolePriorities[role]
}

func MaxRolePriority(roles []string) int {
	var max int
	for _, role := range roles {
		if RolePriority(role) > max {
			max = RolePriority(role)
		}
	}
	return max
}

// Actor is the authenticated identity on whose behalf a workflow operation
// runs. Authentication itself happens outside the engine; the engine only
// consumes the resulting identity, roles and department.
type Actor struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	Roles        []string `json:"roles"`
	DepartmentID string   `json:"department_id"`
}

func (a Actor) RoleStartsWith(prefix string) bool {
	for _, role := range a.Roles {
		if strings.HasPrefix(role, prefix) {
			return true
		}
	}
	return false
}

func (a Actor) IsAdmin() bool {
	return a.RoleStartsWith(RoleAdmin)
}

func (a Actor) IsDirector() bool {
	for _, role := range a.Roles {
		if role == RoleDirector {
			return true
		}
	}
	return false
}

func (a Actor) IsStudent() bool {
	return a.RoleStartsWith(RoleStudent)
}

// CanDecideAssignment is the single authority policy consulted before an
// assignment request is approved or rejected: an administrator may decide any
// request; a director may only decide requests within their own department.
func CanDecideAssignment(actor Actor, departmentID string) bool {
	if actor.IsAdmin() {
		return true
	}
	if actor.IsDirector() {
		return actor.DepartmentID != "" && actor.DepartmentID == departmentID
	}
	return false
}
