package staff

import "testing"

func TestMaxRolePriority(t *testing.T) {
	tests := []struct {
		name  string
		roles []string
		want  int
	}{
		{name: "empty"},
		{name: "unknown role", roles: []string{"lol:"}},
		{name: "student", roles: []string{RoleStudent}, want: 1},
		{name: "staff mix", roles: []string{RoleExaminer, RoleSupervisor}, want: 13},
		{name: "admin beats staff", roles: []string{RoleDirector, RoleAdminOwner}, want: 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MaxRolePriority(tt.roles); got != tt.want {
				t.Errorf("MaxRolePriority() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanDecideAssignment(t *testing.T) {
	tests := []struct {
		name         string
		actor        Actor
		departmentID string
		want         bool
	}{
		{
			name:         "admin decides any department",
			actor:        Actor{Roles: []string{RoleAdminRegistrar}, DepartmentID: "math"},
			departmentID: "physics",
			want:         true,
		},
		{
			name:         "director decides own department",
			actor:        Actor{Roles: []string{RoleDirector}, DepartmentID: "math"},
			departmentID: "math",
			want:         true,
		},
		{
			name:         "director cannot decide other department",
			actor:        Actor{Roles: []string{RoleDirector}, DepartmentID: "math"},
			departmentID: "physics",
		},
		{
			name:         "director without department cannot decide",
			actor:        Actor{Roles: []string{RoleDirector}},
			departmentID: "math",
		},
		{
			name:         "supervisor cannot decide",
			actor:        Actor{Roles: []string{RoleSupervisor}, DepartmentID: "math"},
			departmentID: "math",
		},
		{
			name:         "coordinator cannot decide",
			actor:        Actor{Roles: []string{RoleCoordinator}, DepartmentID: "math"},
			departmentID: "math",
		},
		{
			name:         "student cannot decide",
			actor:        Actor{Roles: []string{RoleStudent}, DepartmentID: "math"},
			departmentID: "math",
		},
		{
			name:         "no roles",
			actor:        Actor{DepartmentID: "math"},
			departmentID: "math",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanDecideAssignment(tt.actor, tt.departmentID); got != tt.want {
				t.Errorf("CanDecideAssignment() = %v, want %v", got, tt.want)
			}
		})
	}
}
