package echoapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/maendeleo/core"
	"github.com/trezcool/maendeleo/core/assignment"
	"github.com/trezcool/maendeleo/core/milestone"
	"github.com/trezcool/maendeleo/core/staff"
	"github.com/trezcool/maendeleo/core/workflow"
	"github.com/trezcool/maendeleo/tests"
)

var testStart = time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*core.Config, *testutil.Engine, Server) {
	conf := &core.Config{
		AppName:   "Maendeleo",
		TestMode:  true,
		SecretKey: "t3st-s3cr3t",
		Server:    core.ServerConfig{Addr: ":0", JWTExpirationDelta: time.Hour},
	}
	eng := testutil.NewEngine(t, testStart, 24*time.Hour)
	srv := NewServer(&Options{
		Conf:            conf,
		Logger:          core.NewNopLogger(),
		Coordinator:     eng.Coordinator,
		AssignmentSvc:   eng.AssignmentSvc,
		MilestoneSvc:    eng.MilestoneSvc,
		NotificationSvc: eng.NotifSvc,
		DisableReqLogs:  true,
	})
	return conf, eng, srv
}

func token(t *testing.T, conf *core.Config, actor staff.Actor) string {
	tok, err := GenerateToken(conf, GetActorClaims(conf, actor))
	require.NoError(t, err)
	return tok
}

func doJSON(srv Server, method, path, tok string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if tok != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestServerHome(t *testing.T) {
	_, _, srv := setup(t)

	rec := doJSON(srv, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Maendeleo")
}

func TestServerAuth(t *testing.T) {
	conf, _, srv := setup(t)

	t.Run("missing token", func(t *testing.T) {
		rec := doJSON(srv, http.MethodGet, "/v1/assignments", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("student role is not staff", func(t *testing.T) {
		tok := token(t, conf, staff.Actor{ID: "std1", Roles: []string{staff.RoleStudent}})
		rec := doJSON(srv, http.MethodGet, "/v1/assignments", tok, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("template admin is admin-only", func(t *testing.T) {
		tok := token(t, conf, staff.Actor{ID: "dir1", Roles: []string{staff.RoleDirector}, DepartmentID: "eng"})
		rec := doJSON(srv, http.MethodPost, "/v1/milestone-templates", tok, milestone.NewTemplate{Name: "X"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestServerAssignmentFlow(t *testing.T) {
	conf, eng, srv := setup(t)

	jane := testutil.CreateStudent(t, eng.Dir, "Jane", "jane@uni.test", "phd-cs", "eng", testStart.AddDate(0, -1, 0))
	profX := testutil.CreateStaff(t, eng.Dir, "Prof X", "x@uni.test", "eng")

	admin := token(t, conf, staff.Actor{ID: "adm1", Roles: []string{staff.RoleAdminRegistrar}})
	engDirector := token(t, conf, staff.Actor{ID: "dir1", Roles: []string{staff.RoleDirector}, DepartmentID: "eng"})
	sciDirector := token(t, conf, staff.Actor{ID: "dir2", Roles: []string{staff.RoleDirector}, DepartmentID: "sci"})
	student := token(t, conf, staff.Actor{ID: jane.ID, Roles: []string{staff.RoleStudent}})

	// seed the catalog so the approval materializes something
	rec := doJSON(srv, http.MethodPost, "/v1/milestone-templates", admin, milestone.NewTemplate{
		Name:           "Research Proposal",
		DocumentType:   "proposal",
		SortOrder:      10,
		DefaultDueDays: testutil.IntPtr(90),
		AlertLeadDays:  14,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// request the assignment
	rec = doJSON(srv, http.MethodPost, "/v1/assignments", engDirector, assignment.NewAssignment{
		StudentID: jane.ID,
		StaffID:   profX.ID,
		StaffRole: staff.RoleSupervisor,
		Type:      assignment.TypeMainSupervisor,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var res workflow.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.NotNil(t, res.Assignment)
	assert.Equal(t, assignment.StatusPending, res.Assignment.Status)
	// the department comes from the student's directory record, not the payload
	assert.Equal(t, jane.DepartmentID, res.Assignment.DepartmentID)
	id := res.Assignment.ID

	t.Run("a foreign director cannot decide", func(t *testing.T) {
		rec := doJSON(srv, http.MethodPost, "/v1/assignments/"+id+"/approve", sciDirector, echo.Map{})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("the own-department director approves", func(t *testing.T) {
		rec := doJSON(srv, http.MethodPost, "/v1/assignments/"+id+"/approve", engDirector, echo.Map{"remarks": "ok"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var res workflow.Result
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Equal(t, assignment.StatusApproved, res.Assignment.Status)
		assert.Len(t, res.Milestones, 1)
		assert.Len(t, res.Notifications, 2)
	})

	t.Run("deciding twice conflicts", func(t *testing.T) {
		rec := doJSON(srv, http.MethodPost, "/v1/assignments/"+id+"/reject", engDirector, echo.Map{"remarks": "nah"})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("the student sees the milestone", func(t *testing.T) {
		rec := doJSON(srv, http.MethodGet, "/v1/students/"+jane.ID+"/milestones", engDirector, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var insts []milestone.Instance
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &insts))
		require.Len(t, insts, 1)
		assert.Equal(t, milestone.StatusActive, insts[0].Status)
	})

	t.Run("the student reads their inbox", func(t *testing.T) {
		rec := doJSON(srv, http.MethodGet, "/v1/notifications", student, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "approved")

		rec = doJSON(srv, http.MethodGet, "/v1/notifications/unread-count", student, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"unread": 1}`, rec.Body.String())
	})

	t.Run("a submission closes the milestone", func(t *testing.T) {
		rec := doJSON(srv, http.MethodPost, "/v1/submissions", engDirector, echo.Map{
			"student_id":    jane.ID,
			"document_type": "proposal",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var res workflow.Result
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		require.Len(t, res.Milestones, 1)
		assert.Equal(t, milestone.StatusCompleted, res.Milestones[0].Status)
	})

	t.Run("an unmatched submission is accepted", func(t *testing.T) {
		rec := doJSON(srv, http.MethodPost, "/v1/submissions", engDirector, echo.Map{
			"student_id":    jane.ID,
			"document_type": "thesis_draft",
		})
		assert.Equal(t, http.StatusAccepted, rec.Code)
	})
}
