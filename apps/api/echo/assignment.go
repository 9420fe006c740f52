package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/maendeleo/core/assignment"
	"github.com/trezcool/maendeleo/core/workflow"
)

type assignmentApi struct {
	wf  *workflow.Coordinator
	svc *assignment.Service
}

func registerAssignmentAPI(g *echo.Group, jwt echo.MiddlewareFunc, wf *workflow.Coordinator, svc *assignment.Service) {
	api := assignmentApi{wf: wf, svc: svc}

	ag := g.Group("/assignments", jwt)
	ag.POST("", api.request, staffMiddleware())
	ag.GET("", api.query, staffMiddleware())

	dg := ag.Group("/:id", staffMiddleware())
	dg.GET("", api.retrieve)
	dg.POST("/approve", api.approve)
	dg.POST("/reject", api.reject)
}

// Handlers

func (api *assignmentApi) request(ctx echo.Context) error {
	var data assignment.NewAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	res, err := api.wf.RequestAssignment(ctx.Request().Context(), data, actor.ID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, res)
}

type decisionRequest struct {
	Remarks string `json:"remarks"`
}

func (api *assignmentApi) approve(ctx echo.Context) error {
	return api.decide(ctx, assignment.DecisionApprove)
}

func (api *assignmentApi) reject(ctx echo.Context) error {
	return api.decide(ctx, assignment.DecisionReject)
}

func (api *assignmentApi) decide(ctx echo.Context, decision assignment.Decision) error {
	var data decisionRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to decisionRequest")
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	res, err := api.wf.DecideAssignment(ctx.Request().Context(), ctx.Param("id"), decision, actor, data.Remarks)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *assignmentApi) retrieve(ctx echo.Context) error {
	a, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *assignmentApi) query(ctx echo.Context) error {
	filter := assignment.QueryFilter{
		StudentID: ctx.QueryParam("student_id"),
		StaffID:   ctx.QueryParam("staff_id"),
		Type:      assignment.Type(ctx.QueryParam("assignment_type")),
		Status:    assignment.Status(ctx.QueryParam("status")),
	}
	res, err := api.svc.Filter(ctx.Request().Context(), filter)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}
