package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/maendeleo/core/milestone"
	"github.com/trezcool/maendeleo/core/workflow"
)

type milestoneApi struct {
	wf  *workflow.Coordinator
	svc *milestone.Service
}

func registerMilestoneAPI(g *echo.Group, jwt echo.MiddlewareFunc, wf *workflow.Coordinator, svc *milestone.Service) {
	api := milestoneApi{wf: wf, svc: svc}

	tg := g.Group("/milestone-templates", jwt)
	tg.POST("", api.createTemplate, adminMiddleware())
	tg.GET("", api.queryTemplates, staffMiddleware())
	tg.POST("/:id/deactivate", api.deactivateTemplate, adminMiddleware())

	mg := g.Group("/milestones", jwt)
	mg.POST("", api.scheduleAdHoc, staffMiddleware())
	mg.GET("/:id", api.retrieve, staffMiddleware())
	mg.POST("/:id/override-deadline", api.overrideDeadline, staffMiddleware())
	mg.POST("/:id/cancel", api.cancel, staffMiddleware())

	sg := g.Group("/students/:id/milestones", jwt)
	sg.GET("", api.studentMilestones, staffMiddleware())

	g.POST("/submissions", api.recordSubmission, jwt, staffMiddleware())
}

// Handlers

func (api *milestoneApi) createTemplate(ctx echo.Context) error {
	var data milestone.NewTemplate
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTemplate")
	}
	tpl, err := api.svc.CreateTemplate(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, tpl)
}

func (api *milestoneApi) queryTemplates(ctx echo.Context) error {
	res, err := api.svc.ActiveTemplates(ctx.Request().Context(), ctx.QueryParam("program_id"), ctx.QueryParam("department_id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *milestoneApi) deactivateTemplate(ctx echo.Context) error {
	tpl, err := api.svc.DeactivateTemplate(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, tpl)
}

func (api *milestoneApi) scheduleAdHoc(ctx echo.Context) error {
	var data milestone.NewAdHoc
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAdHoc")
	}
	inst, err := api.svc.ScheduleAdHoc(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, inst)
}

func (api *milestoneApi) retrieve(ctx echo.Context) error {
	inst, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, inst)
}

func (api *milestoneApi) studentMilestones(ctx echo.Context) error {
	res, err := api.svc.StudentInstances(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

type overrideDeadlineRequest struct {
	Deadline time.Time `json:"deadline"`
	Reason   string    `json:"reason"`
}

func (api *milestoneApi) overrideDeadline(ctx echo.Context) error {
	var data overrideDeadlineRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to overrideDeadlineRequest")
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	res, err := api.wf.OverrideMilestoneDeadline(ctx.Request().Context(), ctx.Param("id"), data.Deadline, data.Reason, actor.ID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (api *milestoneApi) cancel(ctx echo.Context) error {
	var data cancelRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to cancelRequest")
	}
	res, err := api.wf.CancelMilestone(ctx.Request().Context(), ctx.Param("id"), data.Reason)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

type submissionRequest struct {
	StudentID    string     `json:"student_id"`
	DocumentType string     `json:"document_type"`
	SubmittedAt  *time.Time `json:"submitted_at"`
}

func (api *milestoneApi) recordSubmission(ctx echo.Context) error {
	var data submissionRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to submissionRequest")
	}
	submittedAt := time.Now().UTC()
	if data.SubmittedAt != nil {
		submittedAt = *data.SubmittedAt
	}
	res, err := api.wf.RecordSubmission(ctx.Request().Context(), data.StudentID, data.DocumentType, submittedAt)
	if err != nil {
		return err
	}
	code := http.StatusOK
	if res.Unmatched {
		code = http.StatusAccepted
	}
	return ctx.JSON(code, res)
}
