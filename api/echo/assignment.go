package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/assignment"
	"github.com/trezcool/shule/core/user"
)

type assignmentApi struct {
	svc      assignment.ServiceInterface
	usrSvc   user.ServiceInterface
	validate *validator.Validate
}

func registerAssignmentAPI(
	g *echo.Group,
	jwt, optJWT echo.MiddlewareFunc,
	svc assignment.ServiceInterface,
	usrSvc user.ServiceInterface,
	validate *validator.Validate,
) {
	api := assignmentApi{svc: svc, usrSvc: usrSvc, validate: validate}

	ag := g.Group("/assignments")
	ag.GET("", api.query, optJWT)
	ag.POST("", api.create, jwt)
	ag.POST("/sweep-overdue", api.sweepOverdue, jwt, adminMiddleware())
	ag.GET("/:id", api.retrieve, optJWT)
	ag.PUT("/:id", api.update, jwt)
	ag.DELETE("/:id", api.destroy, jwt)

	sg := g.Group("/assignment-submissions", jwt)
	sg.POST("", api.submit)
	sg.GET("", api.querySubmissions)
	sg.GET("/:id", api.retrieveSubmission)
	sg.POST("/:id/grade", api.grade)
}

func (api *assignmentApi) create(ctx echo.Context) error {
	var data assignment.NewAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	actor, err := contextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	asg, err := api.svc.Create(ctx.Request().Context(), actor, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, asg)
}

func (api *assignmentApi) query(ctx echo.Context) error {
	filter := new(assignment.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []assignment.Assignment{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)
	actor, err := contextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	assignments, err := api.svc.Query(ctx.Request().Context(), actor, filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	if assignments == nil {
		assignments = []assignment.Assignment{}
	}
	return ctx.JSON(http.StatusOK, assignments)
}

func (api *assignmentApi) retrieve(ctx echo.Context) error {
	actor, err := contextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	asg, err := api.svc.GetByID(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, asg)
}

func (api *assignmentApi) update(ctx echo.Context) error {
	var data assignment.UpdateAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAssignment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	actor, err := contextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	asg, err := api.svc.Update(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, asg)
}

func (api *assignmentApi) destroy(ctx echo.Context) error {
	actor, err := contextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *assignmentApi) sweepOverdue(ctx echo.Context) error {
	dryRun, _ := strconv.ParseBool(ctx.QueryParam("dry_run"))
	flipped, err := api.svc.SweepOverdue(ctx.Request().Context(), dryRun)
	if err != nil {
		return err
	}
	if flipped == nil {
		flipped = []assignment.Assignment{}
	}
	return ctx.JSON(http.StatusOK, flipped)
}

// ---------------------------------------------------------- submissions

func (api *assignmentApi) submit(ctx echo.Context) error {
	var data assignment.SubmitAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubmitAssignment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	actor, err := contextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	sub, err := api.svc.Submit(ctx.Request().Context(), actor, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *assignmentApi) querySubmissions(ctx echo.Context) error {
	filter := new(assignment.SubmissionQueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []assignment.Submission{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)
	actor, err := contextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	submissions, err := api.svc.QuerySubmissions(ctx.Request().Context(), actor, filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying submissions")
	}
	if submissions == nil {
		submissions = []assignment.Submission{}
	}
	return ctx.JSON(http.StatusOK, submissions)
}

func (api *assignmentApi) retrieveSubmission(ctx echo.Context) error {
	actor, err := contextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	sub, err := api.svc.GetSubmission(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *assignmentApi) grade(ctx echo.Context) error {
	var data assignment.GradeSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradeSubmission")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	actor, err := contextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	sub, err := api.svc.Grade(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sub)
}
