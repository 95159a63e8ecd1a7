package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/course"
	"github.com/trezcool/shule/core/user"
)

type courseApi struct {
	svc      course.ServiceInterface
	usrSvc   user.ServiceInterface
	validate *validator.Validate
}

func registerCourseAPI(
	g *echo.Group,
	jwt, optJWT echo.MiddlewareFunc,
	svc course.ServiceInterface,
	usrSvc user.ServiceInterface,
	validate *validator.Validate,
) {
	api := courseApi{svc: svc, usrSvc: usrSvc, validate: validate}

	cg := g.Group("/courses")
	cg.GET("", api.query, optJWT)
	cg.POST("", api.create, jwt)
	cg.GET("/:id", api.retrieve, optJWT)
	cg.PUT("/:id", api.update, jwt)
	cg.DELETE("/:id", api.destroy, jwt)
	cg.POST("/:id/enroll", api.enroll, jwt)
	cg.POST("/:id/sync-counters", api.syncCounters, jwt, adminMiddleware())

	lg := g.Group("/lectures")
	lg.GET("", api.queryLectures, optJWT)
	lg.POST("", api.createLecture, jwt)
	lg.GET("/:id", api.retrieveLecture, optJWT)
	lg.PUT("/:id", api.updateLecture, jwt)
	lg.DELETE("/:id", api.destroyLecture, jwt)

	eg := g.Group("/enrollments", jwt)
	eg.GET("", api.queryEnrollments)
	eg.GET("/:id", api.retrieveEnrollment)
	eg.PUT("/:id", api.updateEnrollment)
	eg.DELETE("/:id", api.withdraw)

	pg := g.Group("/lecture-progress", jwt)
	pg.GET("", api.queryProgress)
	pg.POST("", api.saveProgress)
}

// -------------------------------------------------------------- courses

func (api *courseApi) create(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	actor, err := contextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	crs, err := api.svc.CreateCourse(ctx.Request().Context(), actor, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, crs)
}

func (api *courseApi) query(ctx echo.Context) error {
	filter := new(course.CourseQueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []course.Course{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)
	actor, err := contextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	courses, err := api.svc.QueryCourses(ctx.Request().Context(), actor, filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	actor, err := contextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	crs, err := api.svc.GetCourse(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) update(ctx echo.Context) error {
	var data course.UpdateCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	actor, err := contextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	crs, err := api.svc.UpdateCourse(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) destroy(ctx echo.Context) error {
	actor, err := contextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	if err := api.svc.DeleteCourses(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) enroll(ctx echo.Context) error {
	actor, err := contextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	enr, err := api.svc.Enroll(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, enr)
}

func (api *courseApi) syncCounters(ctx echo.Context) error {
	fixed, err := api.svc.SyncCounters(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"fixed": fixed})
}

// ------------------------------------------------------------- lectures

func (api *courseApi) createLecture(ctx echo.Context) error {
	var data course.NewLecture
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLecture")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	actor, err := contextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	lec, err := api.svc.CreateLecture(ctx.Request().Context(), actor, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, lec)
}

func (api *courseApi) queryLectures(ctx echo.Context) error {
	filter := new(course.LectureQueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []course.Lecture{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)
	actor, err := contextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	lectures, err := api.svc.QueryLectures(ctx.Request().Context(), actor, filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying lectures")
	}
	if lectures == nil {
		lectures = []course.Lecture{}
	}
	return ctx.JSON(http.StatusOK, lectures)
}

func (api *courseApi) retrieveLecture(ctx echo.Context) error {
	actor, err := contextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	lec, err := api.svc.GetLecture(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, lec)
}

func (api *courseApi) updateLecture(ctx echo.Context) error {
	var data course.UpdateLecture
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateLecture")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	actor, err := contextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	lec, err := api.svc.UpdateLecture(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, lec)
}

func (api *courseApi) destroyLecture(ctx echo.Context) error {
	actor, err := contextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	if err := api.svc.DeleteLectures(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// ---------------------------------------------------------- enrollments

func (api *courseApi) queryEnrollments(ctx echo.Context) error {
	filter := new(course.EnrollmentQueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []course.Enrollment{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)
	actor, err := contextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	enrollments, err := api.svc.QueryEnrollments(ctx.Request().Context(), actor, filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	if enrollments == nil {
		enrollments = []course.Enrollment{}
	}
	return ctx.JSON(http.StatusOK, enrollments)
}

func (api *courseApi) retrieveEnrollment(ctx echo.Context) error {
	actor, err := contextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	enr, err := api.svc.GetEnrollment(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, enr)
}

func (api *courseApi) updateEnrollment(ctx echo.Context) error {
	var data course.UpdateEnrollment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateEnrollment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	actor, err := contextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	enr, err := api.svc.UpdateEnrollment(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, enr)
}

func (api *courseApi) withdraw(ctx echo.Context) error {
	actor, err := contextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	if err := api.svc.Withdraw(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// ------------------------------------------------------------- progress

func (api *courseApi) queryProgress(ctx echo.Context) error {
	filter := new(course.ProgressQueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []course.LectureProgress{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)
	actor, err := contextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	progress, err := api.svc.QueryProgress(ctx.Request().Context(), actor, filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying lecture progress")
	}
	if progress == nil {
		progress = []course.LectureProgress{}
	}
	return ctx.JSON(http.StatusOK, progress)
}

func (api *courseApi) saveProgress(ctx echo.Context) error {
	var data course.SaveProgress
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SaveProgress")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	actor, err := contextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	prg, err := api.svc.SaveProgress(ctx.Request().Context(), actor, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, prg)
}
