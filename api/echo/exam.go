package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/user"
)

type examApi struct {
	svc      exam.ServiceInterface
	usrSvc   user.ServiceInterface
	validate *validator.Validate
}

func registerExamAPI(
	g *echo.Group,
	jwt, optJWT echo.MiddlewareFunc,
	svc exam.ServiceInterface,
	usrSvc user.ServiceInterface,
	validate *validator.Validate,
) {
	api := examApi{svc: svc, usrSvc: usrSvc, validate: validate}

	tg := g.Group("/tests")
	tg.GET("", api.query, optJWT)
	tg.POST("", api.create, jwt)
	tg.POST("/submit", api.submit, jwt)
	tg.GET("/:id", api.retrieve, optJWT)
	tg.PUT("/:id", api.update, jwt)
	tg.DELETE("/:id", api.destroy, jwt)

	qg := g.Group("/questions")
	qg.GET("", api.queryQuestions, optJWT)
	qg.POST("", api.createQuestion, jwt)
	qg.PUT("/:id", api.updateQuestion, jwt)
	qg.DELETE("/:id", api.destroyQuestion, jwt)

	sg := g.Group("/test-submissions", jwt)
	sg.GET("", api.querySubmissions)
	sg.GET("/:id", api.retrieveSubmission)
	sg.POST("/:id/recalculate", api.recalculate, adminMiddleware())

	ansg := g.Group("/test-answers", jwt)
	ansg.GET("", api.queryAnswers)
	ansg.POST("", api.saveAnswer)
	ansg.PUT("/:id", api.updateAnswer)
}

// ---------------------------------------------------------------- tests

func (api *examApi) create(ctx echo.Context) error {
	var data exam.NewTest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	actor, err := contextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	tst, err := api.svc.CreateTest(ctx.Request().Context(), actor, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, tst)
}

func (api *examApi) query(ctx echo.Context) error {
	filter := new(exam.TestQueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []exam.Test{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)
	actor, err := contextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	tests, err := api.svc.QueryTests(ctx.Request().Context(), actor, filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying tests")
	}
	if tests == nil {
		tests = []exam.Test{}
	}
	return ctx.JSON(http.StatusOK, tests)
}

func (api *examApi) retrieve(ctx echo.Context) error {
	actor, err := contextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	tst, err := api.svc.GetTest(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, tst)
}

func (api *examApi) update(ctx echo.Context) error {
	var data exam.UpdateTest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	actor, err := contextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	tst, err := api.svc.UpdateTest(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, tst)
}

func (api *examApi) destroy(ctx echo.Context) error {
	actor, err := contextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	if err := api.svc.DeleteTests(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// ------------------------------------------------------------ questions

func (api *examApi) createQuestion(ctx echo.Context) error {
	var data exam.NewQuestion
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuestion")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	actor, err := contextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	qst, err := api.svc.CreateQuestion(ctx.Request().Context(), actor, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, qst)
}

func (api *examApi) queryQuestions(ctx echo.Context) error {
	filter := new(exam.QuestionQueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []exam.Question{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)
	actor, err := contextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	questions, err := api.svc.QueryQuestions(ctx.Request().Context(), actor, filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying questions")
	}
	if questions == nil {
		questions = []exam.Question{}
	}
	// answer keys stay with teaching staff
	if actor == nil || actor.IsStudent() {
		for i := range questions {
			questions[i].CorrectAnswer = ""
		}
	}
	return ctx.JSON(http.StatusOK, questions)
}

func (api *examApi) updateQuestion(ctx echo.Context) error {
	var data exam.UpdateQuestion
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateQuestion")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	actor, err := contextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	qst, err := api.svc.UpdateQuestion(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, qst)
}

func (api *examApi) destroyQuestion(ctx echo.Context) error {
	actor, err := contextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	if err := api.svc.DeleteQuestions(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// -------------------------------------------------- submissions/answers

func (api *examApi) submit(ctx echo.Context) error {
	var data exam.SubmitTest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubmitTest")
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

func (api *examApi) querySubmissions(ctx echo.Context) error {
	filter := new(exam.SubmissionQueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []exam.Submission{})
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
		submissions = []exam.Submission{}
	}
	return ctx.JSON(http.StatusOK, submissions)
}

func (api *examApi) retrieveSubmission(ctx echo.Context) error {
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

func (api *examApi) recalculate(ctx echo.Context) error {
	sub, err := api.svc.Recalculate(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *examApi) queryAnswers(ctx echo.Context) error {
	filter := new(exam.AnswerQueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []exam.Answer{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)
	actor, err := contextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	answers, err := api.svc.QueryAnswers(ctx.Request().Context(), actor, filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying answers")
	}
	if answers == nil {
		answers = []exam.Answer{}
	}
	return ctx.JSON(http.StatusOK, answers)
}

func (api *examApi) saveAnswer(ctx echo.Context) error {
	var data exam.SaveAnswer
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SaveAnswer")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	actor, err := contextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	ans, err := api.svc.SaveAnswer(ctx.Request().Context(), actor, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ans)
}

func (api *examApi) updateAnswer(ctx echo.Context) error {
	var data exam.SaveAnswer
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SaveAnswer")
	}
	actor, err := contextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	ans, err := api.svc.UpdateAnswer(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ans)
}
