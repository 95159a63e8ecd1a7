package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/announce"
	"github.com/trezcool/shule/core/user"
)

type announceApi struct {
	svc      announce.ServiceInterface
	usrSvc   user.ServiceInterface
	validate *validator.Validate
}

func registerAnnounceAPI(
	g *echo.Group,
	jwt, optJWT echo.MiddlewareFunc,
	svc announce.ServiceInterface,
	usrSvc user.ServiceInterface,
	validate *validator.Validate,
) {
	api := announceApi{svc: svc, usrSvc: usrSvc, validate: validate}

	ag := g.Group("/announcements")
	ag.GET("", api.query, optJWT)
	ag.POST("", api.create, jwt)
	ag.GET("/:id", api.retrieve, optJWT)
	ag.PUT("/:id", api.update, jwt)
	ag.DELETE("/:id", api.destroy, jwt)
}

func (api *announceApi) create(ctx echo.Context) error {
	var data announce.NewAnnouncement
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAnnouncement")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	actor, err := contextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	ann, err := api.svc.Create(ctx.Request().Context(), actor, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, ann)
}

func (api *announceApi) query(ctx echo.Context) error {
	filter := new(announce.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []announce.Announcement{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)
	actor, err := contextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	announcements, err := api.svc.Query(ctx.Request().Context(), actor, filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying announcements")
	}
	if announcements == nil {
		announcements = []announce.Announcement{}
	}
	return ctx.JSON(http.StatusOK, announcements)
}

func (api *announceApi) retrieve(ctx echo.Context) error {
	actor, err := contextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	ann, err := api.svc.GetByID(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ann)
}

func (api *announceApi) update(ctx echo.Context) error {
	var data announce.UpdateAnnouncement
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAnnouncement")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	actor, err := contextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	ann, err := api.svc.Update(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ann)
}

func (api *announceApi) destroy(ctx echo.Context) error {
	actor, err := contextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
