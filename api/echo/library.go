package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/library"
	"github.com/trezcool/shule/core/user"
)

type libraryApi struct {
	svc      library.ServiceInterface
	usrSvc   user.ServiceInterface
	validate *validator.Validate
}

func registerLibraryAPI(
	g *echo.Group,
	jwt, optJWT echo.MiddlewareFunc,
	svc library.ServiceInterface,
	usrSvc user.ServiceInterface,
	validate *validator.Validate,
) {
	api := libraryApi{svc: svc, usrSvc: usrSvc, validate: validate}

	lg := g.Group("/library")
	lg.GET("", api.query, optJWT)
	lg.POST("", api.create, jwt)
	lg.GET("/:id", api.retrieve, optJWT)
	lg.PUT("/:id", api.update, jwt)
	lg.DELETE("/:id", api.destroy, jwt)
	lg.POST("/:id/download", api.recordDownload, optJWT)
	lg.POST("/:id/favorite", api.favorite, jwt)
	lg.DELETE("/:id/favorite", api.unfavorite, jwt)

	fg := g.Group("/library-favorites", jwt)
	fg.GET("", api.queryFavorites)
}

func (api *libraryApi) create(ctx echo.Context) error {
	var data library.NewItem
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewItem")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	actor, err := contextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	item, err := api.svc.Create(ctx.Request().Context(), actor, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, item)
}

func (api *libraryApi) query(ctx echo.Context) error {
	filter := new(library.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []library.Item{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)
	actor, err := contextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	items, err := api.svc.Query(ctx.Request().Context(), actor, filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying library items")
	}
	if items == nil {
		items = []library.Item{}
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *libraryApi) retrieve(ctx echo.Context) error {
	actor, err := contextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	item, err := api.svc.GetByID(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, item)
}

func (api *libraryApi) update(ctx echo.Context) error {
	var data library.UpdateItem
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateItem")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	actor, err := contextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	item, err := api.svc.Update(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, item)
}

func (api *libraryApi) destroy(ctx echo.Context) error {
	actor, err := contextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *libraryApi) recordDownload(ctx echo.Context) error {
	item, err := api.svc.RecordDownload(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, item)
}

func (api *libraryApi) favorite(ctx echo.Context) error {
	actor, err := contextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	fav, err := api.svc.Favorite(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, fav)
}

func (api *libraryApi) unfavorite(ctx echo.Context) error {
	actor, err := contextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	if err := api.svc.Unfavorite(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *libraryApi) queryFavorites(ctx echo.Context) error {
	ordering := new(Ordering)
	ordering.Bind(ctx)
	actor, err := contextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	favorites, err := api.svc.QueryFavorites(ctx.Request().Context(), actor, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying favorites")
	}
	if favorites == nil {
		favorites = []library.Favorite{}
	}
	return ctx.JSON(http.StatusOK, favorites)
}
