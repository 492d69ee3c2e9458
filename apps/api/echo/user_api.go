package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/jifunze/core/user"
)

type userApi struct {
	svc user.ServiceInterface
}

func registerUserAPI(app *echo.Echo, auth *auth, svc user.ServiceInterface) {
	api := userApi{svc: svc}

	g := app.Group("/users", auth.jwt, auth.requireRoles(user.RoleAdmin))
	g.GET("", api.query)
	g.GET("/stats", api.stats)
	g.PATCH("/:id/role", api.updateRole)
}

// Handlers

func (api *userApi) query(ctx echo.Context) error {
	var filter user.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx, user.OrderingFields...)

	users, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings...)
	if err != nil {
		return err
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *userApi) stats(ctx echo.Context) error {
	stats, err := api.svc.Stats(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *userApi) updateRole(ctx echo.Context) error {
	var data user.UpdateRole
	if err := ctx.Bind(&data); err != nil {
		return err
	}
	actor, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}

	usr, err := api.svc.UpdateRole(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}
