package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/jifunze/core/assignment"
	"github.com/trezcool/jifunze/core/user"
)

type assignmentApi struct {
	auth *auth
	svc  assignment.ServiceInterface
}

func registerAssignmentAPI(app *echo.Echo, auth *auth, svc assignment.ServiceInterface) {
	api := assignmentApi{auth: auth, svc: svc}
	staff := auth.requireRoles(user.RoleAdmin, user.RoleProfessor)

	g := app.Group("/assignments", auth.jwt)
	g.GET("", api.query)
	g.POST("", api.create, staff)
	g.GET("/stats", api.stats, staff)

	// detail endpoints
	g.GET("/:id", api.retrieve)
	g.PUT("/:id", api.update, staff)
	g.DELETE("/:id", api.destroy, staff)
	g.POST("/:id/submit", api.submit, auth.requireRoles(user.RoleStudent))
}

func (api *assignmentApi) actor(ctx echo.Context) (user.User, error) {
	return getContextUser(ctx, api.auth.svc)
}

// Handlers

func (api *assignmentApi) query(ctx echo.Context) error {
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	var filter assignment.QueryFilter
	if err = ctx.Bind(&filter); err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx, assignment.OrderingFields...)
	filter.Orderings = ordering.Orderings

	page, err := api.svc.Query(ctx.Request().Context(), actor, filter)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, page)
}

func (api *assignmentApi) create(ctx echo.Context) error {
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	var data assignment.NewAssignment
	if err = ctx.Bind(&data); err != nil {
		return err
	}

	a, err := api.svc.Create(ctx.Request().Context(), actor, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *assignmentApi) stats(ctx echo.Context) error {
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	stats, err := api.svc.Stats(ctx.Request().Context(), actor)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *assignmentApi) retrieve(ctx echo.Context) error {
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	a, err := api.svc.Get(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *assignmentApi) update(ctx echo.Context) error {
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	var data assignment.UpdateAssignment
	if err = ctx.Bind(&data); err != nil {
		return err
	}

	a, err := api.svc.Update(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *assignmentApi) destroy(ctx echo.Context) error {
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *assignmentApi) submit(ctx echo.Context) error {
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	var data assignment.NewSubmission
	if err = ctx.Bind(&data); err != nil {
		return err
	}

	sub, err := api.svc.Submit(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, sub)
}
