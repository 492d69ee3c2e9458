package echoapi

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/jifunze/core"
	"github.com/trezcool/jifunze/core/user"
	"github.com/trezcool/jifunze/services/metrics"
	"github.com/trezcool/jifunze/services/ratelimit"
)

type authApi struct {
	conf     *core.Config
	logger   core.Logger
	svc      user.ServiceInterface
	validate *validator.Validate
	metrics  *metrics.Metrics
	limiter  *ratelimit.Limiter
}

func registerAuthAPI(app *echo.Echo, auth *auth, deps ServerDeps) {
	api := authApi{
		conf:     deps.Conf,
		logger:   deps.Logger,
		svc:      deps.UserSvc,
		validate: deps.Validate,
		metrics:  deps.Metrics,
		limiter:  deps.Limiter,
	}

	g := app.Group("/auth")

	// un-authed endpoints
	g.POST("/register", api.register, api.requireAuthConfig, rateLimitMiddleware(deps.Limiter, deps.Logger, registerScope))
	g.POST("/login", api.login, api.requireAuthConfig, rateLimitMiddleware(deps.Limiter, deps.Logger, loginScope))
	g.POST("/password-reset", api.resetPassword, rateLimitMiddleware(deps.Limiter, deps.Logger, resetScope))
	g.POST("/password-reset-confirm", api.confirmPasswordReset)

	// authed endpoints
	g.GET("/me", api.me, auth.jwt)
}

// requireAuthConfig answers 503 before doing any work when tokens cannot be issued.
func (api *authApi) requireAuthConfig(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if !api.conf.AuthConfigured() {
			return errAuthNotConfigured
		}
		return next(ctx)
	}
}

// Handlers

func (api *authApi) register(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return err
	}

	usr, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	res, err := newAuthResponse(api.conf, usr)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *authApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.svc.Authenticate(ctx.Request().Context(), data.Email, data.Password)
	if api.metrics != nil {
		api.metrics.LoginDone(err == nil)
	}
	if err != nil {
		return err
	}
	// failed attempts only count until the next successful login
	if err = api.limiter.Reset(ctx.Request().Context(), rateLimitKey(ctx, loginScope)); err != nil {
		api.logger.Warn(fmt.Sprintf("resetting login attempts: %v", err), err, usr)
	}

	res, err := newAuthResponse(api.conf, usr)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *authApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"user": usr})
}

func (api *authApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email); err != nil {
		// do not return errors to attackers
		api.logger.Error(fmt.Sprintf("requesting password reset: %v", err), errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (api *authApi) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return err
	}

	if err := api.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}
