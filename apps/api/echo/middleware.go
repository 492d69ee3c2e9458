package echoapi

import (
	"fmt"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/jifunze/core"
	"github.com/trezcool/jifunze/services/ratelimit"
)

const (
	loginScope    = "login"
	registerScope = "register"
	resetScope    = "password-reset"
)

// rateLimitKey identifies the client IP within `scope`.
func rateLimitKey(ctx echo.Context, scope string) string {
	return scope + ":" + ctx.RealIP()
}

// rateLimitMiddleware refuses requests of a client IP beyond the limiter allowance.
// Limiter failures let the request through.
func rateLimitMiddleware(limiter *ratelimit.Limiter, logger core.Logger, scope string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if limiter == nil {
			return next
		}
		return func(ctx echo.Context) error {
			ok, retryAfter, err := limiter.Allow(ctx.Request().Context(), rateLimitKey(ctx, scope))
			if err != nil {
				logger.Warn(fmt.Sprintf("rate limiting %s: %v", scope, err), err)
				return next(ctx)
			}
			if !ok {
				ctx.Response().Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
				return errTooManyAttempts
			}
			return next(ctx)
		}
	}
}
