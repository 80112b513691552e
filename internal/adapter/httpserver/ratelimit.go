package httpserver

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	apperrors "github.com/radudiaconu0/sockudo/internal/platform/errors"
)

const rateLimiterExpiry = 5 * time.Minute

// newRateLimiter limits REST calls per app and caller IP, so one tenant's
// traffic never drains another tenant's budget from the same host.
func newRateLimiter(ratePerSecond float64, burst int) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(ratePerSecond),
		Burst:     burst,
		ExpiresIn: rateLimiterExpiry,
	})

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store:               store,
		IdentifierExtractor: rateLimitKey,
		DenyHandler: func(c echo.Context, identifier string, _ error) error {
			slog.InfoContext(c.Request().Context(), "API rate limit exceeded", "key", identifier)
			return apperrors.RateLimitedError("rate limit exceeded").WithContext("app_id", c.Param("app_id"))
		},
	})
}

func rateLimitKey(c echo.Context) (string, error) {
	return c.Param("app_id") + "|" + c.RealIP(), nil
}
