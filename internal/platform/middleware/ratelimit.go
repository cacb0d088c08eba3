package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/clinicops/clinic/internal/platform/auth"
)

// RateLimit throttles each caller to rps requests per second with a burst of
// twice that. Callers are keyed by employee id when authenticated and by
// client IP otherwise. rps <= 0 disables limiting.
func RateLimit(rps float64) echo.MiddlewareFunc {
	if rps <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	burst := int(rps * 2)
	if burst < 1 {
		burst = 1
	}

	store := echomw.NewRateLimiterMemoryStoreWithConfig(echomw.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(rps),
		Burst:     burst,
		ExpiresIn: 3 * time.Minute,
	})

	return echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		Skipper:             func(c echo.Context) bool { return auth.IsPublicPath(c.Path()) },
		Store:               store,
		IdentifierExtractor: rateKey,
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusForbidden, "unable to identify caller")
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			c.Response().Header().Set("Retry-After", "1")
			return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
		},
	})
}

func rateKey(c echo.Context) (string, error) {
	if a := auth.ActorFromContext(c.Request().Context()); a != nil {
		return "emp:" + a.EmployeeID.String(), nil
	}
	return "ip:" + c.RealIP(), nil
}
