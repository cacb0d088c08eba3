package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinicops/clinic/internal/platform/apperr"
	"github.com/clinicops/clinic/internal/platform/auth"
)

// Recovery turns a handler panic into an InternalError so the client gets the
// usual error envelope. The stack is logged against the request id and, once
// authenticated, the acting employee.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}
				rid, _ := c.Get("request_id").(string)
				req := c.Request()
				evt := logger.Error().
					Str("request_id", rid).
					Str("method", req.Method).
					Str("path", req.URL.Path).
					Str("panic", fmt.Sprint(r)).
					Str("stack", string(debug.Stack()))
				if a := auth.ActorFromContext(req.Context()); a != nil {
					evt = evt.Str("employee_id", a.EmployeeID.String()).Str("clinic_id", a.ClinicID.String())
				}
				evt.Msg("panic recovered")

				err = apperr.New(apperr.CodeInternal, "internal server error")
			}()
			return next(c)
		}
	}
}
