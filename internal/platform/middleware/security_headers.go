package middleware

import (
	"github.com/labstack/echo/v4"
)

// The API only ever returns JSON holding patient balances and treatment
// notes: nothing may be framed, sniffed, embedded cross-origin or cached.
var apiHeaders = [][2]string{
	{echo.HeaderXContentTypeOptions, "nosniff"},
	{echo.HeaderXFrameOptions, "DENY"},
	{echo.HeaderContentSecurityPolicy, "default-src 'none'; frame-ancestors 'none'; sandbox"},
	{echo.HeaderReferrerPolicy, "no-referrer"},
	{echo.HeaderCacheControl, "no-store"},
	{"Pragma", "no-cache"},
	{"Cross-Origin-Resource-Policy", "same-origin"},
}

const hsts = "max-age=31536000; includeSubDomains"

// SecurityHeaders sets apiHeaders on every response. HSTS is only sent when
// the request reached us over https, directly or through the proxy.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			for _, kv := range apiHeaders {
				h.Set(kv[0], kv[1])
			}
			if c.Scheme() == "https" {
				h.Set(echo.HeaderStrictTransportSecurity, hsts)
			}
			return next(c)
		}
	}
}
