package auth

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/clinicops/clinic/internal/platform/apperr"
)

// Claims are the token claims issued by the identity provider. The subject is
// the employee id.
type Claims struct {
	jwt.RegisteredClaims
	Role     string `json:"role"`
	ClinicID string `json:"clinic_id"`
}

type JWTConfig struct {
	Issuer     string
	Audience   string
	SigningKey []byte
	Skipper    middleware.Skipper
}

func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	if cfg.Skipper == nil {
		cfg.Skipper = middleware.DefaultSkipper
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	parser := jwt.NewParser(opts...)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper(c) {
				return next(c)
			}

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return apperr.New(apperr.CodeUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				return apperr.New(apperr.CodeUnauthorized, "invalid authorization format")
			}

			claims := &Claims{}
			token, err := parser.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
				return cfg.SigningKey, nil
			})
			if err != nil || !token.Valid {
				return apperr.New(apperr.CodeUnauthorized, "invalid token")
			}

			ctx := WithActor(c.Request().Context(), claims.actor())
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// actor maps claims onto an Actor. Malformed ids become uuid.Nil so that
// Require reports the precise provisioning gap.
func (cl *Claims) actor() Actor {
	employeeID, _ := uuid.Parse(cl.Subject)
	clinicID, _ := uuid.Parse(cl.ClinicID)
	return Actor{
		EmployeeID: employeeID,
		Role:       Role(cl.Role),
		ClinicID:   clinicID,
	}
}

// DevAuthMiddleware is a permissive middleware for development. Requests
// without a bearer token act as fallback; the X-Employee-ID, X-Clinic-ID and
// X-Role headers override individual fields.
func DevAuthMiddleware(fallback Actor) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Request().Header
			if h.Get("Authorization") != "" {
				return next(c)
			}

			a := fallback
			if a.Role == "" {
				a.Role = RoleAdmin
			}
			if v := h.Get("X-Employee-ID"); v != "" {
				a.EmployeeID, _ = uuid.Parse(v)
			}
			if v := h.Get("X-Clinic-ID"); v != "" {
				a.ClinicID, _ = uuid.Parse(v)
			}
			if v := h.Get("X-Role"); v != "" {
				a.Role = Role(v)
			}

			c.SetRequest(c.Request().WithContext(WithActor(c.Request().Context(), a)))
			return next(c)
		}
	}
}
