package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/accounts/internal/core/ports"
)

const principalKey = "principal"

// Auth requires a valid bearer access token and injects the caller's
// principal into the context.
func Auth(authn ports.TokenAuthenticator) echo.MiddlewareFunc {
	return authenticate(authn, true)
}

// OptionalAuth injects the principal when a bearer token is present. An
// absent header passes through anonymously; a bad token is still rejected.
func OptionalAuth(authn ports.TokenAuthenticator) echo.MiddlewareFunc {
	return authenticate(authn, false)
}

func authenticate(authn ports.TokenAuthenticator, required bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				if required {
					return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
				}
				return next(c)
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
			}

			principal, err := authn.Authenticate(c.Request().Context(), parts[1])
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.Set(principalKey, *principal)
			return next(c)
		}
	}
}

// PrincipalFrom returns the principal injected by Auth or OptionalAuth.
func PrincipalFrom(c echo.Context) (ports.Principal, bool) {
	p, ok := c.Get(principalKey).(ports.Principal)
	return p, ok && p.UserID != ""
}
