package auth

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireSuperuser rejects callers whose global role is not SUPERUSER.
func RequireSuperuser() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := PrincipalFromContext(c.Request().Context())
			if p == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			if !p.IsSuperuser() {
				return echo.NewHTTPError(http.StatusForbidden, "required role: SUPERUSER")
			}
			return next(c)
		}
	}
}

// RequireAuthenticated rejects requests that carry no principal.
func RequireAuthenticated() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if PrincipalFromContext(c.Request().Context()) == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			return next(c)
		}
	}
}

// HTTPError maps authorization errors from AuthorizeSurgery to echo errors.
func HTTPError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, ErrNoPrincipal):
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
