package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/academia-hq/academia/core"
	"github.com/academia-hq/academia/core/permission"
	"github.com/academia-hq/academia/core/user"
)

func adminMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin && contextHasAnyRole(ctx, roles) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// authorizer checks the permissions granted to the context user through their role templates.
type authorizer struct {
	users *user.Service
	perms *permission.Service
}

// require lets the request through when the context user holds every perm.
func (a *authorizer) require(perms ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx, a.users)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			for _, perm := range perms {
				ok, err := a.perms.Can(ctx.Request().Context(), usr, perm)
				if err != nil {
					return errors.Wrap(err, "checking permission")
				}
				if !ok {
					return core.NewPermissionError(perm)
				}
			}
			return next(ctx)
		}
	}
}
