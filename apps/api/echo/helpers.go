package echoapi

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

const contextObjectKey = "object"

var errObjNotFoundInCtx = errors.New("object not found in echo.Context")

// loadObject fetches the object named by the param path parameter into the context.
func loadObject[T any](param string, get func(context.Context, string) (T, error)) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			obj, err := get(ctx.Request().Context(), ctx.Param(param))
			if err != nil {
				return err
			}
			ctx.Set(contextObjectKey, obj)
			return next(ctx)
		}
	}
}

func contextObject[T any](ctx echo.Context) (T, error) {
	obj, ok := ctx.Get(contextObjectKey).(T)
	if !ok {
		return obj, errors.Wrap(errObjNotFoundInCtx, "retrieving object from context")
	}
	return obj, nil
}

// list never serializes to null.
func list[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
