package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/academia-hq/academia/core/permission"
)

type permissionApi struct {
	svc      *permission.Service
	validate *validator.Validate
}

func registerPermissionAPI(g *echo.Group, jwt echo.MiddlewareFunc, authz *authorizer, api permissionApi) {
	pg := g.Group("/permissions", jwt)
	read := authz.require(permission.PermissionRead)
	write := authz.require(permission.PermissionWrite)
	object := loadObject("id", api.svc.Get)

	pg.GET("/catalog", api.catalog, read)
	pg.GET("/templates", api.query, read)
	pg.POST("/templates", api.create, write)
	pg.GET("/templates/:id", api.retrieve, read, object)
	pg.PUT("/templates/:id", api.update, write, object)
	pg.DELETE("/templates/:id", api.destroy, write, object)
	pg.GET("/templates/:id/effective", api.effective, read, object)
}

func (api *permissionApi) catalog(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.svc.Catalog())
}

func (api *permissionApi) query(ctx echo.Context) error {
	templates, err := api.svc.Query(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying templates")
	}
	return ctx.JSON(http.StatusOK, list(templates))
}

func (api *permissionApi) create(ctx echo.Context) error {
	var data permission.NewTemplate
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTemplate")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	t, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating template")
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *permissionApi) retrieve(ctx echo.Context) error {
	t, err := contextObject[permission.Template](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *permissionApi) update(ctx echo.Context) error {
	t, err := contextObject[permission.Template](ctx)
	if err != nil {
		return err
	}
	var data permission.UpdateTemplate
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTemplate")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	t, err = api.svc.Update(ctx.Request().Context(), t, data)
	if err != nil {
		return errors.Wrap(err, "updating template")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *permissionApi) destroy(ctx echo.Context) error {
	t, err := contextObject[permission.Template](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), t.ID); err != nil {
		return errors.Wrap(err, "deleting template")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// effective returns the permissions a template grants once its inheritance chain is resolved.
func (api *permissionApi) effective(ctx echo.Context) error {
	t, err := contextObject[permission.Template](ctx)
	if err != nil {
		return err
	}
	perms, err := api.svc.Effective(ctx.Request().Context(), t.ID)
	if err != nil {
		return errors.Wrap(err, "resolving effective permissions")
	}
	return ctx.JSON(http.StatusOK, PermissionsResponse{Permissions: list(perms)})
}
