package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/academia-hq/academia/core/assessment"
	"github.com/academia-hq/academia/core/permission"
)

type assessmentApi struct {
	svc      *assessment.Service
	validate *validator.Validate
}

func registerAssessmentAPI(g *echo.Group, jwt echo.MiddlewareFunc, authz *authorizer, api assessmentApi) {
	read := authz.require(permission.AssessmentRead)
	write := authz.require(permission.AssessmentWrite)

	ag := g.Group("/assessments", jwt)
	ag.GET("/:scope/:scopeID", api.retrieve, read)
	ag.PUT("/:scope/:scopeID", api.save, write)
	ag.DELETE("/:scope/:scopeID", api.destroy, write)
}

func (api *assessmentApi) retrieve(ctx echo.Context) error {
	s, err := api.svc.Get(ctx.Request().Context(), ctx.Param("scope"), ctx.Param("scopeID"))
	if err != nil {
		return errors.Wrap(err, "finding assessment system")
	}
	return ctx.JSON(http.StatusOK, s)
}

// save creates or replaces the overrides of a scope.
func (api *assessmentApi) save(ctx echo.Context) error {
	scope := ctx.Param("scope")
	if !assessment.IsValidScope(scope) {
		return errHttpNotFound
	}
	var data assessment.SaveSystem
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SaveSystem")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	s, err := api.svc.Save(ctx.Request().Context(), scope, ctx.Param("scopeID"), data)
	if err != nil {
		return errors.Wrap(err, "saving assessment system")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *assessmentApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("scope"), ctx.Param("scopeID")); err != nil {
		return errors.Wrap(err, "deleting assessment system")
	}
	return ctx.NoContent(http.StatusNoContent)
}
