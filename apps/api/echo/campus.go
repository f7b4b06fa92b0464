package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/academia-hq/academia/core"
	"github.com/academia-hq/academia/core/calendar"
	"github.com/academia-hq/academia/core/campus"
	"github.com/academia-hq/academia/core/permission"
)

type campusApi struct {
	svc      *campus.Service
	calendar *calendar.Service
	validate *validator.Validate
}

func registerCampusAPI(g *echo.Group, jwt echo.MiddlewareFunc, authz *authorizer, api campusApi) {
	cg := g.Group("/campuses", jwt)
	read := authz.require(permission.CampusRead)
	write := authz.require(permission.CampusWrite)
	object := loadObject("id", api.svc.Get)

	cg.GET("", api.query, read)
	cg.POST("", api.create, write)
	cg.GET("/:id", api.retrieve, read, object)
	cg.PUT("/:id", api.update, write, object)
	cg.DELETE("/:id", api.destroy, write, object)
	cg.GET("/:id/school-day", api.schoolDay, authz.require(permission.CalendarRead), object)
}

func (api *campusApi) query(ctx echo.Context) error {
	filter := new(campus.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []campus.Campus{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	campuses, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying campuses")
	}
	return ctx.JSON(http.StatusOK, list(campuses))
}

func (api *campusApi) create(ctx echo.Context) error {
	var data campus.NewCampus
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCampus")
	}
	rctx := ctx.Request().Context()
	if err := data.Validate(rctx, api.validate, api.svc); err != nil {
		return err
	}
	c, err := api.svc.Create(rctx, data)
	if err != nil {
		return errors.Wrap(err, "creating campus")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *campusApi) retrieve(ctx echo.Context) error {
	c, err := contextObject[campus.Campus](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *campusApi) update(ctx echo.Context) error {
	c, err := contextObject[campus.Campus](ctx)
	if err != nil {
		return err
	}
	var data campus.UpdateCampus
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCampus")
	}
	rctx := ctx.Request().Context()
	if err = data.Validate(rctx, c, api.validate, api.svc); err != nil {
		return err
	}
	c, err = api.svc.Update(rctx, c, data)
	if err != nil {
		return errors.Wrap(err, "updating campus")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *campusApi) destroy(ctx echo.Context) error {
	c, err := contextObject[campus.Campus](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), c.ID); err != nil {
		return errors.Wrap(err, "deleting campus")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// schoolDay tells whether classes are held on ?date= (today in the campus time zone by default).
func (api *campusApi) schoolDay(ctx echo.Context) error {
	c, err := contextObject[campus.Campus](ctx)
	if err != nil {
		return err
	}
	d := core.DateOf(core.Now().In(c.Location()))
	if raw := ctx.QueryParam("date"); raw != "" {
		if d, err = core.ParseDate(raw); err != nil {
			return core.NewFieldError("date", "date must be formatted as YYYY-MM-DD")
		}
	}
	day, err := api.calendar.IsSchoolDay(ctx.Request().Context(), c.ID, d)
	if err != nil {
		return errors.Wrap(err, "checking school day")
	}
	return ctx.JSON(http.StatusOK, day)
}
