package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/academia-hq/academia/core"
	"github.com/academia-hq/academia/core/calendar"
	"github.com/academia-hq/academia/core/permission"
)

type calendarApi struct {
	svc      *calendar.Service
	validate *validator.Validate
}

func registerCalendarAPI(g *echo.Group, jwt echo.MiddlewareFunc, authz *authorizer, api calendarApi) {
	read := authz.require(permission.CalendarRead)
	write := authz.require(permission.CalendarWrite)
	year := loadObject("id", api.svc.GetAcademicYear)

	yg := g.Group("/academic-years", jwt)
	yg.GET("", api.queryYears, read)
	yg.POST("", api.createYear, write)
	yg.GET("/:id", api.retrieveYear, read, year)
	yg.PUT("/:id/current", api.setCurrentYear, write, year)
	yg.GET("/:id/terms", api.queryTerms, read, year)
	yg.POST("/:id/terms", api.addTerm, write, year)

	eg := g.Group("/events", jwt)
	eg.GET("", api.queryEvents, read)
	eg.POST("", api.createEvent, write)
	eg.DELETE("/:id", api.destroyEvent, write, loadObject("id", api.svc.GetEvent))
}

func (api *calendarApi) queryYears(ctx echo.Context) error {
	campusID := ctx.QueryParam("campus_id")
	if !core.IsValidID(campusID) {
		return core.NewFieldError("campus_id", "a valid campus_id is required")
	}
	years, err := api.svc.AcademicYears(ctx.Request().Context(), campusID)
	if err != nil {
		return errors.Wrap(err, "querying academic years")
	}
	return ctx.JSON(http.StatusOK, list(years))
}

func (api *calendarApi) createYear(ctx echo.Context) error {
	var data calendar.NewAcademicYear
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAcademicYear")
	}
	rctx := ctx.Request().Context()
	if err := data.Validate(rctx, api.validate, api.svc); err != nil {
		return err
	}
	y, err := api.svc.CreateAcademicYear(rctx, data)
	if err != nil {
		return errors.Wrap(err, "creating academic year")
	}
	return ctx.JSON(http.StatusCreated, y)
}

func (api *calendarApi) retrieveYear(ctx echo.Context) error {
	y, err := contextObject[calendar.AcademicYear](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, y)
}

// setCurrentYear makes the year current, demoting the other years of its campus.
func (api *calendarApi) setCurrentYear(ctx echo.Context) error {
	y, err := contextObject[calendar.AcademicYear](ctx)
	if err != nil {
		return err
	}
	y, err = api.svc.SetCurrentAcademicYear(ctx.Request().Context(), y.ID)
	if err != nil {
		return errors.Wrap(err, "setting current academic year")
	}
	return ctx.JSON(http.StatusOK, y)
}

func (api *calendarApi) queryTerms(ctx echo.Context) error {
	y, err := contextObject[calendar.AcademicYear](ctx)
	if err != nil {
		return err
	}
	terms, err := api.svc.Terms(ctx.Request().Context(), y.ID)
	if err != nil {
		return errors.Wrap(err, "querying terms")
	}
	return ctx.JSON(http.StatusOK, list(terms))
}

func (api *calendarApi) addTerm(ctx echo.Context) error {
	y, err := contextObject[calendar.AcademicYear](ctx)
	if err != nil {
		return err
	}
	var data calendar.NewTerm
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTerm")
	}
	rctx := ctx.Request().Context()
	if err = data.Validate(rctx, y, api.validate, api.svc); err != nil {
		return err
	}
	t, err := api.svc.AddTerm(rctx, y, data)
	if err != nil {
		return errors.Wrap(err, "adding term")
	}
	return ctx.JSON(http.StatusCreated, t)
}

// queryEvents lists the events overlapping [?from, ?to), RFC 3339 timestamps.
func (api *calendarApi) queryEvents(ctx echo.Context) error {
	var filter calendar.EventFilter
	if err := ctx.Bind(&filter); err != nil {
		return core.NewFieldError("from", "from and to must be RFC 3339 timestamps")
	}
	filter.Clean()

	events, err := api.svc.Events(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying events")
	}
	return ctx.JSON(http.StatusOK, list(events))
}

func (api *calendarApi) createEvent(ctx echo.Context) error {
	var data calendar.NewEvent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEvent")
	}
	rctx := ctx.Request().Context()
	if err := data.Validate(rctx, api.validate, api.svc); err != nil {
		return err
	}
	e, err := api.svc.CreateEvent(rctx, data)
	if err != nil {
		return errors.Wrap(err, "creating event")
	}
	return ctx.JSON(http.StatusCreated, e)
}

func (api *calendarApi) destroyEvent(ctx echo.Context) error {
	e, err := contextObject[calendar.Event](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteEvent(ctx.Request().Context(), e.ID); err != nil {
		return errors.Wrap(err, "deleting event")
	}
	return ctx.NoContent(http.StatusNoContent)
}
