package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/academia-hq/academia/core/class"
	"github.com/academia-hq/academia/core/permission"
	"github.com/academia-hq/academia/core/teacher"
	"github.com/academia-hq/academia/core/timetable"
)

type timetableApi struct {
	svc      *timetable.Service
	classes  *class.Service
	teachers *teacher.Service
	validate *validator.Validate
}

func registerTimetableAPI(g *echo.Group, jwt echo.MiddlewareFunc, authz *authorizer, api timetableApi) {
	read := authz.require(permission.TimetableRead)
	write := authz.require(permission.TimetableWrite)
	slot := loadObject("id", api.svc.Get)

	tg := g.Group("/timetable", jwt)
	tg.POST("/slots", api.create, write)
	tg.GET("/slots/:id", api.retrieve, read, slot)
	tg.PUT("/slots/:id", api.update, write, slot)
	tg.DELETE("/slots/:id", api.destroy, write, slot)
	tg.GET("/classes/:id", api.classWeek, read, loadObject("id", api.classes.Get))
	tg.GET("/teachers/:id", api.teacherWeek, read, loadObject("id", api.teachers.Get))
}

func (api *timetableApi) create(ctx echo.Context) error {
	var data timetable.NewSlot
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSlot")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	s, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "scheduling slot")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *timetableApi) retrieve(ctx echo.Context) error {
	s, err := contextObject[timetable.Slot](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *timetableApi) update(ctx echo.Context) error {
	s, err := contextObject[timetable.Slot](ctx)
	if err != nil {
		return err
	}
	var data timetable.UpdateSlot
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSlot")
	}
	if err = data.Validate(s, api.validate); err != nil {
		return err
	}
	s, err = api.svc.Update(ctx.Request().Context(), s, data)
	if err != nil {
		return errors.Wrap(err, "moving slot")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *timetableApi) destroy(ctx echo.Context) error {
	s, err := contextObject[timetable.Slot](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), s.ID); err != nil {
		return errors.Wrap(err, "deleting slot")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *timetableApi) classWeek(ctx echo.Context) error {
	c, err := contextObject[class.Class](ctx)
	if err != nil {
		return err
	}
	slots, err := api.svc.ClassWeek(ctx.Request().Context(), c.ID)
	if err != nil {
		return errors.Wrap(err, "querying class timetable")
	}
	return ctx.JSON(http.StatusOK, list(slots))
}

func (api *timetableApi) teacherWeek(ctx echo.Context) error {
	t, err := contextObject[teacher.Teacher](ctx)
	if err != nil {
		return err
	}
	slots, err := api.svc.TeacherWeek(ctx.Request().Context(), t.ID)
	if err != nil {
		return errors.Wrap(err, "querying teacher timetable")
	}
	return ctx.JSON(http.StatusOK, list(slots))
}
