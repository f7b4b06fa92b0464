package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/academia-hq/academia/core/permission"
	"github.com/academia-hq/academia/core/student"
	"github.com/academia-hq/academia/core/teacher"
)

type peopleApi struct {
	teachers *teacher.Service
	students *student.Service
	validate *validator.Validate
}

func registerPeopleAPI(g *echo.Group, jwt echo.MiddlewareFunc, authz *authorizer, api peopleApi) {
	tRead := authz.require(permission.TeacherRead)
	tWrite := authz.require(permission.TeacherWrite)
	tObject := loadObject("id", api.teachers.Get)

	tg := g.Group("/teachers", jwt)
	tg.GET("", api.queryTeachers, tRead)
	tg.POST("", api.createTeacher, tWrite)
	tg.GET("/:id", api.retrieveTeacher, tRead, tObject)
	tg.PUT("/:id", api.updateTeacher, tWrite, tObject)
	tg.DELETE("/:id", api.destroyTeacher, tWrite, tObject)

	sRead := authz.require(permission.StudentRead)
	sWrite := authz.require(permission.StudentWrite)
	sObject := loadObject("id", api.students.Get)

	sg := g.Group("/students", jwt)
	sg.GET("", api.queryStudents, sRead)
	sg.POST("", api.createStudent, sWrite)
	sg.GET("/:id", api.retrieveStudent, sRead, sObject)
	sg.PUT("/:id", api.updateStudent, sWrite, sObject)
	sg.DELETE("/:id", api.destroyStudent, sWrite, sObject)
}

// Teachers

func (api *peopleApi) queryTeachers(ctx echo.Context) error {
	filter := new(teacher.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []teacher.Teacher{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	teachers, err := api.teachers.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying teachers")
	}
	return ctx.JSON(http.StatusOK, list(teachers))
}

func (api *peopleApi) createTeacher(ctx echo.Context) error {
	var data teacher.NewTeacher
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTeacher")
	}
	rctx := ctx.Request().Context()
	if err := data.Validate(rctx, api.validate, api.teachers); err != nil {
		return err
	}
	t, err := api.teachers.Create(rctx, data)
	if err != nil {
		return errors.Wrap(err, "creating teacher")
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *peopleApi) retrieveTeacher(ctx echo.Context) error {
	t, err := contextObject[teacher.Teacher](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *peopleApi) updateTeacher(ctx echo.Context) error {
	t, err := contextObject[teacher.Teacher](ctx)
	if err != nil {
		return err
	}
	var data teacher.UpdateTeacher
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTeacher")
	}
	rctx := ctx.Request().Context()
	if err = data.Validate(rctx, t, api.validate, api.teachers); err != nil {
		return err
	}
	t, err = api.teachers.Update(rctx, t, data)
	if err != nil {
		return errors.Wrap(err, "updating teacher")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *peopleApi) destroyTeacher(ctx echo.Context) error {
	t, err := contextObject[teacher.Teacher](ctx)
	if err != nil {
		return err
	}
	if err = api.teachers.Delete(ctx.Request().Context(), t.ID); err != nil {
		return errors.Wrap(err, "deleting teacher")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Students

func (api *peopleApi) queryStudents(ctx echo.Context) error {
	filter := new(student.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []student.Student{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	students, err := api.students.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	return ctx.JSON(http.StatusOK, list(students))
}

func (api *peopleApi) createStudent(ctx echo.Context) error {
	var data student.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	rctx := ctx.Request().Context()
	if err := data.Validate(rctx, api.validate, api.students); err != nil {
		return err
	}
	s, err := api.students.Create(rctx, data)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *peopleApi) retrieveStudent(ctx echo.Context) error {
	s, err := contextObject[student.Student](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *peopleApi) updateStudent(ctx echo.Context) error {
	s, err := contextObject[student.Student](ctx)
	if err != nil {
		return err
	}
	var data student.UpdateStudent
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudent")
	}
	rctx := ctx.Request().Context()
	if err = data.Validate(rctx, s, api.validate, api.students); err != nil {
		return err
	}
	s, err = api.students.Update(rctx, s, data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *peopleApi) destroyStudent(ctx echo.Context) error {
	s, err := contextObject[student.Student](ctx)
	if err != nil {
		return err
	}
	if err = api.students.Delete(ctx.Request().Context(), s.ID); err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return ctx.NoContent(http.StatusNoContent)
}
