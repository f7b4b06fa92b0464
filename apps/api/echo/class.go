package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/academia-hq/academia/core"
	"github.com/academia-hq/academia/core/assessment"
	"github.com/academia-hq/academia/core/class"
	"github.com/academia-hq/academia/core/permission"
)

type classApi struct {
	svc         *class.Service
	assessments *assessment.Service
	validate    *validator.Validate
}

func registerClassAPI(g *echo.Group, jwt echo.MiddlewareFunc, authz *authorizer, api classApi) {
	read := authz.require(permission.ClassRead)
	write := authz.require(permission.ClassWrite)
	object := loadObject("id", api.svc.Get)

	cg := g.Group("/classes", jwt)
	cg.GET("", api.query, read)
	cg.POST("", api.create, write)
	cg.GET("/:id", api.retrieve, read, object)
	cg.PUT("/:id", api.update, write, object)
	cg.DELETE("/:id", api.destroy, write, object)
	cg.GET("/:id/enrollments", api.queryEnrollments, read, object)
	cg.POST("/:id/enrollments", api.enroll, write, object)
	cg.DELETE("/:id/enrollments/:studentID", api.withdraw, write, object)
	cg.GET("/:id/subjects", api.querySubjects, read, object)
	cg.POST("/:id/sync-subjects", api.syncSubjects, write, object)
	cg.GET("/:id/assessment", api.effectiveAssessment, authz.require(permission.AssessmentRead), object)

	csg := g.Group("/class-subjects", jwt)
	csg.PUT("/:id/teacher", api.assignTeacher, write, loadObject("id", api.svc.GetClassSubject))
}

func (api *classApi) query(ctx echo.Context) error {
	filter := new(class.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []class.Class{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	classes, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	return ctx.JSON(http.StatusOK, list(classes))
}

func (api *classApi) create(ctx echo.Context) error {
	var data class.NewClass
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClass")
	}
	rctx := ctx.Request().Context()
	if err := data.Validate(rctx, api.validate, api.svc); err != nil {
		return err
	}
	c, err := api.svc.Create(rctx, data)
	if err != nil {
		return errors.Wrap(err, "creating class")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *classApi) retrieve(ctx echo.Context) error {
	c, err := contextObject[class.Class](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *classApi) update(ctx echo.Context) error {
	c, err := contextObject[class.Class](ctx)
	if err != nil {
		return err
	}
	var data class.UpdateClass
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateClass")
	}
	rctx := ctx.Request().Context()
	if err = data.Validate(rctx, c, api.validate, api.svc); err != nil {
		return err
	}
	c, err = api.svc.Update(rctx, c, data)
	if err != nil {
		return errors.Wrap(err, "updating class")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *classApi) destroy(ctx echo.Context) error {
	c, err := contextObject[class.Class](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), c.ID); err != nil {
		return errors.Wrap(err, "deleting class")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// queryEnrollments lists every enrollment of the class; ?active=true drops the withdrawn ones.
func (api *classApi) queryEnrollments(ctx echo.Context) error {
	c, err := contextObject[class.Class](ctx)
	if err != nil {
		return err
	}
	activeOnly, _ := strconv.ParseBool(ctx.QueryParam("active"))
	enrollments, err := api.svc.Enrollments(ctx.Request().Context(), c.ID, activeOnly)
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	return ctx.JSON(http.StatusOK, list(enrollments))
}

func (api *classApi) enroll(ctx echo.Context) error {
	c, err := contextObject[class.Class](ctx)
	if err != nil {
		return err
	}
	var data class.NewEnrollment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEnrollment")
	}
	if err = api.validate.Struct(data); err != nil {
		return err
	}
	e, err := api.svc.Enroll(ctx.Request().Context(), c, data)
	if err != nil {
		return errors.Wrap(err, "enrolling student")
	}
	return ctx.JSON(http.StatusCreated, e)
}

func (api *classApi) withdraw(ctx echo.Context) error {
	c, err := contextObject[class.Class](ctx)
	if err != nil {
		return err
	}
	studentID := ctx.Param("studentID")
	if !core.IsValidID(studentID) {
		return errHttpNotFound
	}
	e, err := api.svc.Withdraw(ctx.Request().Context(), c.ID, studentID)
	if err != nil {
		return errors.Wrap(err, "withdrawing student")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *classApi) querySubjects(ctx echo.Context) error {
	c, err := contextObject[class.Class](ctx)
	if err != nil {
		return err
	}
	subjects, err := api.svc.Subjects(ctx.Request().Context(), c.ID)
	if err != nil {
		return errors.Wrap(err, "querying class subjects")
	}
	return ctx.JSON(http.StatusOK, list(subjects))
}

func (api *classApi) syncSubjects(ctx echo.Context) error {
	c, err := contextObject[class.Class](ctx)
	if err != nil {
		return err
	}
	res, err := api.svc.SyncSubjects(ctx.Request().Context(), c)
	if err != nil {
		return errors.Wrap(err, "syncing class subjects")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *classApi) assignTeacher(ctx echo.Context) error {
	cs, err := contextObject[class.ClassSubject](ctx)
	if err != nil {
		return err
	}
	var data class.AssignTeacher
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignTeacher")
	}
	if err = api.validate.Struct(data); err != nil {
		return err
	}
	cs, err = api.svc.AssignTeacher(ctx.Request().Context(), cs, data)
	if err != nil {
		return errors.Wrap(err, "assigning teacher")
	}
	return ctx.JSON(http.StatusOK, cs)
}

// effectiveAssessment returns the assessment system grading the class, overrides merged.
func (api *classApi) effectiveAssessment(ctx echo.Context) error {
	c, err := contextObject[class.Class](ctx)
	if err != nil {
		return err
	}
	sys, err := api.assessments.Effective(ctx.Request().Context(), c.ID)
	if err != nil {
		return errors.Wrap(err, "resolving assessment system")
	}
	return ctx.JSON(http.StatusOK, sys)
}
