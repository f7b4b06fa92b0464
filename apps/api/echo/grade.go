package echoapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/academia-hq/academia/core"
	"github.com/academia-hq/academia/core/class"
	"github.com/academia-hq/academia/core/grade"
	"github.com/academia-hq/academia/core/permission"
	"github.com/academia-hq/academia/core/student"
	"github.com/academia-hq/academia/core/teacher"
	"github.com/academia-hq/academia/core/user"
)

type gradeApi struct {
	svc      *grade.Service
	classes  *class.Service
	teachers *teacher.Service
	students *student.Service
	users    *user.Service
	validate *validator.Validate
}

func registerGradeAPI(g *echo.Group, jwt echo.MiddlewareFunc, authz *authorizer, api gradeApi) {
	read := authz.require(permission.GradeRead)
	write := authz.require(permission.GradeWrite)
	object := loadObject("id", api.svc.Get)

	gg := g.Group("/grades", jwt)
	gg.GET("", api.query, read)
	gg.POST("", api.record, write)
	gg.DELETE("/:id", api.destroy, write, object)
	gg.GET("/:id/history", api.history, read, object)

	g.POST("/classes/:id/terms/:termID/publish", api.publish,
		jwt, authz.require(permission.GradePublish), loadObject("id", api.classes.Get))
	g.GET("/students/:id/report", api.report,
		jwt, authz.require(permission.ReportRead), loadObject("id", api.students.Get))
}

// isStudentViewer tells whether usr only ever sees their own published grades.
func isStudentViewer(usr user.User) bool {
	return usr.IsStudent() && !usr.IsTeacher() && !usr.IsAdmin()
}

// checkTeaches lets admins through and teachers only for the class subjects they teach.
func (api *gradeApi) checkTeaches(ctx context.Context, usr user.User, classSubjectID string) error {
	if usr.IsAdmin() {
		return nil
	}
	t, err := api.teachers.GetByUser(ctx, usr.ID)
	if err != nil {
		if core.IsNotFound(err) {
			return core.NewPermissionError(permission.GradeWrite)
		}
		return errors.Wrap(err, "finding teacher profile")
	}
	cs, err := api.classes.GetClassSubject(ctx, classSubjectID)
	if err != nil {
		if core.IsNotFound(err) {
			return nil // reported by the grade service
		}
		return errors.Wrap(err, "finding class subject")
	}
	if cs.TeacherID != t.ID {
		return core.NewPermissionError(permission.GradeWrite)
	}
	return nil
}

// ownStudentID returns the student profile of a student viewer.
func (api *gradeApi) ownStudentID(ctx context.Context, usr user.User) (string, error) {
	s, err := api.students.GetByUser(ctx, usr.ID)
	if err != nil {
		if core.IsNotFound(err) {
			return "", errHttpNotFound
		}
		return "", errors.Wrap(err, "finding student profile")
	}
	return s.ID, nil
}

func (api *gradeApi) query(ctx echo.Context) error {
	filter := new(grade.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []grade.Grade{})
	}
	filter.Clean()

	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	rctx := ctx.Request().Context()
	if isStudentViewer(usr) {
		studentID, err := api.ownStudentID(rctx, usr)
		if err != nil {
			if err == errHttpNotFound {
				return ctx.JSON(http.StatusOK, []grade.Grade{})
			}
			return err
		}
		filter.StudentID = studentID
		filter.PublishedOnly = true
	}

	grades, err := api.svc.Query(rctx, filter)
	if err != nil {
		return errors.Wrap(err, "querying grades")
	}
	return ctx.JSON(http.StatusOK, list(grades))
}

// record creates or corrects a grade.
func (api *gradeApi) record(ctx echo.Context) error {
	var data grade.NewGrade
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGrade")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	rctx := ctx.Request().Context()
	if err = api.checkTeaches(rctx, usr, data.ClassSubjectID); err != nil {
		return err
	}

	g, err := api.svc.Record(rctx, data, usr)
	if err != nil {
		return errors.Wrap(err, "recording grade")
	}
	return ctx.JSON(http.StatusOK, g)
}

func (api *gradeApi) destroy(ctx echo.Context) error {
	g, err := contextObject[grade.Grade](ctx)
	if err != nil {
		return err
	}
	var data grade.DeleteGrade
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to DeleteGrade")
	}
	if err = api.validate.Struct(data); err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	rctx := ctx.Request().Context()
	if err = api.checkTeaches(rctx, usr, g.ClassSubjectID); err != nil {
		return err
	}

	if err = api.svc.Delete(rctx, g, data, usr); err != nil {
		return errors.Wrap(err, "deleting grade")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *gradeApi) history(ctx echo.Context) error {
	g, err := contextObject[grade.Grade](ctx)
	if err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	rctx := ctx.Request().Context()
	if isStudentViewer(usr) {
		studentID, err := api.ownStudentID(rctx, usr)
		if err != nil {
			return err
		}
		published, err := api.svc.IsPublished(rctx, g.ClassID, g.TermID)
		if err != nil {
			return errors.Wrap(err, "checking publication")
		}
		if g.StudentID != studentID || !published {
			return errHttpNotFound
		}
	}

	history, err := api.svc.History(rctx, g.ID)
	if err != nil {
		return errors.Wrap(err, "querying grade history")
	}
	return ctx.JSON(http.StatusOK, list(history))
}

// publish makes the grades of a class term visible to its students.
func (api *gradeApi) publish(ctx echo.Context) error {
	c, err := contextObject[class.Class](ctx)
	if err != nil {
		return err
	}
	termID := ctx.Param("termID")
	if !core.IsValidID(termID) {
		return errHttpNotFound
	}
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	p, err := api.svc.Publish(ctx.Request().Context(), c, termID, usr)
	if err != nil {
		return errors.Wrap(err, "publishing grades")
	}
	return ctx.JSON(http.StatusCreated, p)
}

// report computes the report card of ?class_id for ?term_id. Students only get their own published reports;
// staff see drafts unless ?published_only=true.
func (api *gradeApi) report(ctx echo.Context) error {
	s, err := contextObject[student.Student](ctx)
	if err != nil {
		return err
	}
	var data ReportRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ReportRequest")
	}
	if err = api.validate.Struct(data); err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	publishedOnly, _ := strconv.ParseBool(ctx.QueryParam("published_only"))
	if isStudentViewer(usr) {
		if s.UserID != usr.ID {
			return errHttpNotFound
		}
		publishedOnly = true
	}

	r, err := api.svc.Report(ctx.Request().Context(), s.ID, data.ClassID, data.TermID, publishedOnly)
	if err != nil {
		return errors.Wrap(err, "computing report")
	}
	return ctx.JSON(http.StatusOK, r)
}

type ReportRequest struct {
	ClassID string `query:"class_id" json:"class_id" validate:"required,uuid"`
	TermID  string `query:"term_id" json:"term_id" validate:"required,uuid"`
}
