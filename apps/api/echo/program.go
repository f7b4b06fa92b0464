package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/academia-hq/academia/core/class"
	"github.com/academia-hq/academia/core/permission"
	"github.com/academia-hq/academia/core/program"
)

type programApi struct {
	svc      *program.Service
	classes  *class.Service
	validate *validator.Validate
}

func registerProgramAPI(g *echo.Group, jwt echo.MiddlewareFunc, authz *authorizer, api programApi) {
	read := authz.require(permission.ProgramRead)
	write := authz.require(permission.ProgramWrite)
	object := loadObject("id", api.svc.Get)

	pg := g.Group("/programs", jwt)
	pg.GET("", api.query, read)
	pg.POST("", api.create, write)
	pg.GET("/:id", api.retrieve, read, object)
	pg.PUT("/:id", api.update, write, object)
	pg.DELETE("/:id", api.destroy, write, object)
	pg.GET("/:id/subjects", api.querySubjects, read, object)
	pg.POST("/:id/subjects", api.createSubject, write, object)
	pg.POST("/:id/sync-subjects", api.syncSubjects, write, authz.require(permission.ClassWrite), object)

	subject := loadObject("id", api.svc.GetSubject)
	sg := g.Group("/subjects", jwt)
	sg.GET("/:id", api.retrieveSubject, read, subject)
	sg.PUT("/:id", api.updateSubject, write, subject)
	sg.DELETE("/:id", api.destroySubject, write, subject)
}

func (api *programApi) query(ctx echo.Context) error {
	filter := new(program.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []program.Program{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	programs, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying programs")
	}
	return ctx.JSON(http.StatusOK, list(programs))
}

func (api *programApi) create(ctx echo.Context) error {
	var data program.NewProgram
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewProgram")
	}
	rctx := ctx.Request().Context()
	if err := data.Validate(rctx, api.validate, api.svc); err != nil {
		return err
	}
	p, err := api.svc.Create(rctx, data)
	if err != nil {
		return errors.Wrap(err, "creating program")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *programApi) retrieve(ctx echo.Context) error {
	p, err := contextObject[program.Program](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *programApi) update(ctx echo.Context) error {
	p, err := contextObject[program.Program](ctx)
	if err != nil {
		return err
	}
	var data program.UpdateProgram
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProgram")
	}
	rctx := ctx.Request().Context()
	if err = data.Validate(rctx, p, api.validate, api.svc); err != nil {
		return err
	}
	p, err = api.svc.Update(rctx, p, data)
	if err != nil {
		return errors.Wrap(err, "updating program")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *programApi) destroy(ctx echo.Context) error {
	p, err := contextObject[program.Program](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), p.ID); err != nil {
		return errors.Wrap(err, "deleting program")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *programApi) querySubjects(ctx echo.Context) error {
	p, err := contextObject[program.Program](ctx)
	if err != nil {
		return err
	}
	subjects, err := api.svc.Subjects(ctx.Request().Context(), p.ID)
	if err != nil {
		return errors.Wrap(err, "querying subjects")
	}
	return ctx.JSON(http.StatusOK, list(subjects))
}

func (api *programApi) createSubject(ctx echo.Context) error {
	p, err := contextObject[program.Program](ctx)
	if err != nil {
		return err
	}
	var data program.NewSubject
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubject")
	}
	rctx := ctx.Request().Context()
	if err = data.Validate(rctx, p, api.validate, api.svc); err != nil {
		return err
	}
	s, err := api.svc.AddSubject(rctx, p, data)
	if err != nil {
		return errors.Wrap(err, "adding subject")
	}
	return ctx.JSON(http.StatusCreated, s)
}

// syncSubjects reconciles the subjects of every class following the program.
func (api *programApi) syncSubjects(ctx echo.Context) error {
	p, err := contextObject[program.Program](ctx)
	if err != nil {
		return err
	}
	results, err := api.classes.SyncProgram(ctx.Request().Context(), p.ID)
	if err != nil {
		return errors.Wrap(err, "syncing program subjects")
	}
	return ctx.JSON(http.StatusOK, list(results))
}

func (api *programApi) retrieveSubject(ctx echo.Context) error {
	s, err := contextObject[program.Subject](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *programApi) updateSubject(ctx echo.Context) error {
	s, err := contextObject[program.Subject](ctx)
	if err != nil {
		return err
	}
	var data program.UpdateSubject
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSubject")
	}
	rctx := ctx.Request().Context()
	if err = data.Validate(rctx, s, api.validate, api.svc); err != nil {
		return err
	}
	s, err = api.svc.UpdateSubject(rctx, s, data)
	if err != nil {
		return errors.Wrap(err, "updating subject")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *programApi) destroySubject(ctx echo.Context) error {
	s, err := contextObject[program.Subject](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteSubject(ctx.Request().Context(), s.ID); err != nil {
		return errors.Wrap(err, "deleting subject")
	}
	return ctx.NoContent(http.StatusNoContent)
}
