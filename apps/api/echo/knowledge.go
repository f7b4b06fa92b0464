package echoapi

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/academia-hq/academia/core"
	"github.com/academia-hq/academia/core/knowledge"
	"github.com/academia-hq/academia/core/permission"
	"github.com/academia-hq/academia/core/user"
)

type knowledgeApi struct {
	svc           *knowledge.Service
	users         *user.Service
	validate      *validator.Validate
	maxUploadSize int64
}

func registerKnowledgeAPI(g *echo.Group, jwt echo.MiddlewareFunc, authz *authorizer, api knowledgeApi) {
	read := authz.require(permission.DocumentRead)
	write := authz.require(permission.DocumentWrite)
	object := loadObject("id", api.svc.Get)

	dg := g.Group("/documents", jwt)
	dg.GET("", api.query, read)
	dg.POST("", api.upload, write)
	dg.GET("/search", api.search, read)
	dg.GET("/:id", api.retrieve, read, object)
	dg.DELETE("/:id", api.destroy, write, object)
	dg.GET("/:id/chunks", api.chunks, read, object)
	dg.POST("/:id/reprocess", api.reprocess, write, object)
}

// upload accepts a multipart form: the "file" part plus optional title and campus_id fields.
// Re-uploading identical content answers 200 with the existing document.
func (api *knowledgeApi) upload(ctx echo.Context) error {
	req := ctx.Request()
	// multipart overhead is small next to the file itself
	req.Body = http.MaxBytesReader(ctx.Response(), req.Body, api.maxUploadSize+1<<20)

	fh, err := ctx.FormFile("file")
	if err != nil {
		if errors.Cause(err) == http.ErrMissingFile {
			return core.NewFieldError("file", "a file is required")
		}
		return core.NewFieldError("file", fmt.Sprintf("file must be sent as multipart form data of at most %d bytes", api.maxUploadSize))
	}
	if fh.Size > api.maxUploadSize {
		return core.NewFieldError("file", fmt.Sprintf("file is larger than %d bytes", api.maxUploadSize))
	}
	data := knowledge.NewDocument{
		Title:    ctx.FormValue("title"),
		CampusID: ctx.FormValue("campus_id"),
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer f.Close()

	d, created, err := api.svc.Upload(req.Context(), data, f, fh.Filename, usr.ID)
	if err != nil {
		return errors.Wrap(err, "uploading document")
	}
	if !created {
		return ctx.JSON(http.StatusOK, d)
	}
	return ctx.JSON(http.StatusCreated, d)
}

func (api *knowledgeApi) query(ctx echo.Context) error {
	filter := new(knowledge.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []knowledge.Document{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	docs, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying documents")
	}
	return ctx.JSON(http.StatusOK, list(docs))
}

func (api *knowledgeApi) search(ctx echo.Context) error {
	var sq knowledge.SearchQuery
	if err := ctx.Bind(&sq); err != nil {
		return core.NewFieldError("limit", "must be a number")
	}
	if err := api.validate.Struct(sq); err != nil {
		return err
	}
	hits, err := api.svc.Search(ctx.Request().Context(), sq)
	if err != nil {
		return errors.Wrap(err, "searching documents")
	}
	return ctx.JSON(http.StatusOK, list(hits))
}

func (api *knowledgeApi) retrieve(ctx echo.Context) error {
	d, err := contextObject[knowledge.Document](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, d)
}

func (api *knowledgeApi) chunks(ctx echo.Context) error {
	d, err := contextObject[knowledge.Document](ctx)
	if err != nil {
		return err
	}
	chunks, err := api.svc.Chunks(ctx.Request().Context(), d.ID)
	if err != nil {
		return errors.Wrap(err, "querying chunks")
	}
	return ctx.JSON(http.StatusOK, list(chunks))
}

func (api *knowledgeApi) reprocess(ctx echo.Context) error {
	d, err := contextObject[knowledge.Document](ctx)
	if err != nil {
		return err
	}
	d, err = api.svc.Reprocess(ctx.Request().Context(), d)
	if err != nil {
		return errors.Wrap(err, "reprocessing document")
	}
	return ctx.JSON(http.StatusAccepted, d)
}

func (api *knowledgeApi) destroy(ctx echo.Context) error {
	d, err := contextObject[knowledge.Document](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), d); err != nil {
		return errors.Wrap(err, "deleting document")
	}
	return ctx.NoContent(http.StatusNoContent)
}
