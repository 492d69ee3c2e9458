package echoapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/jifunze/core"
	"github.com/trezcool/jifunze/core/upload"
	"github.com/trezcool/jifunze/services/metrics"
)

const (
	uploadField = "file"
	// room for the multipart envelope on top of the file itself
	multipartOverhead = 1 << 20
)

type uploadApi struct {
	auth    *auth
	svc     upload.ServiceInterface
	metrics *metrics.Metrics
}

func registerUploadAPI(app *echo.Echo, auth *auth, svc upload.ServiceInterface, m *metrics.Metrics) {
	api := uploadApi{auth: auth, svc: svc, metrics: m}

	g := app.Group("/upload", auth.jwt)
	g.POST("/assignment/:assignmentId", api.uploadAssignmentFile, bodyLimit(upload.KindAssignmentDocument))
	g.POST("/post-image", api.uploadPostImage, bodyLimit(upload.KindPostImage))
	g.GET("/info", api.info)
	g.GET("/status", api.status)
}

func bodyLimit(kind upload.Kind) echo.MiddlewareFunc {
	limit := upload.Rules[kind].MaxSize + multipartOverhead
	return middleware.BodyLimit(fmt.Sprintf("%dB", limit))
}

// formFile opens the uploaded file. The caller closes the returned closer.
func formFile(ctx echo.Context) (upload.File, func(), error) {
	fh, err := ctx.FormFile(uploadField)
	if err != nil {
		if errors.Cause(err) == http.ErrMissingFile || errors.Cause(err) == http.ErrNotMultipart {
			return upload.File{}, nil, core.NewFieldError(uploadField, "a file is required")
		}
		return upload.File{}, nil, errors.Wrap(err, "reading multipart form")
	}
	f, err := fh.Open()
	if err != nil {
		return upload.File{}, nil, errors.Wrap(err, "opening uploaded file")
	}
	return upload.File{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Size:        fh.Size,
		Body:        f,
	}, func() { _ = f.Close() }, nil
}

// Handlers

func (api *uploadApi) uploadAssignmentFile(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.auth.svc)
	if err != nil {
		return err
	}
	f, closeFile, err := formFile(ctx)
	if err != nil {
		return err
	}
	defer closeFile()

	res, err := api.svc.UploadAssignmentFile(ctx.Request().Context(), actor, ctx.Param("assignmentId"), f)
	api.done(upload.KindAssignmentDocument, err)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *uploadApi) uploadPostImage(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.auth.svc)
	if err != nil {
		return err
	}
	f, closeFile, err := formFile(ctx)
	if err != nil {
		return err
	}
	defer closeFile()

	res, err := api.svc.UploadPostImage(ctx.Request().Context(), actor, f)
	api.done(upload.KindPostImage, err)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *uploadApi) info(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.svc.Info())
}

func (api *uploadApi) status(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.svc.Status())
}

func (api *uploadApi) done(kind upload.Kind, err error) {
	if api.metrics != nil {
		api.metrics.UploadDone(string(kind), err)
	}
}
