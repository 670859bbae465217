package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/upload"
)

const uploadFormField = "file"

func (s *server) registerUploadAPI(g *echo.Group) {
	authed := s.authed()
	g.POST("/uploads", s.createUpload, authed...)
	g.GET("/uploads/*", s.downloadUpload, authed...)
}

func (s *server) createUpload(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	fh, err := ctx.FormFile(uploadFormField)
	if err != nil {
		return core.NewFieldError(uploadFormField, errors.New("this field is required"))
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening form file")
	}
	defer f.Close()

	upl, err := s.UploadSvc.Upload(ctx.Request().Context(), usr, upload.NewUpload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Size:        fh.Size,
		Body:        f,
	})
	if err != nil {
		return errors.Wrap(err, "uploading file")
	}
	return created(ctx, "file uploaded", upl)
}

func (s *server) downloadUpload(ctx echo.Context) error {
	rc, info, err := s.UploadSvc.Open(ctx.Request().Context(), ctx.Param("*"))
	if err != nil {
		return errors.Wrap(err, "opening upload")
	}
	defer rc.Close()

	contentType := info.ContentType
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	if info.Size > 0 {
		ctx.Response().Header().Set(echo.HeaderContentLength, strconv.FormatInt(info.Size, 10))
	}
	ctx.Response().Header().Set("Cache-Control", "private, max-age=86400")
	return ctx.Stream(http.StatusOK, contentType, rc)
}
