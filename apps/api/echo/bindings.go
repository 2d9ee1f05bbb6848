package echoapi

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/attachment"
)

const (
	formDataField  = "data"
	formFilesField = "files"
)

func isMultipart(ctx echo.Context) bool {
	return strings.HasPrefix(ctx.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm)
}

// bindWithFiles binds the request into dst and returns its uploaded files.
// Multipart requests carry dst as JSON in the "data" field and the files under "files";
// any other request is bound the usual way and has no files.
func bindWithFiles(ctx echo.Context, dst interface{}) ([]attachment.File, error) {
	if !isMultipart(ctx) {
		if err := ctx.Bind(dst); err != nil {
			return nil, err
		}
		return nil, nil
	}

	form, err := ctx.MultipartForm()
	if err != nil {
		return nil, core.NewValidationError(err, core.FieldError{Field: formFilesField, Error: "invalid multipart form"})
	}
	if vals := form.Value[formDataField]; len(vals) > 0 && vals[0] != "" {
		if err = json.Unmarshal([]byte(vals[0]), dst); err != nil {
			return nil, core.NewValidationError(err, core.FieldError{Field: formDataField, Error: "invalid JSON"})
		}
	}

	headers := form.File[formFilesField]
	files := make([]attachment.File, 0, len(headers))
	for _, fh := range headers {
		files = append(files, uploadedFile(fh))
	}
	return files, nil
}

func uploadedFile(fh *multipart.FileHeader) attachment.File {
	return attachment.File{
		Name: fh.Filename,
		Size: fh.Size,
		Open: func() (io.ReadCloser, error) {
			f, err := fh.Open()
			return f, errors.Wrap(err, "opening uploaded file")
		},
	}
}
