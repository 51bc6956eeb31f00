package handlers

import (
	"mime/multipart"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/notification-service/internal/storage"
	apperrors "github.com/spec-kit/notification-service/pkg/util/errorutil"
)

// dateLayouts are accepted for the notification date field, most specific first.
var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"}

func parseDate(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return &t, nil
		}
	}
	return nil, apperrors.NewValidationError("invalid date", map[string]any{"date": "must be YYYY-MM-DD or RFC3339"})
}

func pageParam(c *fiber.Ctx) int {
	return c.QueryInt("page", 1)
}

func bindJSON(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return nil
}

// formUpload returns the "file" part of a multipart request, or nil when the
// request carries none. The caller closes the returned file.
func formUpload(c *fiber.Ctx) (*storage.Upload, multipart.File, error) {
	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		return nil, nil, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, nil, apperrors.NewValidationError("invalid multipart payload", nil)
	}
	files := form.File["file"]
	if len(files) == 0 {
		return nil, nil, nil
	}
	fh := files[0]
	f, err := fh.Open()
	if err != nil {
		return nil, nil, apperrors.NewInternalError(err)
	}
	return &storage.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Size:        fh.Size,
		Content:     f,
	}, f, nil
}
