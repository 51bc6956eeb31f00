package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/notification-service/internal/storage"
	apperrors "github.com/spec-kit/notification-service/pkg/util/errorutil"
)

// UploadsHandler serves stored attachments from whichever backend is active.
type UploadsHandler struct {
	store  storage.AttachmentStore
	prefix string
}

// NewUploadsHandler constructs handler.
func NewUploadsHandler(store storage.AttachmentStore, prefix string) *UploadsHandler {
	return &UploadsHandler{store: store, prefix: strings.TrimRight(prefix, "/")}
}

// Serve handles GET <prefix>/*.
func (h *UploadsHandler) Serve(c *fiber.Ctx) error {
	blob, err := h.store.Open(c.UserContext(), h.prefix+"/"+c.Params("*"))
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.NewNotFound("file", nil)
	}
	if err != nil {
		return err
	}
	contentType := blob.ContentType
	if contentType == "" {
		contentType = fiber.MIMEOctetStream
	}
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, `inline; filename="`+blob.Filename+`"`)
	return c.Send(blob.Content)
}
