package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/notification-service/internal/api/dto"
	"github.com/spec-kit/notification-service/internal/auth"
	"github.com/spec-kit/notification-service/internal/domain"
	"github.com/spec-kit/notification-service/internal/service"
	"github.com/spec-kit/notification-service/internal/storage"
)

// NotificationsHandler exposes the notification lifecycle.
type NotificationsHandler struct {
	service *service.NotificationService
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(notifications *service.NotificationService) *NotificationsHandler {
	return &NotificationsHandler{service: notifications}
}

// List handles GET /notifications.
func (h *NotificationsHandler) List(c *fiber.Ctx) error {
	page, err := h.service.List(c.UserContext(), auth.ActorFromContext(c), service.NotificationListFilter{
		DepartmentID: c.Query("department"),
		Category:     domain.Category(c.Query("category")),
		Search:       c.Query("search"),
		Page:         pageParam(c),
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewPageResponse(page, dto.NewNotificationViewResponse)})
}

// Feed handles GET /notifications/feed.
func (h *NotificationsHandler) Feed(c *fiber.Ctx) error {
	page, err := h.service.Feed(c.UserContext(), auth.ActorFromContext(c), domain.Category(c.Query("category")), pageParam(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewPageResponse(page, dto.NewNotificationViewResponse)})
}

// Create handles POST /notifications. The response carries the dispatch
// summary; partial email failure still answers 201.
func (h *NotificationsHandler) Create(c *fiber.Ctx) error {
	req, upload, closer, err := bindNotification(c)
	if err != nil {
		return err
	}
	defer closer()

	date, err := parseDate(req.Date)
	if err != nil {
		return err
	}
	res, err := h.service.Create(c.UserContext(), auth.ActorFromContext(c), service.NotificationInput{
		Title:        req.Title,
		Description:  req.Description,
		DepartmentID: req.DepartmentID,
		Category:     domain.Category(req.Category),
		Date:         date,
	}, upload)
	if err != nil {
		return err
	}

	c.Set("X-Dispatch-Failed", strconv.Itoa(res.Dispatch.Failed))
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewCreateNotificationResponse(*res)})
}

// Get handles GET /notifications/:id.
func (h *NotificationsHandler) Get(c *fiber.Ctx) error {
	view, err := h.service.Get(c.UserContext(), auth.ActorFromContext(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewNotificationViewResponse(*view)})
}

// Update handles PUT /notifications/:id.
func (h *NotificationsHandler) Update(c *fiber.Ctx) error {
	req, upload, closer, err := bindNotification(c)
	if err != nil {
		return err
	}
	defer closer()

	date, err := parseDate(req.Date)
	if err != nil {
		return err
	}
	n, err := h.service.Update(c.UserContext(), auth.ActorFromContext(c), c.Params("id"), service.NotificationUpdateInput{
		Title:        req.Title,
		Description:  req.Description,
		DepartmentID: req.DepartmentID,
		Category:     domain.Category(req.Category),
		Date:         date,
	}, upload)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewNotificationResponse(*n)})
}

// Delete handles DELETE /notifications/:id.
func (h *NotificationsHandler) Delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), auth.ActorFromContext(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Dispatch handles GET /notifications/:id/dispatch.
func (h *NotificationsHandler) Dispatch(c *fiber.Ctx) error {
	summary, err := h.service.DispatchReport(c.UserContext(), auth.ActorFromContext(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": summary})
}

func bindNotification(c *fiber.Ctx) (dto.NotificationRequest, *storage.Upload, func(), error) {
	noop := func() {}
	var req dto.NotificationRequest
	if err := bindJSON(c, &req); err != nil {
		return req, nil, noop, err
	}
	upload, file, err := formUpload(c)
	if err != nil {
		return req, nil, noop, err
	}
	if file == nil {
		return req, nil, noop, nil
	}
	return req, upload, func() { _ = file.Close() }, nil
}
