package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/notification-service/internal/api/dto"
	"github.com/spec-kit/notification-service/internal/auth"
	"github.com/spec-kit/notification-service/internal/domain"
	"github.com/spec-kit/notification-service/internal/service"
)

// DepartmentsHandler exposes department management.
type DepartmentsHandler struct {
	service *service.DepartmentService
}

// NewDepartmentsHandler constructs handler.
func NewDepartmentsHandler(departments *service.DepartmentService) *DepartmentsHandler {
	return &DepartmentsHandler{service: departments}
}

// List handles GET /departments. Super admins get per-department counts;
// everyone else gets the plain list used by pickers.
func (h *DepartmentsHandler) List(c *fiber.Ctx) error {
	actor := auth.ActorFromContext(c)
	if actor != nil && actor.Role == domain.RoleSuperAdmin {
		stats, err := h.service.ListStats(c.UserContext(), actor)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"data": dto.NewDepartmentStatsResponses(stats)})
	}
	depts, err := h.service.List(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewDepartmentResponses(depts)})
}

// Create handles POST /departments.
func (h *DepartmentsHandler) Create(c *fiber.Ctx) error {
	var req service.DepartmentInput
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	dept, err := h.service.Create(c.UserContext(), auth.ActorFromContext(c), req)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewDepartmentResponse(*dept)})
}

// Get handles GET /departments/:id.
func (h *DepartmentsHandler) Get(c *fiber.Ctx) error {
	dept, err := h.service.Get(c.UserContext(), auth.ActorFromContext(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewDepartmentResponse(*dept)})
}

// Data handles GET /departments/:id/data.
func (h *DepartmentsHandler) Data(c *fiber.Ctx) error {
	data, err := h.service.Data(c.UserContext(), auth.ActorFromContext(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewDepartmentDataResponse(*data)})
}

// Update handles PUT /departments/:id.
func (h *DepartmentsHandler) Update(c *fiber.Ctx) error {
	var req service.DepartmentInput
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	dept, err := h.service.Update(c.UserContext(), auth.ActorFromContext(c), c.Params("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewDepartmentResponse(*dept)})
}

// Delete handles DELETE /departments/:id.
func (h *DepartmentsHandler) Delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), auth.ActorFromContext(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
