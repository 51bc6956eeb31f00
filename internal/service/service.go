package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/notification-service/internal/access"
	"github.com/spec-kit/notification-service/internal/domain"
	"github.com/spec-kit/notification-service/internal/events"
	"github.com/spec-kit/notification-service/internal/repository"
	apperrors "github.com/spec-kit/notification-service/pkg/util/errorutil"
)

// Page is one page of a listing.
type Page[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

func newPage[T any](items []T, total int64, page int) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:      items,
		Total:      total,
		Page:       repository.NormalizePage(page),
		PageSize:   repository.PageSize,
		TotalPages: repository.TotalPages(total, repository.PageSize),
	}
}

// authorize turns a policy denial into an error. Nothing is mutated before
// this returns nil.
func authorize(req access.Request) error {
	decision := access.Decide(req)
	if decision.Allowed {
		return nil
	}
	if decision.Reason == access.ReasonNotAuthenticated {
		return apperrors.NewUnauthorized(decision.Reason)
	}
	return apperrors.NewForbidden(decision.Reason)
}

func requireAdmin(actor *domain.Actor) error {
	if !actor.Authenticated() {
		return apperrors.NewUnauthorized(access.ReasonNotAuthenticated)
	}
	if !actor.Role.IsAdmin() {
		return apperrors.NewForbidden("admin role required")
	}
	return nil
}

func requireSuperAdmin(actor *domain.Actor) error {
	if !actor.Authenticated() {
		return apperrors.NewUnauthorized(access.ReasonNotAuthenticated)
	}
	if actor.Role != domain.RoleSuperAdmin {
		return apperrors.NewForbidden(access.ReasonDepartmentAdmin)
	}
	return nil
}

// lookupError maps a missing row to a NotFound for resource.
func lookupError(err error, resource string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound(resource, nil)
	}
	return apperrors.MapError(err)
}

// writeError maps a failed insert or update. A unique constraint that fired
// after the existence check passed is reported as duplicate.
func writeError(err error, resource string, duplicate error) error {
	if apperrors.IsUniqueViolation(err) {
		return duplicate
	}
	return lookupError(err, resource)
}

// publish emits an event; subscriber failures are logged, never returned.
func publish(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, event events.Event) {
	if dispatcher == nil {
		return
	}
	if err := dispatcher.Publish(ctx, event); err != nil {
		logger.Warn("event subscriber failed",
			zap.String("event_type", string(event.Type)),
			zap.String("resource_id", event.ResourceID),
			zap.Error(err))
	}
}

func trim(s string) string {
	return strings.TrimSpace(s)
}
