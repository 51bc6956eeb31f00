package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/notification-service/internal/access"
	"github.com/spec-kit/notification-service/internal/domain"
	"github.com/spec-kit/notification-service/internal/events"
	"github.com/spec-kit/notification-service/internal/repository"
	apperrors "github.com/spec-kit/notification-service/pkg/util/errorutil"
)

// DepartmentInput carries the editable department fields.
type DepartmentInput struct {
	Name        string `json:"name" validate:"required,max=50"`
	Code        string `json:"code" validate:"required,max=10"`
	Description string `json:"description" validate:"max=500"`
}

func (in DepartmentInput) normalized() DepartmentInput {
	return DepartmentInput{Name: trim(in.Name), Code: trim(in.Code), Description: trim(in.Description)}
}

// DepartmentData is the admin view of one department.
type DepartmentData struct {
	Department         domain.Department      `json:"department"`
	Users              []domain.User          `json:"users"`
	CategoryCounts     []domain.CategoryCount `json:"category_counts"`
	TotalNotifications int64                  `json:"total_notifications"`
	TotalUsers         int64                  `json:"total_users"`
	RoleCounts         map[domain.Role]int64  `json:"role_counts"`
}

// DepartmentDependencies wires the department service.
type DepartmentDependencies struct {
	DepartmentRepo   repository.DepartmentRepository
	UserRepo         repository.UserRepository
	NotificationRepo repository.NotificationRepository
	Events           events.Dispatcher
	Logger           *zap.Logger
}

// DepartmentService manages departments. Writes are reserved for super admins.
type DepartmentService struct {
	departments   repository.DepartmentRepository
	users         repository.UserRepository
	notifications repository.NotificationRepository
	events        events.Dispatcher
	logger        *zap.Logger
}

// NewDepartmentService constructs the service.
func NewDepartmentService(deps DepartmentDependencies) *DepartmentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DepartmentService{
		departments:   deps.DepartmentRepo,
		users:         deps.UserRepo,
		notifications: deps.NotificationRepo,
		events:        deps.Events,
		logger:        logger,
	}
}

// Create adds a department after checking name and code are unused.
func (s *DepartmentService) Create(ctx context.Context, actor *domain.Actor, input DepartmentInput) (*domain.Department, error) {
	if err := authorize(access.Request{Actor: actor, Kind: access.KindDepartment, Op: access.OpCreate}); err != nil {
		return nil, err
	}
	input = input.normalized()
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if err := s.ensureUnique(ctx, input, ""); err != nil {
		return nil, err
	}

	dept := &domain.Department{Name: input.Name, Code: input.Code, Description: input.Description}
	if err := s.departments.Create(ctx, dept); err != nil {
		return nil, writeError(err, "department", duplicateDepartment(input))
	}

	publish(ctx, s.events, s.logger, events.New(events.EventDepartmentCreated, dept.ID, actor,
		events.DepartmentPayload{Name: dept.Name, Code: dept.Code}))
	return dept, nil
}

// Update edits a department; uniqueness ignores the department itself.
func (s *DepartmentService) Update(ctx context.Context, actor *domain.Actor, id string, input DepartmentInput) (*domain.Department, error) {
	if err := authorize(access.Request{Actor: actor, Kind: access.KindDepartment, Department: id, Op: access.OpUpdate}); err != nil {
		return nil, err
	}
	dept, err := s.departments.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "department")
	}
	input = input.normalized()
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if err := s.ensureUnique(ctx, input, dept.ID); err != nil {
		return nil, err
	}

	dept.Name = input.Name
	dept.Code = input.Code
	dept.Description = input.Description
	if err := s.departments.Update(ctx, dept); err != nil {
		return nil, writeError(err, "department", duplicateDepartment(input))
	}

	publish(ctx, s.events, s.logger, events.New(events.EventDepartmentUpdated, dept.ID, actor,
		events.DepartmentPayload{Name: dept.Name, Code: dept.Code}))
	return dept, nil
}

func (s *DepartmentService) ensureUnique(ctx context.Context, input DepartmentInput, excludeID string) error {
	exists, err := s.departments.ExistsByNameOrCode(ctx, input.Name, input.Code, excludeID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if exists {
		return duplicateDepartment(input)
	}
	return nil
}

func duplicateDepartment(input DepartmentInput) error {
	return apperrors.NewValidationError("Department with that name or code already exists",
		map[string]any{"name": input.Name, "code": input.Code})
}

// Delete removes a department that no user or notification references.
func (s *DepartmentService) Delete(ctx context.Context, actor *domain.Actor, id string) error {
	if err := authorize(access.Request{Actor: actor, Kind: access.KindDepartment, Department: id, Op: access.OpDelete}); err != nil {
		return err
	}
	dept, err := s.departments.GetByID(ctx, id)
	if err != nil {
		return lookupError(err, "department")
	}

	userCount, err := s.users.CountByDepartment(ctx, dept.ID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if userCount > 0 {
		return apperrors.NewReferentialIntegrity(
			fmt.Sprintf("Cannot delete department. It has %d users associated with it.", userCount),
			"users", userCount)
	}

	notificationCount, err := s.notifications.CountByDepartment(ctx, dept.ID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if notificationCount > 0 {
		return apperrors.NewReferentialIntegrity(
			fmt.Sprintf("Cannot delete department. It has %d notifications associated with it.", notificationCount),
			"notifications", notificationCount)
	}

	if err := s.departments.Delete(ctx, dept.ID); err != nil {
		return apperrors.MapError(err)
	}
	publish(ctx, s.events, s.logger, events.New(events.EventDepartmentDeleted, dept.ID, actor,
		events.DepartmentPayload{Name: dept.Name, Code: dept.Code}))
	return nil
}

// Get returns one department. Non-super actors may only read their own.
func (s *DepartmentService) Get(ctx context.Context, actor *domain.Actor, id string) (*domain.Department, error) {
	if err := authorize(access.Request{Actor: actor, Kind: access.KindDepartment, Department: id, Op: access.OpRead}); err != nil {
		return nil, err
	}
	dept, err := s.departments.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "department")
	}
	return dept, nil
}

// List returns every department by name. Used for pickers, so any
// authenticated actor may call it.
func (s *DepartmentService) List(ctx context.Context, actor *domain.Actor) ([]domain.Department, error) {
	if !actor.Authenticated() {
		return nil, apperrors.NewUnauthorized(access.ReasonNotAuthenticated)
	}
	depts, err := s.departments.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if depts == nil {
		depts = []domain.Department{}
	}
	return depts, nil
}

// ListStats returns every department with member and notification counts.
func (s *DepartmentService) ListStats(ctx context.Context, actor *domain.Actor) ([]domain.DepartmentStats, error) {
	if err := requireSuperAdmin(actor); err != nil {
		return nil, err
	}
	stats, err := s.departments.ListStats(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if stats == nil {
		stats = []domain.DepartmentStats{}
	}
	return stats, nil
}

// Data returns the members and notification breakdown of one department.
func (s *DepartmentService) Data(ctx context.Context, actor *domain.Actor, id string) (*DepartmentData, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := authorize(access.Request{Actor: actor, Kind: access.KindDepartment, Department: id, Op: access.OpRead}); err != nil {
		return nil, err
	}
	dept, err := s.departments.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "department")
	}

	users, err := s.users.ListByDepartment(ctx, dept.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	counts, err := s.notifications.CountByCategory(ctx, dept.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	roles, err := s.users.CountByRole(ctx, dept.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	var total int64
	for _, c := range counts {
		total += c.Count
	}
	if users == nil {
		users = []domain.User{}
	}
	return &DepartmentData{
		Department:         *dept,
		Users:              users,
		CategoryCounts:     counts,
		TotalNotifications: total,
		TotalUsers:         int64(len(users)),
		RoleCounts:         roles,
	}, nil
}
