package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/notification-service/internal/access"
	"github.com/spec-kit/notification-service/internal/domain"
	"github.com/spec-kit/notification-service/internal/repository"
	apperrors "github.com/spec-kit/notification-service/pkg/util/errorutil"
)

const recentLimit = 5

// Dashboard is the role-specific landing summary. Fields that do not apply
// to the caller's role are left empty.
type Dashboard struct {
	Role                domain.Role               `json:"role"`
	Department          *domain.Department        `json:"department,omitempty"`
	TotalNotifications  int64                     `json:"total_notifications"`
	CategoryCounts      []domain.CategoryCount    `json:"category_counts"`
	RecentNotifications []domain.NotificationView `json:"recent_notifications"`
	StudentCount        *int64                    `json:"student_count,omitempty"`
	RoleCounts          map[domain.Role]int64     `json:"role_counts,omitempty"`
	Departments         []domain.DepartmentStats  `json:"departments,omitempty"`
}

// DashboardDependencies wires the dashboard service.
type DashboardDependencies struct {
	DepartmentRepo   repository.DepartmentRepository
	UserRepo         repository.UserRepository
	NotificationRepo repository.NotificationRepository
	Logger           *zap.Logger
}

// DashboardService aggregates counts for the landing page.
type DashboardService struct {
	departments   repository.DepartmentRepository
	users         repository.UserRepository
	notifications repository.NotificationRepository
	logger        *zap.Logger
}

// NewDashboardService constructs the service.
func NewDashboardService(deps DashboardDependencies) *DashboardService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		departments:   deps.DepartmentRepo,
		users:         deps.UserRepo,
		notifications: deps.NotificationRepo,
		logger:        logger,
	}
}

// For builds the dashboard for actor.
func (s *DashboardService) For(ctx context.Context, actor *domain.Actor) (*Dashboard, error) {
	if !actor.Authenticated() {
		return nil, apperrors.NewUnauthorized(access.ReasonNotAuthenticated)
	}
	if actor.Role == domain.RoleSuperAdmin {
		return s.global(ctx)
	}
	return s.department(ctx, actor)
}

func (s *DashboardService) department(ctx context.Context, actor *domain.Actor) (*Dashboard, error) {
	if err := authorize(access.Request{
		Actor:      actor,
		Kind:       access.KindDepartment,
		Department: actor.DepartmentID,
		Op:         access.OpRead,
	}); err != nil {
		return nil, err
	}
	dept, err := s.departments.GetByID(ctx, actor.DepartmentID)
	if err != nil {
		return nil, lookupError(err, "department")
	}

	d := &Dashboard{Role: actor.Role, Department: dept}
	if err := s.fill(ctx, d, dept.ID); err != nil {
		return nil, err
	}

	if actor.Role == domain.RoleDeptAdmin {
		roles, err := s.users.CountByRole(ctx, dept.ID)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		students := roles[domain.RoleStudent]
		d.StudentCount = &students
	}
	return d, nil
}

func (s *DashboardService) global(ctx context.Context) (*Dashboard, error) {
	d := &Dashboard{Role: domain.RoleSuperAdmin}
	if err := s.fill(ctx, d, ""); err != nil {
		return nil, err
	}

	roles, err := s.users.CountByRole(ctx, "")
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	d.RoleCounts = roles

	stats, err := s.departments.ListStats(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	d.Departments = stats
	return d, nil
}

// fill sets totals, category counts and recent notifications for one
// department, or for everything when departmentID is empty.
func (s *DashboardService) fill(ctx context.Context, d *Dashboard, departmentID string) error {
	total, err := s.notifications.CountByDepartment(ctx, departmentID)
	if err != nil {
		return apperrors.MapError(err)
	}
	counts, err := s.notifications.CountByCategory(ctx, departmentID)
	if err != nil {
		return apperrors.MapError(err)
	}
	recent, _, err := s.notifications.List(ctx, repository.NotificationFilter{
		DepartmentID: departmentID,
		Sort:         repository.Sort{Field: "createdAt", Direction: repository.SortDesc},
		Page:         1,
		Limit:        recentLimit,
	})
	if err != nil {
		return apperrors.MapError(err)
	}
	if recent == nil {
		recent = []domain.NotificationView{}
	}

	d.TotalNotifications = total
	d.CategoryCounts = counts
	d.RecentNotifications = recent
	return nil
}
