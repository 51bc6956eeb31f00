package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/notification-service/internal/access"
	"github.com/spec-kit/notification-service/internal/auth"
	"github.com/spec-kit/notification-service/internal/config"
	"github.com/spec-kit/notification-service/internal/domain"
	"github.com/spec-kit/notification-service/internal/events"
	"github.com/spec-kit/notification-service/internal/repository"
	apperrors "github.com/spec-kit/notification-service/pkg/util/errorutil"
)

// CreateUserInput carries a new account.
type CreateUserInput struct {
	Name         string      `json:"name" validate:"required,max=100"`
	Username     string      `json:"username" validate:"required,max=50"`
	Email        string      `json:"email" validate:"required,email"`
	Password     string      `json:"password" validate:"required,min=6"`
	Role         domain.Role `json:"role" validate:"required,role"`
	DepartmentID string      `json:"department_id"`
}

// UpdateUserInput carries admin edits. Role and DepartmentID only apply when
// a super admin makes the change. An empty Password leaves it unchanged.
type UpdateUserInput struct {
	Name            string      `json:"name" validate:"required,max=100"`
	Email           string      `json:"email" validate:"required,email"`
	Role            domain.Role `json:"role" validate:"omitempty,role"`
	DepartmentID    string      `json:"department_id"`
	Password        string      `json:"password" validate:"omitempty,min=6"`
	ConfirmPassword string      `json:"confirm_password" validate:"omitempty,eqfield=Password"`
}

// UserListFilter narrows a user listing.
type UserListFilter struct {
	Role         domain.Role
	DepartmentID string
	Search       string
	Page         int
}

// UserDependencies wires the user service.
type UserDependencies struct {
	UserRepo       repository.UserRepository
	DepartmentRepo repository.DepartmentRepository
	Events         events.Dispatcher
	Logger         *zap.Logger
}

// UserService manages accounts on behalf of admins.
type UserService struct {
	users       repository.UserRepository
	departments repository.DepartmentRepository
	events      events.Dispatcher
	logger      *zap.Logger
	bcryptCost  int
}

// NewUserService constructs the service.
func NewUserService(cfg config.Config, deps UserDependencies) *UserService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		users:       deps.UserRepo,
		departments: deps.DepartmentRepo,
		events:      deps.Events,
		logger:      logger,
		bcryptCost:  cfg.Auth.BcryptCost,
	}
}

// Create adds an account. Department admins may only add students to their
// own department.
func (s *UserService) Create(ctx context.Context, actor *domain.Actor, input CreateUserInput) (*domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	input.Name = trim(input.Name)
	input.Username = trim(input.Username)
	input.Email = trim(input.Email)
	input.DepartmentID = trim(input.DepartmentID)
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if err := authorize(access.Request{
		Actor:      actor,
		Kind:       access.KindUser,
		Department: input.DepartmentID,
		Op:         access.OpCreate,
		TargetRole: input.Role,
	}); err != nil {
		return nil, err
	}
	if err := s.ensureDepartment(ctx, input.Role, input.DepartmentID); err != nil {
		return nil, err
	}

	exists, err := s.users.ExistsByUsernameOrEmail(ctx, input.Username, input.Email, "")
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if exists {
		return nil, duplicateUser(input.Username, input.Email)
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	user := &domain.User{
		Name:         input.Name,
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: hash,
		Role:         input.Role,
		DepartmentID: optional(input.DepartmentID),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, writeError(err, "user", duplicateUser(user.Username, user.Email))
	}

	publish(ctx, s.events, s.logger, events.New(events.EventUserCreated, user.ID, actor, events.UserCreatedPayload{
		Name:         user.Name,
		Username:     user.Username,
		Email:        user.Email,
		Role:         user.Role,
		DepartmentID: user.Department(),
	}))
	return user, nil
}

// ensureDepartment requires an existing department for every role except
// super admin, for which it is optional.
func (s *UserService) ensureDepartment(ctx context.Context, role domain.Role, departmentID string) error {
	if departmentID == "" {
		if role == domain.RoleSuperAdmin {
			return nil
		}
		return apperrors.NewValidationError("department_id is required",
			map[string]any{"department_id": "is required"})
	}
	if _, err := s.departments.GetByID(ctx, departmentID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewValidationError("Department not found",
				map[string]any{"department_id": departmentID})
		}
		return apperrors.MapError(err)
	}
	return nil
}

// Get returns one account with its department name.
func (s *UserService) Get(ctx context.Context, actor *domain.Actor, id string) (*domain.UserView, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "user")
	}
	if err := authorize(userRequest(actor, user, access.OpRead)); err != nil {
		return nil, err
	}
	return s.view(ctx, user)
}

func (s *UserService) view(ctx context.Context, user *domain.User) (*domain.UserView, error) {
	view := &domain.UserView{User: *user}
	if user.DepartmentID == nil {
		return view, nil
	}
	dept, err := s.departments.GetByID(ctx, *user.DepartmentID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}
	if dept != nil {
		view.DepartmentName = dept.Name
	}
	return view, nil
}

// List pages through accounts. Department admins only ever see the students
// of their own department, whatever filter they pass.
func (s *UserService) List(ctx context.Context, actor *domain.Actor, filter UserListFilter) (Page[domain.UserView], error) {
	if err := requireAdmin(actor); err != nil {
		return Page[domain.UserView]{}, err
	}
	query := repository.UserFilter{
		Role:         filter.Role,
		DepartmentID: trim(filter.DepartmentID),
		Search:       filter.Search,
		Sort:         repository.Sort{Field: "createdAt", Direction: repository.SortDesc},
		Page:         repository.NormalizePage(filter.Page),
	}
	if actor.Role == domain.RoleDeptAdmin {
		query.DepartmentID = actor.DepartmentID
		query.Role = domain.RoleStudent
	}

	items, total, err := s.users.List(ctx, query)
	if err != nil {
		return Page[domain.UserView]{}, apperrors.MapError(err)
	}
	return newPage(items, total, query.Page), nil
}

// Update edits an account. The gate uses the stored department and role;
// role and department changes from anyone but a super admin are ignored.
func (s *UserService) Update(ctx context.Context, actor *domain.Actor, id string, input UpdateUserInput) (*domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "user")
	}
	if err := authorize(userRequest(actor, user, access.OpUpdate)); err != nil {
		return nil, err
	}

	input.Name = trim(input.Name)
	input.Email = trim(input.Email)
	input.DepartmentID = trim(input.DepartmentID)
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if input.Password != "" && input.Password != input.ConfirmPassword {
		return nil, apperrors.NewValidationError("Passwords do not match",
			map[string]any{"confirm_password": "does not match"})
	}

	exists, err := s.users.ExistsByUsernameOrEmail(ctx, "", input.Email, user.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if exists {
		return nil, emailInUse(input.Email)
	}

	if actor.Role == domain.RoleSuperAdmin {
		role := user.Role
		if input.Role != "" {
			role = input.Role
		}
		deptID := user.Department()
		if input.DepartmentID != "" || input.Role != "" {
			deptID = input.DepartmentID
		}
		if err := s.ensureDepartment(ctx, role, deptID); err != nil {
			return nil, err
		}
		user.Role = role
		user.DepartmentID = optional(deptID)
	}

	user.Name = input.Name
	user.Email = input.Email
	if input.Password != "" {
		hash, err := auth.HashPassword(input.Password, s.bcryptCost)
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		user.PasswordHash = hash
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, writeError(err, "user", emailInUse(user.Email))
	}
	publish(ctx, s.events, s.logger, events.New(events.EventUserUpdated, user.ID, actor,
		events.UserChangedPayload{Role: user.Role, DepartmentID: user.Department()}))
	return user, nil
}

// Delete removes an account under the same scope rules as Update.
func (s *UserService) Delete(ctx context.Context, actor *domain.Actor, id string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return lookupError(err, "user")
	}
	if err := authorize(userRequest(actor, user, access.OpDelete)); err != nil {
		return err
	}
	if err := s.users.Delete(ctx, user.ID); err != nil {
		return lookupError(err, "user")
	}
	publish(ctx, s.events, s.logger, events.New(events.EventUserDeleted, user.ID, actor,
		events.UserChangedPayload{Role: user.Role, DepartmentID: user.Department()}))
	return nil
}

func userRequest(actor *domain.Actor, target *domain.User, op access.Operation) access.Request {
	return access.Request{
		Actor:      actor,
		Kind:       access.KindUser,
		Department: target.Department(),
		Op:         op,
		TargetRole: target.Role,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func duplicateUser(username, email string) error {
	return apperrors.NewValidationError("User already exists with that email or username",
		map[string]any{"username": username, "email": email})
}

func emailInUse(email string) error {
	return apperrors.NewValidationError("Email is already in use", map[string]any{"email": email})
}
