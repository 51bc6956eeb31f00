package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/notification-service/internal/auth"
	"github.com/spec-kit/notification-service/internal/config"
	"github.com/spec-kit/notification-service/internal/domain"
	"github.com/spec-kit/notification-service/internal/events"
	"github.com/spec-kit/notification-service/internal/mail"
	"github.com/spec-kit/notification-service/internal/repository"
	apperrors "github.com/spec-kit/notification-service/pkg/util/errorutil"
)

const resetSubject = "Password reset token"

// LoginInput accepts a username or an email as Login.
type LoginInput struct {
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ResetPasswordInput consumes a reset token.
type ResetPasswordInput struct {
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

// ProfileInput is the self-service profile edit.
type ProfileInput struct {
	Name  string `json:"name" validate:"required,max=100"`
	Email string `json:"email" validate:"required,email"`
}

// ChangePasswordInput changes the caller's own password.
type ChangePasswordInput struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=NewPassword"`
}

// Session is the result of a successful login.
type Session struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	UserRepo       repository.UserRepository
	DepartmentRepo repository.DepartmentRepository
	Mailer         mail.Transport
	Events         events.Dispatcher
	Logger         *zap.Logger
}

// AuthService coordinates login, password reset and self-service flows.
type AuthService struct {
	users       repository.UserRepository
	departments repository.DepartmentRepository
	mailer      mail.Transport
	events      events.Dispatcher
	logger      *zap.Logger
	tokenMgr    *auth.TokenManager
	bcryptCost  int
	resetTTL    time.Duration
	baseURL     string
	from        mail.Address
	now         func() time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:       deps.UserRepo,
		departments: deps.DepartmentRepo,
		mailer:      deps.Mailer,
		events:      deps.Events,
		logger:      logger,
		tokenMgr:    auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		bcryptCost:  cfg.Auth.BcryptCost,
		resetTTL:    time.Duration(cfg.Auth.PasswordResetTTLMinutes) * time.Minute,
		baseURL:     cfg.App.BaseURL,
		from:        mail.Address{Name: cfg.Mail.FromName, Email: cfg.Mail.FromAddress},
		now:         time.Now,
	}
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

// Login authenticates by username or email. Unknown accounts and wrong
// passwords fail the same way.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*Session, error) {
	input.Login = trim(input.Login)
	if err := validateInput(input); err != nil {
		return nil, err
	}
	user, err := s.users.GetByLogin(ctx, input.Login)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewUnauthorized("Invalid credentials")
	}
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, input.Password); err != nil {
		return nil, apperrors.NewUnauthorized("Invalid credentials")
	}

	token, exp, err := s.tokenMgr.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &Session{User: user, Token: token, ExpiresAt: exp}, nil
}

// ForgotPassword stores a hashed single-use token on the account and emails
// the reset link. If the email cannot be sent the token is cleared again.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = trim(email)
	if email == "" {
		return apperrors.NewValidationError("email is required", map[string]any{"email": "is required"})
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return lookupError(err, "user")
	}

	raw, hash, err := auth.NewResetToken()
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	expiry := s.now().Add(s.resetTTL)
	user.ResetTokenHash = &hash
	user.ResetTokenExpiry = &expiry
	if err := s.users.Update(ctx, user); err != nil {
		return apperrors.MapError(err)
	}

	link := fmt.Sprintf("%s/auth/password/reset/%s", s.baseURL, raw)
	msg := mail.Message{
		From:    s.from,
		To:      mail.Address{Name: user.Name, Email: user.Email},
		Subject: resetSubject,
		TextBody: "You are receiving this email because a password reset was requested for your account.\n\n" +
			"Open the following link to choose a new password. It expires in " +
			s.resetTTL.String() + ".\n\n" + link + "\n\nIf you did not request this, ignore this email.",
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Error("send password reset email", zap.String("user_id", user.ID), zap.Error(err))
		user.ResetTokenHash = nil
		user.ResetTokenExpiry = nil
		if clearErr := s.users.Update(ctx, user); clearErr != nil {
			s.logger.Error("clear password reset token", zap.String("user_id", user.ID), zap.Error(clearErr))
		}
		return apperrors.NewInternalError(fmt.Errorf("email could not be sent: %w", err))
	}
	return nil
}

// ResetPassword consumes a reset token and sets the new password.
func (s *AuthService) ResetPassword(ctx context.Context, token string, input ResetPasswordInput) error {
	if err := validateInput(input); err != nil {
		return err
	}
	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	user, err := s.users.ConsumeResetToken(ctx, auth.HashResetToken(trim(token)), hash, s.now())
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewValidationError("Invalid or expired token", nil)
	}
	if err != nil {
		return apperrors.MapError(err)
	}

	publish(ctx, s.events, s.logger, events.New(events.EventPasswordReset, user.ID, user.Actor(),
		events.UserChangedPayload{Role: user.Role, DepartmentID: user.Department()}))
	return nil
}

// Profile returns the caller's own account.
func (s *AuthService) Profile(ctx context.Context, actor *domain.Actor) (*domain.UserView, error) {
	user, err := s.self(ctx, actor)
	if err != nil {
		return nil, err
	}
	view := &domain.UserView{User: *user}
	if user.DepartmentID != nil {
		dept, err := s.departments.GetByID(ctx, *user.DepartmentID)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.MapError(err)
		}
		if dept != nil {
			view.DepartmentName = dept.Name
		}
	}
	return view, nil
}

// UpdateProfile edits the caller's name and email. The email stays unique.
func (s *AuthService) UpdateProfile(ctx context.Context, actor *domain.Actor, input ProfileInput) (*domain.User, error) {
	user, err := s.self(ctx, actor)
	if err != nil {
		return nil, err
	}
	input.Name = trim(input.Name)
	input.Email = trim(input.Email)
	if err := validateInput(input); err != nil {
		return nil, err
	}

	exists, err := s.users.ExistsByUsernameOrEmail(ctx, "", input.Email, user.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if exists {
		return nil, emailInUse(input.Email)
	}

	user.Name = input.Name
	user.Email = input.Email
	if err := s.users.Update(ctx, user); err != nil {
		return nil, writeError(err, "user", emailInUse(user.Email))
	}
	return user, nil
}

// ChangePassword verifies the current password before storing the new one.
func (s *AuthService) ChangePassword(ctx context.Context, actor *domain.Actor, input ChangePasswordInput) error {
	user, err := s.self(ctx, actor)
	if err != nil {
		return err
	}
	if err := validateInput(input); err != nil {
		return err
	}
	if err := auth.ComparePassword(user.PasswordHash, input.CurrentPassword); err != nil {
		return apperrors.NewValidationError("Current password is incorrect",
			map[string]any{"current_password": "is incorrect"})
	}

	hash, err := auth.HashPassword(input.NewPassword, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	user.PasswordHash = hash
	if err := s.users.Update(ctx, user); err != nil {
		return lookupError(err, "user")
	}
	return nil
}

func (s *AuthService) self(ctx context.Context, actor *domain.Actor) (*domain.User, error) {
	if !actor.Authenticated() {
		return nil, apperrors.NewUnauthorized("not authenticated")
	}
	user, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, lookupError(err, "user")
	}
	return user, nil
}
