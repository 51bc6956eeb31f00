// Command superadmin creates the super-admin account, or resets its password
// when -reset is given.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/notification-service/internal/auth"
	"github.com/spec-kit/notification-service/internal/config"
	"github.com/spec-kit/notification-service/internal/domain"
	"github.com/spec-kit/notification-service/internal/observability"
	"github.com/spec-kit/notification-service/internal/persistence"
	"github.com/spec-kit/notification-service/internal/repository"
)

func main() {
	name := flag.String("name", "Super Admin", "display name")
	username := flag.String("username", "superadmin", "login username")
	email := flag.String("email", "", "account email")
	password := flag.String("password", "", "account password (required)")
	reset := flag.Bool("reset", false, "reset the password of an existing account")
	flag.Parse()

	if strings.TrimSpace(*password) == "" {
		log.Fatal("-password is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	users := repository.NewUserRepository(pg.PoolHandle())
	hash, err := auth.HashPassword(*password, cfg.Auth.BcryptCost)
	if err != nil {
		logger.Fatal("failed to hash password", zap.Error(err))
	}

	existing, err := users.GetByLogin(ctx, *username)
	switch {
	case err == nil && *reset:
		existing.PasswordHash = hash
		existing.ResetTokenHash = nil
		existing.ResetTokenExpiry = nil
		if err := users.Update(ctx, existing); err != nil {
			logger.Fatal("failed to reset password", zap.Error(err))
		}
		logger.Info("super admin password reset", zap.String("username", existing.Username))
	case err == nil:
		logger.Info("super admin already exists", zap.String("username", existing.Username))
	case !errors.Is(err, pgx.ErrNoRows):
		logger.Fatal("failed to look up super admin", zap.Error(err))
	case *reset:
		logger.Fatal("super admin not found", zap.String("username", *username))
	default:
		if *email == "" {
			logger.Fatal("-email is required when creating the account")
		}
		user := &domain.User{
			Name:         *name,
			Username:     *username,
			Email:        strings.ToLower(*email),
			PasswordHash: hash,
			Role:         domain.RoleSuperAdmin,
		}
		if err := users.Create(ctx, user); err != nil {
			logger.Fatal("failed to create super admin", zap.Error(err))
		}
		logger.Info("super admin created", zap.String("id", user.ID), zap.String("username", user.Username))
	}
}
