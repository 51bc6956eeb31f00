package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/notification-service/internal/api/http"
	"github.com/spec-kit/notification-service/internal/api/http/handlers"
	"github.com/spec-kit/notification-service/internal/auth"
	"github.com/spec-kit/notification-service/internal/config"
	"github.com/spec-kit/notification-service/internal/events"
	"github.com/spec-kit/notification-service/internal/mail"
	"github.com/spec-kit/notification-service/internal/notify"
	"github.com/spec-kit/notification-service/internal/observability"
	"github.com/spec-kit/notification-service/internal/persistence"
	"github.com/spec-kit/notification-service/internal/repository"
	"github.com/spec-kit/notification-service/internal/service"
	"github.com/spec-kit/notification-service/internal/storage"
	"github.com/spec-kit/notification-service/internal/worker"
)

// multipart framing on top of the largest allowed attachment
const bodyOverhead = 1 << 20

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
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

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	attachments, err := storage.New(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatal("failed to init attachment storage", zap.Error(err))
	}

	pool := pg.PoolHandle()
	departmentRepo := repository.NewDepartmentRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)

	metrics := observability.NewMetrics()
	bus := events.NewInMemoryDispatcher()
	transport := mail.NewTransport(cfg.Mail, logger)
	from := mail.Address{Name: cfg.Mail.FromName, Email: cfg.Mail.FromAddress}
	reports := notify.NewRedisReportStore(redis.Client, cfg.Redis.ReportTTL())

	dispatcher := notify.NewDispatcher(notify.DispatcherDependencies{
		Transport:      transport,
		Composer:       notify.NewComposer(from, cfg.App.BaseURL),
		Attachments:    attachments,
		Recorder:       metrics,
		Logger:         logger,
		MaxConcurrency: cfg.Mail.MaxConcurrency,
		SendTimeout:    cfg.Mail.SendTimeout(),
	})

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:       userRepo,
		DepartmentRepo: departmentRepo,
		Mailer:         transport,
		Events:         bus,
		Logger:         logger,
	})
	departmentService := service.NewDepartmentService(service.DepartmentDependencies{
		DepartmentRepo:   departmentRepo,
		UserRepo:         userRepo,
		NotificationRepo: notificationRepo,
		Events:           bus,
		Logger:           logger,
	})
	userService := service.NewUserService(*cfg, service.UserDependencies{
		UserRepo:       userRepo,
		DepartmentRepo: departmentRepo,
		Events:         bus,
		Logger:         logger,
	})
	notificationService := service.NewNotificationService(service.NotificationDependencies{
		NotificationRepo: notificationRepo,
		DepartmentRepo:   departmentRepo,
		Attachments:      attachments,
		Resolver:         notify.NewResolver(userRepo),
		Dispatcher:       dispatcher,
		Reports:          reports,
		Events:           bus,
		Logger:           logger,
	})
	dashboardService := service.NewDashboardService(service.DashboardDependencies{
		DepartmentRepo:   departmentRepo,
		UserRepo:         userRepo,
		NotificationRepo: notificationRepo,
		Logger:           logger,
	})

	worker.StartNotificationWorker(worker.NewNotificationWorker(worker.Dependencies{
		Events:  bus,
		Reports: reports,
		Mailer:  transport,
		From:    from,
		BaseURL: cfg.App.BaseURL,
		Logger:  logger,
	}))

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo)

	app := fiber.New(fiber.Config{
		AppName:   cfg.App.Name,
		BodyLimit: int(cfg.Storage.MaxUploadBytes) + bodyOverhead,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, metrics),
		Auth:           handlers.NewAuthHandler(authService),
		Dashboard:      handlers.NewDashboardHandler(dashboardService),
		Departments:    handlers.NewDepartmentsHandler(departmentService),
		Users:          handlers.NewUsersHandler(userService),
		Notifications:  handlers.NewNotificationsHandler(notificationService),
		Uploads:        handlers.NewUploadsHandler(attachments, cfg.Storage.PublicPrefix),
		UploadsPrefix:  cfg.Storage.PublicPrefix,
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
