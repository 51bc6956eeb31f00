package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/notification-service/internal/api/http/handlers"
	"github.com/spec-kit/notification-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Dashboard      *handlers.DashboardHandler
	Departments    *handlers.DepartmentsHandler
	Users          *handlers.UsersHandler
	Notifications  *handlers.NotificationsHandler
	Uploads        *handlers.UploadsHandler
	UploadsPrefix  string
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	if cfg.Uploads != nil {
		prefix := cfg.UploadsPrefix
		if prefix == "" {
			prefix = "/uploads"
		}
		app.Get(prefix+"/*", cfg.Uploads.Serve)
	}

	authGroup := app.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/password/forgot", cfg.Auth.ForgotPassword)
	authGroup.Post("/password/reset/:token", cfg.Auth.ResetPassword)

	protected := app.Group("", cfg.AuthMiddleware.Handle, auth.RequireRole())
	protected.Get("/me", cfg.Auth.Me)
	protected.Put("/me", cfg.Auth.UpdateMe)
	protected.Post("/me/password", cfg.Auth.ChangePassword)
	protected.Get("/dashboard", cfg.Dashboard.Show)

	departments := protected.Group("/departments")
	departments.Get("/", cfg.Departments.List)
	departments.Post("/", auth.RequireSuperAdmin(), cfg.Departments.Create)
	departments.Get("/:id", cfg.Departments.Get)
	departments.Get("/:id/data", auth.RequireAdmin(), cfg.Departments.Data)
	departments.Put("/:id", auth.RequireSuperAdmin(), cfg.Departments.Update)
	departments.Delete("/:id", auth.RequireSuperAdmin(), cfg.Departments.Delete)

	users := protected.Group("/users", auth.RequireAdmin())
	users.Get("/", cfg.Users.List)
	users.Post("/", cfg.Users.Create)
	users.Get("/:id", cfg.Users.Get)
	users.Put("/:id", cfg.Users.Update)
	users.Delete("/:id", cfg.Users.Delete)

	notifications := protected.Group("/notifications")
	notifications.Get("/", auth.RequireAdmin(), cfg.Notifications.List)
	notifications.Get("/feed", cfg.Notifications.Feed)
	notifications.Post("/", auth.RequireAdmin(), cfg.Notifications.Create)
	notifications.Get("/:id", cfg.Notifications.Get)
	notifications.Put("/:id", auth.RequireAdmin(), cfg.Notifications.Update)
	notifications.Delete("/:id", auth.RequireAdmin(), cfg.Notifications.Delete)
	notifications.Get("/:id/dispatch", auth.RequireAdmin(), cfg.Notifications.Dispatch)
}
