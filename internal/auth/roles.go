package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/notification-service/internal/domain"
	apperrors "github.com/spec-kit/notification-service/pkg/util/errorutil"
)

// RequireRole ensures the authenticated user has one of the allowed roles.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		actor := ActorFromContext(c)
		if !actor.Authenticated() {
			return apperrors.NewUnauthorized("not authenticated")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[actor.Role]; !exists {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}

// RequireAdmin admits department and super admins.
func RequireAdmin() fiber.Handler {
	return RequireRole(domain.RoleDeptAdmin, domain.RoleSuperAdmin)
}

// RequireSuperAdmin admits super admins only.
func RequireSuperAdmin() fiber.Handler {
	return RequireRole(domain.RoleSuperAdmin)
}
