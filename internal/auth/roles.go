package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Role labels what a back-office actor may do.
type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleDispatcher Role = "DISPATCHER"
	RoleViewer     Role = "VIEWER"
)

// ValidRole reports whether the role is one of the known roles.
func ValidRole(role Role) bool {
	switch role {
	case RoleAdmin, RoleDispatcher, RoleViewer:
		return true
	}
	return false
}

// RequireRole ensures the principal holds one of the allowed roles.
func RequireRole(allowed ...Role) fiber.Handler {
	allowedSet := make(map[Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[principal.Role]; !exists {
			return fiber.NewError(http.StatusForbidden, "insufficient role")
		}
		return c.Next()
	}
}
