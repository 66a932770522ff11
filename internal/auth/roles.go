package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/grievance-desk/sla-service/internal/domain"
	"github.com/grievance-desk/sla-service/pkg/util"
)

// RequireStaffRole ensures the staff principal has one of the allowed roles.
// With no roles any staff member passes.
func RequireStaffRole(allowed ...domain.StaffRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || !principal.IsStaff() {
			return util.NewForbidden("staff role required")
		}
		if len(allowed) == 0 {
			return c.Next()
		}
		if !principal.HasRole(allowed...) {
			return util.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}

// RequireAnyRole ensures caller is authenticated (user or staff).
func RequireAnyRole() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return util.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}
