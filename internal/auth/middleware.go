package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/grievance-desk/sla-service/internal/domain"
	"github.com/grievance-desk/sla-service/pkg/util"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller as asserted by its token.
type Principal struct {
	SubjectID   string
	SubjectType domain.SubjectType
	Role        *domain.StaffRole
}

// IsStaff reports whether the caller is a staff member.
func (p *Principal) IsStaff() bool {
	return p != nil && p.SubjectType == domain.SubjectTypeStaff
}

// HasRole reports whether the caller is staff with one of roles.
func (p *Principal) HasRole(roles ...domain.StaffRole) bool {
	if !p.IsStaff() || p.Role == nil {
		return false
	}
	for _, role := range roles {
		if *p.Role == role {
			return true
		}
	}
	return false
}

// AuthMiddleware validates bearer tokens.
type AuthMiddleware struct {
	tokens *TokenManager
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return util.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return util.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(strings.TrimSpace(parts[1]))
	if err != nil {
		return util.NewUnauthorized("invalid token")
	}

	switch claims.Subject {
	case domain.SubjectTypeUser, domain.SubjectTypeStaff:
	default:
		return util.NewUnauthorized("unknown subject")
	}
	if claims.Subject == domain.SubjectTypeStaff && claims.Role == nil {
		return util.NewUnauthorized("staff token without role")
	}

	c.Locals(principalKey, &Principal{
		SubjectID:   claims.SubjectID,
		SubjectType: claims.Subject,
		Role:        claims.Role,
	})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
