package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grievance-desk/sla-service/internal/domain"
	"github.com/grievance-desk/sla-service/pkg/util"
)

func newAuthApp(tm *TokenManager, guards ...fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.SendStatus(util.ToDomainError(err).HTTPStatus)
		},
	})
	handlers := append([]fiber.Handler{NewAuthMiddleware(tm).Handle}, guards...)
	handlers = append(handlers, func(c *fiber.Ctx) error {
		p, _ := PrincipalFromContext(c)
		return c.SendString(p.SubjectID)
	})
	app.Get("/", handlers...)
	return app
}

func bearer(t *testing.T, tm *TokenManager, subject domain.SubjectType, role *domain.StaffRole) string {
	t.Helper()
	token, _, err := tm.GenerateToken("id-1", subject, role)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestAuthMiddleware(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	admin := domain.StaffRoleAdmin
	agent := domain.StaffRoleAgent

	tests := []struct {
		name   string
		header string
		guards []fiber.Handler
		want   int
	}{
		{"missing header", "", nil, http.StatusUnauthorized},
		{"malformed header", "Token abc", nil, http.StatusUnauthorized},
		{"bad token", "Bearer abc", nil, http.StatusUnauthorized},
		{"user token", bearer(t, tm, domain.SubjectTypeUser, nil), nil, http.StatusOK},
		{"staff without role", bearer(t, tm, domain.SubjectTypeStaff, nil), nil, http.StatusUnauthorized},
		{"user on staff route", bearer(t, tm, domain.SubjectTypeUser, nil), []fiber.Handler{RequireStaffRole()}, http.StatusForbidden},
		{"agent on admin route", bearer(t, tm, domain.SubjectTypeStaff, &agent), []fiber.Handler{RequireStaffRole(domain.StaffRoleAdmin)}, http.StatusForbidden},
		{"admin on admin route", bearer(t, tm, domain.SubjectTypeStaff, &admin), []fiber.Handler{RequireStaffRole(domain.StaffRoleAdmin)}, http.StatusOK},
		{"any role", bearer(t, tm, domain.SubjectTypeUser, nil), []fiber.Handler{RequireAnyRole()}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newAuthApp(tm, tt.guards...)
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}
