package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grievance-desk/sla-service/internal/domain"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 15)
	role := domain.StaffRoleAdmin

	token, expiresAt, err := tm.GenerateToken("staff-1", domain.SubjectTypeStaff, &role)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, 5*time.Second)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "staff-1", claims.SubjectID)
	assert.Equal(t, domain.SubjectTypeStaff, claims.Subject)
	require.NotNil(t, claims.Role)
	assert.Equal(t, domain.StaffRoleAdmin, *claims.Role)
}

func TestTokenManager_Expired(t *testing.T) {
	tm := NewTokenManager("secret", 1)
	issued := time.Date(2026, 10, 12, 9, 0, 0, 0, time.UTC)
	tm.now = func() time.Time { return issued }

	token, _, err := tm.GenerateToken("emp-1", domain.SubjectTypeUser, nil)
	require.NoError(t, err)

	tm.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = tm.ParseToken(token)
	assert.Error(t, err)
}

func TestTokenManager_WrongSecret(t *testing.T) {
	token, _, err := NewTokenManager("secret", 5).GenerateToken("emp-1", domain.SubjectTypeUser, nil)
	require.NoError(t, err)

	_, err = NewTokenManager("other", 5).ParseToken(token)
	assert.Error(t, err)
}

func TestTokenManager_Garbage(t *testing.T) {
	_, err := NewTokenManager("secret", 5).ParseToken("not-a-jwt")
	assert.Error(t, err)
}
