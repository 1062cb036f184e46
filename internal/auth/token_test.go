package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/leave-service/internal/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour)

	raw, meta, err := tm.GenerateToken("emp-1", domain.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, meta.Role)
	assert.WithinDuration(t, meta.IssuedAt.Add(time.Hour), meta.ExpiresAt, time.Second)

	claims, err := tm.ParseToken(raw)
	require.NoError(t, err)
	assert.Equal(t, "emp-1", claims.SubjectID)
	assert.Equal(t, domain.RoleAdmin, claims.Role)
}

func TestTokenRejectsOtherSecret(t *testing.T) {
	raw, _, err := NewTokenManager("a", time.Hour).GenerateToken("emp-1", domain.RoleEmployee)
	require.NoError(t, err)

	_, err = NewTokenManager("b", time.Hour).ParseToken(raw)
	assert.Error(t, err)
}

func TestTokenExpires(t *testing.T) {
	tm := NewTokenManager("secret", time.Minute)
	issued := time.Now().Add(-2 * time.Minute)
	tm.now = func() time.Time { return issued }
	raw, _, err := tm.GenerateToken("emp-1", domain.RoleEmployee)
	require.NoError(t, err)

	tm.now = time.Now
	_, err = tm.ParseToken(raw)
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hashed, err := HashPassword("s3cret", 4)
	require.NoError(t, err)
	assert.NoError(t, ComparePassword(hashed, "s3cret"))
	assert.Error(t, ComparePassword(hashed, "wrong"))
}
