package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(expiry time.Duration) *JWTManager {
	return NewJWTManager(&JWTConfig{
		Secret:            "test-secret",
		AccessTokenExpiry: expiry,
		Issuer:            "ragpdf-test",
	})
}

func TestJWTManager_RoundTrip(t *testing.T) {
	m := newTestManager(time.Minute)
	userID := uuid.New()
	orgID := uuid.New()

	token, expiresAt, err := m.GenerateAccessToken(userID, orgID, "dev@example.com", "admin")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), expiresAt, 5*time.Second)

	claims, err := m.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, orgID, claims.OrgID)
	assert.Equal(t, "dev@example.com", claims.Email)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "ragpdf-test", claims.Issuer)
}

func TestJWTManager_RejectsExpiredToken(t *testing.T) {
	m := newTestManager(-time.Minute)
	token, _, err := m.GenerateAccessToken(uuid.New(), uuid.New(), "dev@example.com", "member")
	require.NoError(t, err)

	_, err = m.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTManager_RejectsWrongSecret(t *testing.T) {
	m := newTestManager(time.Minute)
	token, _, err := m.GenerateAccessToken(uuid.New(), uuid.New(), "dev@example.com", "member")
	require.NoError(t, err)

	other := NewJWTManager(&JWTConfig{Secret: "other-secret", AccessTokenExpiry: time.Minute, Issuer: "ragpdf-test"})
	_, err = other.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTManager_RejectsMissingOrg(t *testing.T) {
	m := newTestManager(time.Minute)
	token, _, err := m.GenerateAccessToken(uuid.New(), uuid.Nil, "dev@example.com", "member")
	require.NoError(t, err)

	_, err = m.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidTokenClaims)
}
