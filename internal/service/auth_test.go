package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainfeed/gateway/internal/models"
)

func signTestToken(t *testing.T, secret string, claims AdminClaims) string {
	t.Helper()

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestValidateTokenRoundTrip(t *testing.T) {
	svc := NewAuthService(nil, "test-secret", 1)

	token := signTestToken(t, "test-secret", AdminClaims{
		Email: "ops@chainfeed.io",
		Role:  models.RoleViewer,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "account-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops@chainfeed.io", claims.Email)
	assert.Equal(t, models.RoleViewer, claims.Role)
	assert.Equal(t, "account-1", claims.Subject)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	svc := NewAuthService(nil, "test-secret", 1)

	token := signTestToken(t, "test-secret", AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})

	_, err := svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	svc := NewAuthService(nil, "test-secret", 1)

	token := signTestToken(t, "other-secret", AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	_, err := svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc := NewAuthService(nil, "test-secret", 1)

	_, err := svc.ValidateToken("not-a-token")
	assert.Error(t, err)
}
