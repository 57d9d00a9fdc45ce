package auth

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	svc := NewJWTService("secret", 1)
	id := uuid.New()

	token, err := svc.Generate(id, "ops@example.com", RoleAdmin)
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, id, claims.UserID)
	assert.Equal(t, "ops@example.com", claims.Email)
	assert.Equal(t, RoleAdmin, claims.Role)
}

func TestValidateRejects(t *testing.T) {
	svc := NewJWTService("secret", 1)
	good, err := svc.Generate(uuid.New(), "ops@example.com", RoleAdmin)
	require.NoError(t, err)

	other, err := NewJWTService("other-secret", 1).Generate(uuid.New(), "x@example.com", RoleAdmin)
	require.NoError(t, err)

	expired, err := NewJWTService("secret", -1).Generate(uuid.New(), "x@example.com", RoleAdmin)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: uuid.New(), Role: RoleAdmin}).SignedString([]byte("secret"))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage":      "not.a.token",
		"wrong secret": other,
		"expired":      expired,
		"no expiry":    noExpiry,
		"tampered":     good + "x",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Validate(token)
			require.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
