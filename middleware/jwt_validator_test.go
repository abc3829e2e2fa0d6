package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/storyverse/ai-gateway/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signedToken(t *testing.T, secret, issuer, sub string, expiresIn time.Duration) string {
	t.Helper()
	c := Claims{Email: "author@example.com"}
	c.Subject = sub
	c.Issuer = issuer
	c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(expiresIn))
	token, err := SignToken(secret, c)
	require.NoError(t, err)
	return token
}

func TestJWTValidator_ValidateToken(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("valid token", func(t *testing.T) {
		v := NewJWTValidator(testSecret, "")
		claims, err := v.ValidateToken(ctx, signedToken(t, testSecret, "", userID.String(), time.Hour))
		require.NoError(t, err)

		got, err := claims.UserID()
		require.NoError(t, err)
		assert.Equal(t, userID, got)
		assert.Equal(t, "author@example.com", claims.Email)
	})

	t.Run("issuer must match when configured", func(t *testing.T) {
		v := NewJWTValidator(testSecret, "storyverse")

		_, err := v.ValidateToken(ctx, signedToken(t, testSecret, "storyverse", userID.String(), time.Hour))
		assert.NoError(t, err)

		_, err = v.ValidateToken(ctx, signedToken(t, testSecret, "someone-else", userID.String(), time.Hour))
		assert.ErrorIs(t, err, services.ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		v := NewJWTValidator(testSecret, "")
		_, err := v.ValidateToken(ctx, signedToken(t, "other", "", userID.String(), time.Hour))
		assert.True(t, services.IsUnauthorizedError(err))
	})

	t.Run("expired", func(t *testing.T) {
		v := NewJWTValidator(testSecret, "")
		_, err := v.ValidateToken(ctx, signedToken(t, testSecret, "", userID.String(), -time.Minute))
		assert.Same(t, services.ErrTokenExpired, err)
	})

	t.Run("missing expiry", func(t *testing.T) {
		c := Claims{}
		c.Subject = userID.String()
		token, err := SignToken(testSecret, c)
		require.NoError(t, err)

		_, err = NewJWTValidator(testSecret, "").ValidateToken(ctx, token)
		assert.Error(t, err)
	})

	t.Run("other signing method", func(t *testing.T) {
		c := Claims{}
		c.Subject = userID.String()
		c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, c).SignedString([]byte(testSecret))
		require.NoError(t, err)

		_, err = NewJWTValidator(testSecret, "").ValidateToken(ctx, token)
		assert.Error(t, err)
	})

	t.Run("no secret configured", func(t *testing.T) {
		_, err := NewJWTValidator("", "").ValidateToken(ctx, "anything")
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := NewJWTValidator(testSecret, "").ValidateToken(ctx, "not.a.jwt")
		assert.Error(t, err)
	})
}

func TestClaims_UserID(t *testing.T) {
	_, err := (&Claims{}).UserID()
	assert.EqualError(t, err, "missing sub claim")

	_, err = claimsFor("abc").UserID()
	assert.Error(t, err)
}
