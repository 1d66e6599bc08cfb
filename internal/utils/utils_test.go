package utils

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	t.Parallel()

	tok, err := NewAccessToken("secret", 42, "ADMIN", 5)
	require.NoError(t, err)
	assert.NotEmpty(t, tok.Token)

	claims, err := ParseAccessToken("secret", tok.Token)
	require.NoError(t, err)
	assert.Equal(t, Claims{UserID: 42, Role: "ADMIN"}, claims)
}

func TestParseAccessTokenRejects(t *testing.T) {
	t.Parallel()

	tok, err := NewAccessToken("secret", 1, "STUDENT", 5)
	require.NoError(t, err)
	_, err = ParseAccessToken("other", tok.Token)
	assert.Error(t, err)

	expired, err := NewAccessToken("secret", 1, "STUDENT", -5)
	require.NoError(t, err)
	_, err = ParseAccessToken("secret", expired.Token)
	assert.Error(t, err)

	noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"role": "STUDENT"}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = ParseAccessToken("secret", noSub)
	assert.Error(t, err)
}

func TestPassword(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("hunter2", bcrypt.MinCost)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(hash, "hunter2"))
	assert.False(t, VerifyPassword(hash, "hunter3"))
	assert.False(t, VerifyPassword("not-a-hash", "hunter2"))
}

func TestHashPasswordRejectsBlankAndClampsCost(t *testing.T) {
	t.Parallel()

	_, err := HashPassword("   ", bcrypt.MinCost)
	assert.ErrorIs(t, err, ErrEmptyPassword)

	hash, err := HashPassword("hunter2", 99)
	require.NoError(t, err)
	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, cost)
}
