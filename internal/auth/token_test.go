package auth_test

import (
	"testing"
	"time"

	"github.com/BradenHooton/warden/internal/auth"
	"github.com/BradenHooton/warden/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-32-characters-long!!"

func TestAccessToken_RoundTrip(t *testing.T) {
	tm := auth.NewTokenManager(testSecret, 15*time.Minute, 10*time.Minute)

	token, expiresAt, err := tm.GenerateAccessToken(&models.Identity{ID: "u1", Email: "a@x.com", Role: "admin"})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, 5*time.Second)

	claims, err := tm.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "a@x.com", claims.Email)
	assert.Equal(t, "admin", claims.Role)
	assert.NotEmpty(t, claims.ID)
}

func TestAccessToken_Rejections(t *testing.T) {
	tm := auth.NewTokenManager(testSecret, 15*time.Minute, 10*time.Minute)
	other := auth.NewTokenManager("another-secret-32-characters-long", 15*time.Minute, 10*time.Minute)

	token, _, err := other.GenerateAccessToken(&models.Identity{ID: "u1", Email: "a@x.com"})
	require.NoError(t, err)
	_, err = tm.ValidateAccessToken(token)
	assert.ErrorIs(t, err, models.ErrUnauthorized, "wrong signing key")

	resetToken, _, err := tm.GenerateResetToken("a@x.com", []string{"q1", "q2"})
	require.NoError(t, err)
	_, err = tm.ValidateAccessToken(resetToken)
	assert.ErrorIs(t, err, models.ErrUnauthorized, "reset token cannot be used as access token")

	_, err = tm.ValidateAccessToken("not-a-jwt")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestResetToken_BoundToIdentityAndExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tm := auth.NewTokenManager(testSecret, 15*time.Minute, 10*time.Minute)
	tm.SetClock(func() time.Time { return now })

	token, expiresAt, err := tm.GenerateResetToken("a@x.com", []string{"q1", "q2"})
	require.NoError(t, err)
	assert.Equal(t, now.Add(10*time.Minute), expiresAt)

	claims, err := tm.ValidateResetToken(token, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"q1", "q2"}, claims.QuestionIDs)

	_, err = tm.ValidateResetToken(token, "b@x.com")
	assert.ErrorIs(t, err, models.ErrInvalidResetToken, "token issued for another identity")

	now = now.Add(11 * time.Minute)
	_, err = tm.ValidateResetToken(token, "a@x.com")
	assert.ErrorIs(t, err, models.ErrInvalidResetToken, "expired token")
}

func TestResetToken_AccessTokenRejected(t *testing.T) {
	tm := auth.NewTokenManager(testSecret, 15*time.Minute, 10*time.Minute)

	access, _, err := tm.GenerateAccessToken(&models.Identity{ID: "u1", Email: "a@x.com"})
	require.NoError(t, err)

	_, err = tm.ValidateResetToken(access, "a@x.com")
	assert.ErrorIs(t, err, models.ErrInvalidResetToken)
}
