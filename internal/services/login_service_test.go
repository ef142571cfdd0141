package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BradenHooton/warden/internal/auth"
	"github.com/BradenHooton/warden/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loginFixture struct {
	*lockoutFixture
	credentials *MockCredentialProvider
	tokens      *auth.TokenManager
	service     *LoginService
	authCalls   int
}

func newLoginFixture() *loginFixture {
	f := &loginFixture{lockoutFixture: newLockoutFixture()}
	f.credentials = &MockCredentialProvider{
		AuthenticateFunc: func(ctx context.Context, email, password string) (*models.Identity, error) {
			f.authCalls++
			if email == "alice@example.com" && password == "correct-horse" {
				return &models.Identity{ID: "user-1", Email: email, Role: "user"}, nil
			}
			return nil, models.ErrUnauthorized
		},
	}
	f.tokens = auth.NewTokenManager("login-test-secret-32-characters!", 15*time.Minute, 10*time.Minute)
	f.service = NewLoginService(
		f.credentials,
		f.lockoutFixture.service,
		NewMemoryRateLimiter(60, time.Minute, nil, discardLogger()),
		f.tokens,
		auth.NewTimingDelay(auth.TimingConfig{}),
		Sinks{Notifier: f.notifier, Events: f.events},
		discardLogger(),
		discardAuditLogger(),
	)
	return f
}

func TestLoginService_Success(t *testing.T) {
	f := newLoginFixture()

	result, err := f.service.Login(context.Background(), "Alice@Example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "user-1", result.Identity.ID)

	claims, err := f.tokens.ValidateAccessToken(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
}

func TestLoginService_WrongPassword(t *testing.T) {
	f := newLoginFixture()

	_, err := f.service.Login(context.Background(), "alice@example.com", "wrong")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
	assert.Equal(t, []string{models.AttemptSourceLogin}, f.attempts.Sources("alice@example.com"))
}

func TestLoginService_FifthFailureLocksAndRefusesCorrectPassword(t *testing.T) {
	ctx := context.Background()
	f := newLoginFixture()

	for i := 0; i < 4; i++ {
		_, err := f.service.Login(ctx, "alice@example.com", "wrong")
		require.ErrorIs(t, err, models.ErrUnauthorized)
	}

	_, err := f.service.Login(ctx, "alice@example.com", "wrong")
	var locked *models.LockedOutError
	require.ErrorAs(t, err, &locked)
	assert.Equal(t, 15, locked.RemainingMinutes)
	assert.Equal(t, 1, locked.LockoutCount)

	calls := f.authCalls
	_, err = f.service.Login(ctx, "alice@example.com", "correct-horse")
	assert.ErrorIs(t, err, models.ErrAccountLocked)
	assert.Equal(t, calls, f.authCalls, "the password is not checked while locked")

	f.clock.Advance(15 * time.Minute)
	_, err = f.service.Login(ctx, "alice@example.com", "correct-horse")
	require.NoError(t, err, "the lock expires")
}

func TestLoginService_SuccessClearsFailures(t *testing.T) {
	ctx := context.Background()
	f := newLoginFixture()

	for i := 0; i < 4; i++ {
		_, _ = f.service.Login(ctx, "alice@example.com", "wrong")
	}
	_, err := f.service.Login(ctx, "alice@example.com", "correct-horse")
	require.NoError(t, err)
	f.clock.Advance(time.Second)

	_, err = f.service.Login(ctx, "alice@example.com", "wrong")
	assert.ErrorIs(t, err, models.ErrUnauthorized, "the budget starts over after a successful login")
}

func TestLoginService_UnknownIdentityIsTrackedLikeAnyOther(t *testing.T) {
	ctx := context.Background()
	f := newLoginFixture()

	var err error
	for i := 0; i < 5; i++ {
		_, err = f.service.Login(ctx, "ghost@example.com", "whatever")
	}
	assert.ErrorIs(t, err, models.ErrAccountLocked)
}

func TestLoginService_Validation(t *testing.T) {
	f := newLoginFixture()

	_, err := f.service.Login(context.Background(), "not-an-email", "x")
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = f.service.Login(context.Background(), "alice@example.com", "")
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.Equal(t, 0, f.authCalls)
}

func TestLoginService_ProviderError(t *testing.T) {
	f := newLoginFixture()
	f.credentials.AuthenticateFunc = func(ctx context.Context, email, password string) (*models.Identity, error) {
		return nil, errors.New("dial tcp: connection refused")
	}

	_, err := f.service.Login(context.Background(), "alice@example.com", "correct-horse")
	assert.ErrorIs(t, err, models.ErrStorage)
	assert.Empty(t, f.attempts.Sources("alice@example.com"), "an outage is not a failed attempt")
}

func TestLoginService_RateLimited(t *testing.T) {
	ctx := context.Background()
	f := newLoginFixture()
	f.service.limiter = NewMemoryRateLimiter(1, time.Minute, nil, discardLogger())

	_, err := f.service.Login(ctx, "alice@example.com", "correct-horse")
	require.NoError(t, err)

	_, err = f.service.Login(ctx, "alice@example.com", "correct-horse")
	assert.ErrorIs(t, err, models.ErrRateLimitExceeded)
}
