package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/BradenHooton/warden/internal/auth"
	"github.com/BradenHooton/warden/internal/models"
	"github.com/BradenHooton/warden/internal/validation"
	pkglogger "github.com/BradenHooton/warden/pkg/logger"
)

// LoginResult is returned on successful authentication
type LoginResult struct {
	AccessToken string           `json:"access_token"`
	ExpiresAt   time.Time        `json:"expires_at"`
	Identity    *models.Identity `json:"-"`
}

// LoginService is the login path: lock check, credential check, failure ledger, clear on success
type LoginService struct {
	credentials CredentialProvider
	lockout     *LockoutService
	limiter     *RateLimiter
	tokens      *auth.TokenManager
	timing      *auth.TimingDelay
	validator   *validation.Validator
	sinks       Sinks
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewLoginService creates a new LoginService
func NewLoginService(
	credentials CredentialProvider,
	lockout *LockoutService,
	limiter *RateLimiter,
	tokens *auth.TokenManager,
	timing *auth.TimingDelay,
	sinks Sinks,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *LoginService {
	return &LoginService{
		credentials: credentials,
		lockout:     lockout,
		limiter:     limiter,
		tokens:      tokens,
		timing:      timing,
		validator:   validation.Default(),
		sinks:       sinks.withDefaults(),
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// Login authenticates email/password. A locked identity is refused before the
// password is checked; each wrong password is recorded and may create a lock.
func (s *LoginService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	start := time.Now()

	if err := s.validator.Email(email); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, models.NewValidationError("password", "this field is required")
	}
	identity := models.NormalizeIdentity(email)

	if err := s.limiter.Allow(ctx, LoginIdentityKey(identity)); err != nil {
		return nil, err
	}

	status, err := s.lockout.CheckLocked(ctx, identity)
	if err != nil {
		return nil, err
	}
	if status.Locked {
		s.sinks.Metrics.RecordLockedRejection()
		s.sinks.Metrics.RecordLogin("locked", time.Since(start))
		s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
			EventType:     "login_failed",
			Identity:      identity,
			FailureReason: "account_locked",
		})
		return nil, status.Err()
	}

	ident, err := s.credentials.Authenticate(ctx, identity, password)
	if errors.Is(err, models.ErrUnauthorized) {
		return nil, s.loginFailed(ctx, identity, start)
	}
	if err != nil {
		s.logger.Error("credential check failed", slog.Any("error", err))
		return nil, models.NewStorageError("authenticate", err)
	}

	if err := s.lockout.Clear(ctx, identity); err != nil {
		// The credential was correct; a stale lock record must not block the session
		s.logger.Error("failed to clear lockout after login",
			slog.String("identity", pkglogger.SanitizedEmail(identity)),
			slog.Any("error", err))
	}

	token, expiresAt, err := s.tokens.GenerateAccessToken(ident)
	if err != nil {
		return nil, err
	}

	s.sinks.Metrics.RecordLogin("success", time.Since(start))
	s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
		EventType: "login_success",
		Identity:  identity,
		Success:   true,
	})

	return &LoginResult{AccessToken: token, ExpiresAt: expiresAt, Identity: ident}, nil
}

func (s *LoginService) loginFailed(ctx context.Context, identity string, start time.Time) error {
	s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
		EventType:     "login_failed",
		Identity:      identity,
		FailureReason: "invalid_credentials",
	})

	status, err := s.lockout.RegisterFailure(ctx, identity, models.AttemptSourceLogin)
	if err != nil {
		return err
	}
	if status.Locked {
		s.sinks.Metrics.RecordLogin("locked", time.Since(start))
		return status.Err()
	}

	s.sinks.Metrics.RecordLogin("failure", time.Since(start))
	if s.timing != nil {
		s.timing.WaitFrom(ctx, start)
	}
	return models.ErrUnauthorized
}
