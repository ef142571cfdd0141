package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/BradenHooton/warden/internal/auth"
	"github.com/BradenHooton/warden/internal/config"
	"github.com/BradenHooton/warden/internal/models"
	"github.com/BradenHooton/warden/internal/validation"
	pkglogger "github.com/BradenHooton/warden/pkg/logger"
	"github.com/google/uuid"
)

// Reset protocol steps
const (
	ResetStepIdentify = "identify"
	ResetStepVerify   = "verify"
	ResetStepCommit   = "commit"
)

// decoyPrompts are shown for identities that cannot reset, so the response
// looks like a real question set.
var decoyPrompts = []string{
	"What was the name of your first pet?",
	"In what city were you born?",
	"What was the name of your first school?",
	"What is your mother's maiden name?",
	"What was the make of your first car?",
	"What was your childhood nickname?",
	"What is the name of the street you grew up on?",
	"What was the name of your favorite teacher?",
	"What is your oldest sibling's middle name?",
	"In what city did your parents meet?",
	"What was your first job?",
	"What is the title of your favorite book?",
}

// decoyNamespace seeds the deterministic ids of decoy questions
var decoyNamespace = uuid.MustParse("6f1c2a8e-4b7d-5e3f-9a10-2c4d6e8f0a1b")

// IdentifyResult is the uniform response to Identify
type IdentifyResult struct {
	Questions []models.QuestionPrompt `json:"questions"`
}

// VerifyResult is returned when Verify succeeds. The token is advisory;
// Commit re-verifies the answers regardless.
type VerifyResult struct {
	Verified   bool      `json:"verified"`
	ResetToken string    `json:"reset_token"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// CommitRequest carries everything Commit needs; nothing from earlier steps is trusted
type CommitRequest struct {
	Email           string
	Answers         []models.AnsweredQuestion
	NewPassword     string
	ConfirmPassword string
	ResetToken      string
}

// PasswordResetService drives the Identify → Verify → Commit reset protocol
type PasswordResetService struct {
	identities  IdentityStore
	credentials CredentialProvider
	questions   *SecurityQuestionService
	lockout     *LockoutService
	limiter     *RateLimiter
	tokens      *auth.TokenManager
	replay      auth.ReplayGuard
	timing      *auth.TimingDelay
	validator   *validation.Validator
	decoyKey    []byte
	cfg         config.ResetConfig
	sinks       Sinks
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewPasswordResetService creates a new PasswordResetService. decoyKey keys the
// derivation of decoy questions and must stay stable across restarts.
func NewPasswordResetService(
	identities IdentityStore,
	credentials CredentialProvider,
	questions *SecurityQuestionService,
	lockout *LockoutService,
	limiter *RateLimiter,
	tokens *auth.TokenManager,
	replay auth.ReplayGuard,
	decoyKey []byte,
	cfg config.ResetConfig,
	sinks Sinks,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *PasswordResetService {
	return &PasswordResetService{
		identities:  identities,
		credentials: credentials,
		questions:   questions,
		lockout:     lockout,
		limiter:     limiter,
		tokens:      tokens,
		replay:      replay,
		timing: auth.NewTimingDelay(auth.TimingConfig{
			BaseDelayMs:   cfg.TimingBaseDelayMs,
			RandomDelayMs: cfg.TimingRandomDelayMs,
		}),
		validator:   validation.Default(),
		decoyKey:    decoyKey,
		cfg:         cfg,
		sinks:       sinks.withDefaults(),
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// Identify returns a fixed number of the identity's questions, or a deterministic
// decoy set when the identity is unknown or has too few questions. Both paths
// take the same time and return the same count.
func (s *PasswordResetService) Identify(ctx context.Context, email string) (*IdentifyResult, error) {
	start := time.Now()
	defer s.timing.WaitFrom(ctx, start)

	if err := s.validator.Email(email); err != nil {
		return nil, err
	}
	identity := models.NormalizeIdentity(email)

	if err := s.limiter.Allow(ctx, ResetIdentityKey(identity)); err != nil {
		return nil, err
	}

	prompts, known, err := s.realQuestions(ctx, identity)
	if err != nil {
		s.sinks.Metrics.RecordResetStep(ResetStepIdentify, "error")
		return nil, err
	}
	prompts = s.presentQuestions(identity, prompts)

	s.sinks.Metrics.RecordResetStep(ResetStepIdentify, "success")
	s.auditLogger.LogResetStep(ctx, ResetStepIdentify, pkglogger.AuditEvent{
		Identity: identity,
		Success:  true,
		Metadata: map[string]string{"eligible": strconv.FormatBool(known)},
	})

	return &IdentifyResult{Questions: prompts}, nil
}

// realQuestions returns the identity's prompts and whether it can use the reset flow
func (s *PasswordResetService) realQuestions(ctx context.Context, identity string) ([]models.QuestionPrompt, bool, error) {
	if _, err := s.identities.Lookup(ctx, identity); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, models.NewStorageError("lookup identity", err)
	}

	prompts, err := s.questions.QuestionsFor(ctx, identity)
	if err != nil {
		return nil, false, err
	}
	if len(prompts) < s.questions.Required() {
		return nil, false, nil
	}
	return prompts, true, nil
}

// presentQuestions returns exactly MinQuestions prompts. A larger real set is
// narrowed to a stable keyed subset; a smaller one is padded with decoys.
func (s *PasswordResetService) presentQuestions(identity string, stored []models.QuestionPrompt) []models.QuestionPrompt {
	count := s.questions.MinQuestions()
	shown := s.selectQuestions(identity, stored, count)
	if len(shown) < count {
		shown = append(shown, s.decoyQuestions(identity, count-len(shown), shown)...)
	}
	return shown
}

// selectQuestions picks count of the prompts ranked by HMAC(decoyKey, identity, id)
// and returns them in their stored order
func (s *PasswordResetService) selectQuestions(identity string, prompts []models.QuestionPrompt, count int) []models.QuestionPrompt {
	if len(prompts) <= count {
		return prompts
	}

	rank := make([]uint64, len(prompts))
	for i, p := range prompts {
		mac := hmac.New(sha256.New, s.decoyKey)
		mac.Write([]byte(identity))
		mac.Write([]byte{0})
		mac.Write([]byte(p.ID))
		rank[i] = binary.BigEndian.Uint64(mac.Sum(nil))
	}

	order := make([]int, len(prompts))
	for i := range order {
		order[i] = i
	}
	slices.SortFunc(order, func(a, b int) int {
		switch {
		case rank[a] < rank[b]:
			return -1
		case rank[a] > rank[b]:
			return 1
		}
		return a - b
	})

	chosen := order[:count]
	slices.Sort(chosen)

	out := make([]models.QuestionPrompt, 0, count)
	for _, i := range chosen {
		out = append(out, prompts[i])
	}
	return out
}

// decoyQuestions derives count stable prompts for identity from the decoy key,
// skipping any prompt text already in shown
func (s *PasswordResetService) decoyQuestions(identity string, count int, shown []models.QuestionPrompt) []models.QuestionPrompt {
	mac := hmac.New(sha256.New, s.decoyKey)
	mac.Write([]byte(identity))
	sum := mac.Sum(nil)

	used := make(map[int]bool, len(decoyPrompts))
	for i, prompt := range decoyPrompts {
		for _, p := range shown {
			if strings.EqualFold(p.Prompt, prompt) {
				used[i] = true
			}
		}
	}

	prompts := make([]models.QuestionPrompt, 0, count)
	offset := 0
	for len(prompts) < count && len(used) < len(decoyPrompts) {
		idx := int(binary.BigEndian.Uint32(sum[offset:offset+4]) % uint32(len(decoyPrompts)))
		offset = (offset + 4) % (len(sum) - 3)
		for used[idx] {
			idx = (idx + 1) % len(decoyPrompts)
		}
		used[idx] = true

		id := uuid.NewSHA1(decoyNamespace, append(sum[:16:16], byte(len(shown)+len(prompts))))
		prompts = append(prompts, models.QuestionPrompt{ID: id.String(), Prompt: decoyPrompts[idx]})
	}
	return prompts
}

// Verify checks the answers. On success it returns an advisory reset token.
// Failure is always the generic models.ErrVerificationFailed.
func (s *PasswordResetService) Verify(ctx context.Context, email string, answers []models.AnsweredQuestion) (*VerifyResult, error) {
	if err := s.validator.Email(email); err != nil {
		return nil, err
	}
	if err := s.validator.AnsweredSet(answers); err != nil {
		return nil, err
	}
	identity := models.NormalizeIdentity(email)

	if err := s.guard(ctx, identity); err != nil {
		return nil, err
	}

	matched, err := s.questions.Match(ctx, identity, answers)
	if err != nil {
		return nil, err
	}

	if len(matched) < s.questions.Required() {
		return nil, s.verificationFailed(ctx, identity, ResetStepVerify, "answers_mismatch")
	}

	token, expiresAt, err := s.tokens.GenerateResetToken(identity, matched)
	if err != nil {
		return nil, fmt.Errorf("failed to issue reset token: %w", err)
	}

	s.sinks.Metrics.RecordResetStep(ResetStepVerify, "success")
	s.auditLogger.LogResetStep(ctx, ResetStepVerify, pkglogger.AuditEvent{Identity: identity, Success: true})

	return &VerifyResult{Verified: true, ResetToken: token, ExpiresAt: expiresAt}, nil
}

// Commit re-verifies the answers and, on success, updates the credential exactly once
func (s *PasswordResetService) Commit(ctx context.Context, req CommitRequest) error {
	if err := s.validator.Email(req.Email); err != nil {
		return err
	}
	if err := s.validator.PasswordPair(req.NewPassword, req.ConfirmPassword); err != nil {
		return err
	}
	if err := s.validator.AnsweredSet(req.Answers); err != nil {
		return err
	}
	identity := models.NormalizeIdentity(req.Email)

	if err := s.guard(ctx, identity); err != nil {
		return err
	}

	var claims *models.ResetClaims
	if req.ResetToken != "" || s.cfg.RequireToken {
		c, err := s.tokens.ValidateResetToken(req.ResetToken, identity)
		if err != nil {
			return s.verificationFailed(ctx, identity, ResetStepCommit, "invalid_reset_token")
		}
		claims = c
	}

	matched, err := s.questions.Match(ctx, identity, req.Answers)
	if err != nil {
		return err
	}
	if len(matched) < s.questions.Required() {
		return s.verificationFailed(ctx, identity, ResetStepCommit, "answers_mismatch")
	}

	if claims != nil {
		fresh, err := s.replay.Consume(ctx, claims.ID, claims.ExpiresAt.Time)
		if err != nil {
			return models.NewStorageError("consume reset token", err)
		}
		if !fresh {
			return s.verificationFailed(ctx, identity, ResetStepCommit, "reset_token_reused")
		}
	}

	ident, err := s.identities.Lookup(ctx, identity)
	if errors.Is(err, models.ErrNotFound) {
		return s.verificationFailed(ctx, identity, ResetStepCommit, "identity_not_found")
	}
	if err != nil {
		return models.NewStorageError("lookup identity", err)
	}

	if err := s.credentials.UpdateCredential(ctx, models.NormalizeIdentity(ident.Email), req.NewPassword); err != nil {
		s.sinks.Metrics.RecordResetStep(ResetStepCommit, "error")
		s.logger.Error("credential update failed",
			slog.String("identity", pkglogger.SanitizedEmail(identity)),
			slog.Any("error", err))
		if errors.Is(err, models.ErrStorage) {
			return err
		}
		return fmt.Errorf("%w: %v", models.ErrCredentialUpdate, err)
	}

	s.afterCommit(ctx, identity)
	return nil
}

func (s *PasswordResetService) afterCommit(ctx context.Context, identity string) {
	// A proven identity starts with a clean lockout history
	if err := s.lockout.Clear(ctx, identity); err != nil {
		s.logger.Error("failed to clear lockout after reset",
			slog.String("identity", pkglogger.SanitizedEmail(identity)),
			slog.Any("error", err))
	}

	if err := s.sinks.Notifier.NotifyPasswordChanged(ctx, identity); err != nil {
		s.logger.Error("failed to send password changed notice",
			slog.String("identity", pkglogger.SanitizedEmail(identity)),
			slog.Any("error", err))
	}
	s.sinks.publish(ctx, s.logger, models.SecurityEvent{
		Type:       models.EventPasswordReset,
		Identity:   identity,
		OccurredAt: time.Now().UTC(),
		Metadata:   map[string]string{"method": "security_questions"},
	})

	s.sinks.Metrics.RecordResetStep(ResetStepCommit, "success")
	s.auditLogger.LogResetStep(ctx, ResetStepCommit, pkglogger.AuditEvent{Identity: identity, Success: true})
}

// guard applies the per-identity rate limit and, when failed verifications
// feed the lockout subsystem, refuses locked identities.
func (s *PasswordResetService) guard(ctx context.Context, identity string) error {
	if err := s.limiter.Allow(ctx, ResetIdentityKey(identity)); err != nil {
		return err
	}
	if !s.cfg.TrackFailedVerifications {
		return nil
	}

	status, err := s.lockout.CheckLocked(ctx, identity)
	if err != nil {
		return err
	}
	if status.Locked {
		s.sinks.Metrics.RecordLockedRejection()
		return status.Err()
	}
	return nil
}

// verificationFailed records a failed step and returns the error shown to the caller
func (s *PasswordResetService) verificationFailed(ctx context.Context, identity, step, reason string) error {
	s.sinks.Metrics.RecordResetStep(step, "failure")
	s.auditLogger.LogResetStep(ctx, step, pkglogger.AuditEvent{
		Identity:      identity,
		Success:       false,
		FailureReason: reason,
	})

	if !s.cfg.TrackFailedVerifications {
		return models.ErrVerificationFailed
	}

	status, err := s.lockout.RegisterFailure(ctx, identity, models.AttemptSourceSecurityQuestion)
	if err != nil {
		return err
	}
	if status.Locked {
		return status.Err()
	}
	return models.ErrVerificationFailed
}
