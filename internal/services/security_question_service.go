package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/warden/internal/models"
	"github.com/BradenHooton/warden/internal/validation"
	"github.com/BradenHooton/warden/pkg/auth"
	pkglogger "github.com/BradenHooton/warden/pkg/logger"
	"github.com/google/uuid"
)

// DefaultRequiredCorrectAnswers is the verification threshold
const DefaultRequiredCorrectAnswers = 2

// SecurityQuestionService stores challenge questions and verifies answers against them
type SecurityQuestionService struct {
	repo         SecurityQuestionRepository
	validator    *validation.Validator
	minQuestions int
	required     int
	dummySalt    []byte
	logger       *slog.Logger
	now          Clock
}

// NewSecurityQuestionService creates a new SecurityQuestionService.
// required below 2 is raised to 2. minQuestions is the setup minimum and the
// number of prompts shown at reset; it is kept within
// [max(required, validation.MinQuestions), validation.MaxQuestions].
func NewSecurityQuestionService(repo SecurityQuestionRepository, minQuestions, required int, logger *slog.Logger) *SecurityQuestionService {
	if required < DefaultRequiredCorrectAnswers {
		required = DefaultRequiredCorrectAnswers
	}
	minQuestions = min(max(minQuestions, required, validation.MinQuestions), validation.MaxQuestions)

	dummySalt, err := auth.GenerateSalt()
	if err != nil {
		dummySalt = make([]byte, auth.AnswerSaltLength)
	}
	return &SecurityQuestionService{
		repo:         repo,
		validator:    validation.Default(),
		minQuestions: minQuestions,
		required:     required,
		dummySalt:    dummySalt,
		logger:       logger,
		now:          utcNow,
	}
}

// Setup replaces identity's questions. Answers are stored only as salted hashes.
func (s *SecurityQuestionService) Setup(ctx context.Context, identity string, inputs []models.QuestionInput) error {
	identity = models.NormalizeIdentity(identity)

	if err := s.validator.QuestionSetMin(inputs, s.minQuestions); err != nil {
		return err
	}

	now := s.now()
	questions := make([]models.SecurityQuestion, 0, len(inputs))
	for i, in := range inputs {
		salt, err := auth.GenerateSalt()
		if err != nil {
			return fmt.Errorf("failed to set up security questions: %w", err)
		}
		questions = append(questions, models.SecurityQuestion{
			ID:         uuid.New(),
			Identity:   identity,
			Position:   i + 1,
			Prompt:     in.Prompt,
			AnswerHash: auth.HashAnswer(in.Answer, salt),
			Salt:       salt,
			CreatedAt:  now,
		})
	}

	if err := s.repo.ReplaceAll(ctx, identity, questions); err != nil {
		return models.NewStorageError("store security questions", err)
	}

	s.logger.Info("security questions configured",
		slog.String("identity", pkglogger.SanitizedEmail(identity)),
		slog.Int("count", len(questions)))
	return nil
}

// QuestionsFor returns identity's prompts in order. Never answers or hashes.
func (s *SecurityQuestionService) QuestionsFor(ctx context.Context, identity string) ([]models.QuestionPrompt, error) {
	stored, err := s.repo.ListByIdentity(ctx, models.NormalizeIdentity(identity))
	if err != nil {
		return nil, models.NewStorageError("list security questions", err)
	}

	prompts := make([]models.QuestionPrompt, 0, len(stored))
	for _, q := range stored {
		prompts = append(prompts, models.QuestionPrompt{ID: q.ID.String(), Prompt: q.Prompt})
	}
	return prompts, nil
}

// Verify reports whether at least the required number of distinct stored
// questions were answered correctly. Wrong or unknown extra answers do not fail it.
func (s *SecurityQuestionService) Verify(ctx context.Context, identity string, answers []models.AnsweredQuestion) (bool, error) {
	matched, err := s.Match(ctx, identity, answers)
	if err != nil {
		return false, err
	}
	return len(matched) >= s.required, nil
}

// Match returns the ids of the distinct stored questions whose answers matched
func (s *SecurityQuestionService) Match(ctx context.Context, identity string, answers []models.AnsweredQuestion) ([]string, error) {
	if err := s.validator.AnsweredSet(answers); err != nil {
		return nil, err
	}

	stored, err := s.repo.ListByIdentity(ctx, models.NormalizeIdentity(identity))
	if err != nil {
		return nil, models.NewStorageError("list security questions", err)
	}

	byID := make(map[string]models.SecurityQuestion, len(stored))
	for _, q := range stored {
		byID[q.ID.String()] = q
	}

	matched := make([]string, 0, len(answers))
	seen := make(map[string]bool, len(answers))
	for _, a := range answers {
		id := normalizeQuestionID(a.QuestionID)
		q, ok := byID[id]
		if !ok || seen[id] {
			// Hash anyway so response time does not depend on which ids exist
			_ = auth.HashAnswer(a.Answer, s.dummySalt)
			continue
		}
		if auth.CompareAnswer(q.AnswerHash, q.Salt, a.Answer) {
			seen[id] = true
			matched = append(matched, id)
		}
	}
	return matched, nil
}

// Required returns the number of correct answers needed
func (s *SecurityQuestionService) Required() int {
	return s.required
}

// MinQuestions returns the setup minimum, which is also the reset prompt count
func (s *SecurityQuestionService) MinQuestions() int {
	return s.minQuestions
}

func normalizeQuestionID(id string) string {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return id
	}
	return parsed.String()
}
