package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/warden/internal/auth"
	"github.com/BradenHooton/warden/internal/models"
	pkghttp "github.com/BradenHooton/warden/pkg/http"
)

// SecurityQuestionServiceInterface defines question setup for the signed-in user
type SecurityQuestionServiceInterface interface {
	Setup(ctx context.Context, identity string, inputs []models.QuestionInput) error
	QuestionsFor(ctx context.Context, identity string) ([]models.QuestionPrompt, error)
}

// SecurityQuestionHandler lets a signed-in user manage their challenge questions
type SecurityQuestionHandler struct {
	service SecurityQuestionServiceInterface
	logger  *slog.Logger
}

// NewSecurityQuestionHandler creates a new SecurityQuestionHandler
func NewSecurityQuestionHandler(service SecurityQuestionServiceInterface, logger *slog.Logger) *SecurityQuestionHandler {
	return &SecurityQuestionHandler{service: service, logger: logger}
}

type QuestionDTO struct {
	Prompt string `json:"prompt" validate:"required,max=200,trimmed,nocontrol"`
	Answer string `json:"answer" validate:"required,max=100,nocontrol,notblank"`
}

type SetupQuestionsRequest struct {
	Questions []QuestionDTO `json:"questions" validate:"required,min=3,max=10,dive"`
}

type QuestionsResponse struct {
	Questions []models.QuestionPrompt `json:"questions"`
}

// List handles GET /users/me/security-questions
func (h *SecurityQuestionHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	prompts, err := h.service.QuestionsFor(r.Context(), claims.Email)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, QuestionsResponse{Questions: prompts})
}

// Replace handles PUT /users/me/security-questions
func (h *SecurityQuestionHandler) Replace(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req SetupQuestionsRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	inputs := make([]models.QuestionInput, 0, len(req.Questions))
	for _, q := range req.Questions {
		inputs = append(inputs, models.QuestionInput{Prompt: q.Prompt, Answer: q.Answer})
	}

	if err := h.service.Setup(r.Context(), claims.Email, inputs); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
