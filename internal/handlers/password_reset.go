package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/warden/internal/models"
	"github.com/BradenHooton/warden/internal/services"
	pkghttp "github.com/BradenHooton/warden/pkg/http"
)

// PasswordResetServiceInterface defines the three reset steps
type PasswordResetServiceInterface interface {
	Identify(ctx context.Context, email string) (*services.IdentifyResult, error)
	Verify(ctx context.Context, email string, answers []models.AnsweredQuestion) (*services.VerifyResult, error)
	Commit(ctx context.Context, req services.CommitRequest) error
}

// PasswordResetHandler exposes Identify, Verify and Commit
type PasswordResetHandler struct {
	service PasswordResetServiceInterface
	logger  *slog.Logger
}

// NewPasswordResetHandler creates a new PasswordResetHandler
func NewPasswordResetHandler(service PasswordResetServiceInterface, logger *slog.Logger) *PasswordResetHandler {
	return &PasswordResetHandler{service: service, logger: logger}
}

type IdentifyRequest struct {
	Email string `json:"email" validate:"required,max=254,trimmed,nocontrol,email"`
}

type VerifyRequest struct {
	Email   string      `json:"email" validate:"required,max=254,trimmed,nocontrol,email"`
	Answers []AnswerDTO `json:"answers" validate:"required,min=2,max=10,dive"`
}

type CommitRequest struct {
	Email           string      `json:"email" validate:"required,max=254,trimmed,nocontrol,email"`
	Answers         []AnswerDTO `json:"answers" validate:"required,min=2,max=10,dive"`
	NewPassword     string      `json:"new_password" validate:"required,min=8,max=72,nocontrol"`
	ConfirmPassword string      `json:"confirm_password" validate:"required,eqfield=NewPassword"`
	ResetToken      string      `json:"reset_token,omitempty" validate:"omitempty,max=2048"`
}

type CommitResponse struct {
	Message string `json:"message"`
}

// Identify handles POST /password-reset/identify
func (h *PasswordResetHandler) Identify(w http.ResponseWriter, r *http.Request) {
	var req IdentifyRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	result, err := h.service.Identify(r.Context(), req.Email)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, result)
}

// Verify handles POST /password-reset/verify
func (h *PasswordResetHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	result, err := h.service.Verify(r.Context(), req.Email, toAnswered(req.Answers))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, result)
}

// Commit handles POST /password-reset/commit
func (h *PasswordResetHandler) Commit(w http.ResponseWriter, r *http.Request) {
	var req CommitRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	err := h.service.Commit(r.Context(), services.CommitRequest{
		Email:           req.Email,
		Answers:         toAnswered(req.Answers),
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
		ResetToken:      req.ResetToken,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, CommitResponse{Message: "Password updated"})
}
