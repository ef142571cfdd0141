package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/BradenHooton/warden/internal/auth"
	"github.com/BradenHooton/warden/internal/models"
	"github.com/BradenHooton/warden/internal/validation"
	pkghttp "github.com/BradenHooton/warden/pkg/http"
	"github.com/go-chi/chi/v5"
)

// LockoutAdminInterface defines the administrative lock operations
type LockoutAdminInterface interface {
	CheckLocked(ctx context.Context, identity string) (models.LockStatus, error)
	Unlock(ctx context.Context, identity, clearedBy string) error
}

// RateLimitAdminInterface exposes limiter windows to administrators
type RateLimitAdminInterface interface {
	Status(ctx context.Context, key string) (models.RateLimitWindow, error)
	Reset(ctx context.Context, key string) error
}

// AdminHandler handles administrative lockout and rate limit requests
type AdminHandler struct {
	lockouts   LockoutAdminInterface
	rateLimits RateLimitAdminInterface
	logger     *slog.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(lockouts LockoutAdminInterface, rateLimits RateLimitAdminInterface, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{lockouts: lockouts, rateLimits: rateLimits, logger: logger}
}

type LockoutResponse struct {
	Identity string `json:"identity"`
	models.LockStatus
}

type RateLimitResponse struct {
	Key           string `json:"key"`
	Count         int64  `json:"count"`
	Limit         int64  `json:"limit"`
	WindowResetAt int64  `json:"window_reset_at"`
	Limited       bool   `json:"limited"`
}

// emailParam returns the {email} path parameter after validating it
func emailParam(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "email")
	email, err := url.PathUnescape(raw)
	if err != nil {
		return "", models.NewValidationError("email", "must be a valid email address")
	}
	if err := validation.Default().Email(email); err != nil {
		return "", err
	}
	return models.NormalizeIdentity(email), nil
}

// GetLockout handles GET /admin/lockouts/{email}
func (h *AdminHandler) GetLockout(w http.ResponseWriter, r *http.Request) {
	identity, err := emailParam(r)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	status, err := h.lockouts.CheckLocked(r.Context(), identity)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, LockoutResponse{Identity: identity, LockStatus: status})
}

// ClearLockout handles DELETE /admin/lockouts/{email}
func (h *AdminHandler) ClearLockout(w http.ResponseWriter, r *http.Request) {
	identity, err := emailParam(r)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	clearedBy := "admin"
	if claims := auth.GetUserFromContext(r); claims != nil && claims.Email != "" {
		clearedBy = claims.Email
	}

	if err := h.lockouts.Unlock(r.Context(), identity, clearedBy); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetRateLimit handles GET /admin/rate-limits?key=...
func (h *AdminHandler) GetRateLimit(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		pkghttp.WriteValidationError(w, "key: this field is required")
		return
	}

	window, err := h.rateLimits.Status(r.Context(), key)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, RateLimitResponse{
		Key:           window.Key,
		Count:         window.Count,
		Limit:         window.Limit,
		WindowResetAt: window.WindowResetAt.Unix(),
		Limited:       window.Limited,
	})
}

// ResetRateLimit handles DELETE /admin/rate-limits?key=...
func (h *AdminHandler) ResetRateLimit(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		pkghttp.WriteValidationError(w, "key: this field is required")
		return
	}

	if err := h.rateLimits.Reset(r.Context(), key); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
