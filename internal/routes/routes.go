package routes

import (
	"log/slog"

	"github.com/BradenHooton/warden/internal/auth"
	"github.com/BradenHooton/warden/internal/handlers"
	"github.com/BradenHooton/warden/internal/middleware"
	"github.com/BradenHooton/warden/internal/services"
	"github.com/go-chi/chi/v5"
)

// Handlers groups the HTTP handlers mounted by RegisterRoutes
type Handlers struct {
	Auth              *handlers.AuthHandler
	PasswordReset     *handlers.PasswordResetHandler
	SecurityQuestions *handlers.SecurityQuestionHandler
	Admin             *handlers.AdminHandler
	Health            *handlers.HealthHandler
}

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	h Handlers,
	tokenManager *auth.TokenManager,
	limiter middleware.Limiter,
	ipPerMinute int,
	logger *slog.Logger,
) {
	router.Get("/health", h.Health.Health)

	// Public routes - coarse per-IP throttle, then the shared keyed limiter
	router.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(ipPerMinute))

		r.With(middleware.RateLimitByKey(limiter, services.LoginIPKey, logger)).
			Post("/auth/login", h.Auth.Login)

		r.Route("/password-reset", func(r chi.Router) {
			r.Use(middleware.RateLimitByKey(limiter, services.ResetIPKey, logger))
			r.Post("/identify", h.PasswordReset.Identify)
			r.Post("/verify", h.PasswordReset.Verify)
			r.Post("/commit", h.PasswordReset.Commit)
		})
	})

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddleware(tokenManager))

		r.Get("/users/me/security-questions", h.SecurityQuestions.List)
		r.Put("/users/me/security-questions", h.SecurityQuestions.Replace)

		// Admin-only routes
		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireRole("admin"))
			r.Get("/lockouts/{email}", h.Admin.GetLockout)
			r.Delete("/lockouts/{email}", h.Admin.ClearLockout)
			r.Get("/rate-limits", h.Admin.GetRateLimit)
			r.Delete("/rate-limits", h.Admin.ResetRateLimit)
		})
	})
}
