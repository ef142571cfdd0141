package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/warden/internal/models"
	pkghttp "github.com/BradenHooton/warden/pkg/http"
	pkglogger "github.com/BradenHooton/warden/pkg/logger"
	"github.com/go-chi/httprate"
)

// RateLimitByIP is a coarse per-IP request throttle in front of the public routes.
// It runs after ClientIP so proxies are resolved the same way everywhere.
func RateLimitByIP(requestsPerMinute int) func(next http.Handler) http.Handler {
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if ip := pkglogger.ClientIP(r.Context()); ip != "" {
				return ip, nil
			}
			return httprate.KeyByIP(r)
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteTooManyRequests(w, "Too many requests. Please try again later.")
		}),
	)
}

// Limiter counts one call against a key
type Limiter interface {
	Allow(ctx context.Context, key string) error
}

// RateLimitByKey throttles requests through the shared limiter using a key
// derived from the client IP, e.g. services.LoginIPKey
func RateLimitByKey(limiter Limiter, keyFor func(ip string) string, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := pkglogger.ClientIP(r.Context())
			if ip == "" {
				ip = pkghttp.ExtractClientIP(r, nil)
			}

			err := limiter.Allow(r.Context(), keyFor(ip))
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, models.ErrRateLimitExceeded):
				w.Header().Set("Retry-After", "60")
				pkghttp.WriteTooManyRequests(w, "Too many requests. Please try again later.")
			default:
				logger.Error("rate limiter unavailable", slog.Any("error", err))
				pkghttp.WriteServiceUnavailable(w, "Service temporarily unavailable. Please retry.")
			}
		})
	}
}
