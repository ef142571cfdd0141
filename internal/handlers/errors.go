package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/warden/internal/models"
	pkghttp "github.com/BradenHooton/warden/pkg/http"
)

// writeServiceError maps a service error onto the JSON error contract
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var validationErr *models.ValidationError
	var lockedErr *models.LockedOutError

	switch {
	case errors.Is(err, errInvalidBody):
		pkghttp.WriteBadRequest(w, "Invalid request body")
	case errors.As(err, &validationErr):
		pkghttp.WriteValidationError(w, validationErr.Error())
	case errors.As(err, &lockedErr):
		pkghttp.WriteLocked(w, lockedErr.RemainingMinutes, lockedErr.LockoutCount)
	case errors.Is(err, models.ErrRateLimitExceeded):
		w.Header().Set("Retry-After", "60")
		pkghttp.WriteTooManyRequests(w, "Too many requests. Please try again later.")
	case errors.Is(err, models.ErrVerificationFailed):
		pkghttp.WriteError(w, http.StatusBadRequest, "verification_failed", "The information provided could not be verified")
	case errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteUnauthorized(w, "Authentication failed")
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Resource not found")
	case errors.Is(err, models.ErrStorage):
		logger.Error("storage unavailable", slog.Any("error", err))
		pkghttp.WriteServiceUnavailable(w, "Service temporarily unavailable. Please retry.")
	default:
		logger.Error("request failed", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
