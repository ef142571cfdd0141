package services

import (
	"context"
	"log/slog"

	"github.com/BradenHooton/warden/internal/events"
	"github.com/BradenHooton/warden/internal/metrics"
	"github.com/BradenHooton/warden/internal/models"
	"github.com/BradenHooton/warden/pkg/logger"
)

// Sinks are the best-effort channels that observe security decisions.
// Failures in a sink are logged and never change the outcome of an operation.
type Sinks struct {
	Notifier Notifier
	Events   EventPublisher
	Metrics  metrics.Recorder
}

func (s Sinks) withDefaults() Sinks {
	if s.Notifier == nil {
		s.Notifier = NoopNotifier{}
	}
	if s.Events == nil {
		s.Events = events.NoopPublisher{}
	}
	if s.Metrics == nil {
		s.Metrics = metrics.NewNoopMetrics()
	}
	return s
}

func (s Sinks) publish(ctx context.Context, log *slog.Logger, event models.SecurityEvent) {
	if err := s.Events.Publish(ctx, event); err != nil {
		log.Error("failed to publish security event",
			slog.String("type", event.Type),
			slog.String("identity", logger.SanitizedEmail(event.Identity)),
			slog.Any("error", err))
	}
}
