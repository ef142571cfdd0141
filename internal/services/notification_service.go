package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/warden/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESClient is the subset of the SES API used for notifications
type SESClient interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESNotifier sends account-security notices using AWS SES
type SESNotifier struct {
	client      SESClient
	fromAddress string
	logger      *slog.Logger
}

// NewSESNotifier loads AWS config for region and creates an SES-backed notifier
func NewSESNotifier(ctx context.Context, region, fromAddress string, logger *slog.Logger) (*SESNotifier, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewSESNotifierWithClient(ses.NewFromConfig(cfg), fromAddress, logger), nil
}

// NewSESNotifierWithClient creates a notifier around an existing SES client
func NewSESNotifierWithClient(client SESClient, fromAddress string, logger *slog.Logger) *SESNotifier {
	return &SESNotifier{client: client, fromAddress: fromAddress, logger: logger}
}

// NotifyLockout tells the owner their account was locked and when it unlocks
func (n *SESNotifier) NotifyLockout(ctx context.Context, identity string, unlockAt time.Time) error {
	subject := "Your account has been temporarily locked"
	text := fmt.Sprintf(`Your account was locked after repeated failed sign-in attempts.

You can try again after %s (UTC).

If these attempts were not made by you, consider changing your password once the lock expires.

This is an automated message. Please do not reply to this email.
`, unlockAt.UTC().Format("2006-01-02 15:04"))

	return n.send(ctx, identity, subject, text, "lockout")
}

// NotifyPasswordChanged tells the owner their password was reset
func (n *SESNotifier) NotifyPasswordChanged(ctx context.Context, identity string) error {
	subject := "Your password was changed"
	text := `The password for your account was just reset using your security questions.

If you did not do this, contact support immediately.

This is an automated message. Please do not reply to this email.
`

	return n.send(ctx, identity, subject, text, "password_changed")
}

func (n *SESNotifier) send(ctx context.Context, to, subject, text, kind string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(n.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(text)},
			},
		},
	}

	result, err := n.client.SendEmail(ctx, input)
	if err != nil {
		n.logger.Error("failed to send notification via SES",
			slog.String("kind", kind),
			slog.String("email", logger.SanitizedEmail(to)),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	n.logger.Info("notification sent",
		slog.String("kind", kind),
		slog.String("email", logger.SanitizedEmail(to)),
		slog.String("message_id", aws.ToString(result.MessageId)))

	return nil
}

// NoopNotifier drops notifications. Used when SES is not configured.
type NoopNotifier struct{}

func (NoopNotifier) NotifyLockout(ctx context.Context, identity string, unlockAt time.Time) error {
	return nil
}

func (NoopNotifier) NotifyPasswordChanged(ctx context.Context, identity string) error {
	return nil
}
