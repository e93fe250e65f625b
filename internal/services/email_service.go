package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/innkeephq/innkeep/pkg/logger"
)

// EmailService defines the interface for outbound security mail
type EmailService interface {
	SendPasswordResetEmail(ctx context.Context, email, token string, expiresAt time.Time) error
	SendPasswordSetupEmail(ctx context.Context, email, token string, expiresAt time.Time) error
	SendLockoutNotification(ctx context.Context, email string, lockedUntil time.Time, ipAddress string) error
}

// AWSSESEmailService sends emails using AWS SES
type AWSSESEmailService struct {
	sesClient   *ses.Client
	fromAddress string
	baseURL     string
	logger      *slog.Logger
}

// NewAWSSESEmailService creates a new AWS SES email service
func NewAWSSESEmailService(region, fromAddress, baseURL string, log *slog.Logger) (*AWSSESEmailService, error) {
	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESEmailService{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		baseURL:     baseURL,
		logger:      log,
	}, nil
}

// SendPasswordResetEmail sends a reset link containing the signed token.
func (s *AWSSESEmailService) SendPasswordResetEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	link := fmt.Sprintf("%s/reset-password?token=%s", s.baseURL, token)
	minutes := int(time.Until(expiresAt).Minutes())

	textBody := fmt.Sprintf(`Reset Your Password

We received a request to reset the password for your account. Click the link below to choose a new password:

%s

This link will expire in %d minutes and can only be used once.

Didn't request a reset?
If you didn't ask to reset your password, you can ignore this email. Your password will not be changed.

This is an automated message. Please do not reply to this email.
`, link, minutes)

	return s.send(ctx, email, "Reset your password", textBody)
}

// SendPasswordSetupEmail sends the initial set-your-password link for a
// freshly provisioned account.
func (s *AWSSESEmailService) SendPasswordSetupEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	link := fmt.Sprintf("%s/setup-password?token=%s", s.baseURL, token)
	minutes := int(time.Until(expiresAt).Minutes())

	textBody := fmt.Sprintf(`Set Up Your Account

An account has been created for you. Click the link below to choose your password and activate it:

%s

This link will expire in %d minutes and can only be used once.

This is an automated message. Please do not reply to this email.
`, link, minutes)

	return s.send(ctx, email, "Set up your account", textBody)
}

// SendLockoutNotification tells the account owner that repeated failed
// logins locked the account.
func (s *AWSSESEmailService) SendLockoutNotification(ctx context.Context, email string, lockedUntil time.Time, ipAddress string) error {
	textBody := fmt.Sprintf(`Account Temporarily Locked

Your account has been temporarily locked after repeated failed sign-in attempts.

Last attempt from IP address: %s
The lock will lift at: %s

If this wasn't you, we recommend resetting your password once the lock lifts.

This is an automated message. Please do not reply to this email.
`, ipAddress, lockedUntil.UTC().Format(time.RFC1123))

	return s.send(ctx, email, "Your account has been temporarily locked", textBody)
}

func (s *AWSSESEmailService) send(ctx context.Context, email, subject, textBody string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(subject),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	result, err := s.sesClient.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send email via SES",
			slog.String("email", logger.SanitizedEmail(email)),
			slog.String("subject", subject),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent",
		slog.String("email", logger.SanitizedEmail(email)),
		slog.String("subject", subject),
		slog.String("message_id", *result.MessageId))

	return nil
}
