package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// Sender delivers one email.
type Sender interface {
	Send(ctx context.Context, email Email) error
}

// PermanentError marks a send failure that retrying will not fix.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return "permanent: " + e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// IsPermanent reports whether err, or an error it wraps, is permanent.
func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}

// SESAPI is the part of the SES v2 client SESSender needs.
type SESAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESConfig configures SESSender. Empty keys use the default AWS credential
// chain (environment, shared config, instance role).
type SESConfig struct {
	Region    string
	AccessKey string
	SecretKey string
	From      string
	ReplyTo   string
	// ConfigurationSet is attached to every message when set.
	ConfigurationSet string
}

// SESSender sends emails through Amazon SES.
type SESSender struct {
	client SESAPI
	cfg    SESConfig
	logger *slog.Logger
}

// NewSESSender loads the AWS configuration and creates the SES client.
func NewSESSender(ctx context.Context, cfg SESConfig, logger *slog.Logger) (*SESSender, error) {
	if cfg.From == "" {
		return nil, errors.New("ses: sender address is required")
	}
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("ses: load aws config: %w", err)
	}
	return NewSESSenderWithClient(sesv2.NewFromConfig(awsCfg), cfg, logger), nil
}

// NewSESSenderWithClient wraps an existing client.
func NewSESSenderWithClient(client SESAPI, cfg SESConfig, logger *slog.Logger) *SESSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &SESSender{client: client, cfg: cfg, logger: logger}
}

func (s *SESSender) Send(ctx context.Context, email Email) error {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.cfg.From),
		Destination:      &types.Destination{ToAddresses: []string{email.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(email.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(email.HTML), Charset: aws.String("UTF-8")},
				},
			},
		},
		EmailTags: []types.MessageTag{
			{Name: aws.String("kind"), Value: aws.String(string(email.Kind))},
		},
	}
	if email.Text != "" {
		input.Content.Simple.Body.Text = &types.Content{Data: aws.String(email.Text), Charset: aws.String("UTF-8")}
	}
	if s.cfg.ReplyTo != "" {
		input.ReplyToAddresses = []string{s.cfg.ReplyTo}
	}
	if s.cfg.ConfigurationSet != "" {
		input.ConfigurationSetName = aws.String(s.cfg.ConfigurationSet)
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		var rejected *types.MessageRejected
		var unverified *types.MailFromDomainNotVerifiedException
		if errors.As(err, &rejected) || errors.As(err, &unverified) {
			return &PermanentError{Err: err}
		}
		return fmt.Errorf("ses send: %w", err)
	}

	messageID := ""
	if out != nil && out.MessageId != nil {
		messageID = *out.MessageId
	}
	s.logger.Info("email sent", "kind", string(email.Kind), "email", email.To, "ses_message_id", messageID)
	return nil
}

// LogSender only logs. It stands in for SES in development.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(_ context.Context, email Email) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("email not sent, no mail transport configured",
		"kind", string(email.Kind),
		"email", email.To,
		"subject", email.Subject,
	)
	return nil
}
