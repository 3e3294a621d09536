package mail

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, message Message) error
}

// SMTPConfig configures SMTP delivery.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	Timeout  time.Duration
}

// SMTPSender delivers messages through an SMTP relay.
type SMTPSender struct {
	config SMTPConfig
}

// NewSMTPSender validates config and returns an SMTP sender.
func NewSMTPSender(config SMTPConfig) (*SMTPSender, error) {
	if config.Host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if config.From == "" {
		return nil, fmt.Errorf("mail from address is required")
	}
	if config.Port == 0 {
		config.Port = 587
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	return &SMTPSender{config: config}, nil
}

// Send dials the relay and delivers message.
func (s *SMTPSender) Send(ctx context.Context, message Message) error {
	msg, err := s.buildMessage(message)
	if err != nil {
		return err
	}

	opts := []gomail.Option{
		gomail.WithPort(s.config.Port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(s.config.Timeout),
	}
	if s.config.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.config.Username),
			gomail.WithPassword(s.config.Password),
		)
	}
	client, err := gomail.NewClient(s.config.Host, opts...)
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", message.To, err)
	}
	return nil
}

func (s *SMTPSender) buildMessage(message Message) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if s.config.FromName != "" {
		if err := msg.FromFormat(s.config.FromName, s.config.From); err != nil {
			return nil, fmt.Errorf("invalid from address: %w", err)
		}
	} else if err := msg.From(s.config.From); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(message.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", message.To, err)
	}
	msg.Subject(message.Subject)
	msg.SetBodyString(gomail.TypeTextPlain, message.TextBody)
	if message.HTMLBody != "" {
		msg.AddAlternativeString(gomail.TypeTextHTML, message.HTMLBody)
	}
	for _, attachment := range message.Attachments {
		err := msg.AttachReader(attachment.Name, bytes.NewReader(attachment.Data),
			gomail.WithFileContentType(gomail.ContentType(attachment.ContentType)))
		if err != nil {
			return nil, fmt.Errorf("attach %s: %w", attachment.Name, err)
		}
	}
	return msg, nil
}

// LogSender logs messages instead of delivering them. It is used when no
// SMTP relay is configured.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender returns a sender writing to logger.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

// Send logs the message envelope.
func (s *LogSender) Send(ctx context.Context, message Message) error {
	s.logger.InfoContext(ctx, "mail delivery disabled, invitation not sent",
		"to", message.To,
		"subject", message.Subject,
		"attachments", len(message.Attachments),
	)
	return nil
}
