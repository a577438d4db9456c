// Package mailer provides the email transports behind ports.Mailer: SMTP,
// Mailgun, SendGrid and a log-only transport for local development.
package mailer

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/99minutos/accounts/internal/core/ports"
)

const (
	ProviderLog      = "log"
	ProviderSMTP     = "smtp"
	ProviderMailgun  = "mailgun"
	ProviderSendGrid = "sendgrid"
)

// Config selects and configures one transport.
type Config struct {
	Provider string
	From     string
	FromName string

	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string

	MailgunDomain string
	MailgunKey    string

	SendGridKey string
}

// New returns the transport named by cfg.Provider.
func New(cfg Config, log zerolog.Logger) (ports.Mailer, error) {
	switch cfg.Provider {
	case "", ProviderLog:
		return NewLogMailer(log), nil
	case ProviderSMTP:
		if cfg.SMTPHost == "" || cfg.SMTPPort == "" || cfg.From == "" {
			return nil, errors.New("invalid SMTP configuration")
		}
		return NewSMTPMailer(cfg), nil
	case ProviderMailgun:
		if cfg.MailgunKey == "" || cfg.MailgunDomain == "" || cfg.From == "" {
			return nil, errors.New("invalid Mailgun configuration")
		}
		return NewMailgunMailer(cfg), nil
	case ProviderSendGrid:
		if cfg.SendGridKey == "" || cfg.From == "" {
			return nil, errors.New("invalid SendGrid configuration")
		}
		return NewSendGridMailer(cfg), nil
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.Provider)
	}
}
