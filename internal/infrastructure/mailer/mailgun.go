package mailer

import (
	"context"
	"fmt"

	"github.com/mailgun/mailgun-go/v4"

	"github.com/99minutos/accounts/internal/core/ports"
)

// MailgunMailer delivers through the Mailgun HTTP API.
type MailgunMailer struct {
	mg   *mailgun.MailgunImpl
	from string
}

func NewMailgunMailer(cfg Config) *MailgunMailer {
	from := cfg.From
	if cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", cfg.FromName, cfg.From)
	}
	return &MailgunMailer{mg: mailgun.NewMailgun(cfg.MailgunDomain, cfg.MailgunKey), from: from}
}

func (m *MailgunMailer) Send(ctx context.Context, msg ports.EmailMessage) error {
	message := m.mg.NewMessage(m.from, msg.Subject, msg.Text)
	if err := message.AddRecipient(msg.To); err != nil {
		return fmt.Errorf("mailgun recipient: %w", err)
	}
	if msg.HTML != "" {
		message.SetHtml(msg.HTML)
	}
	if msg.Template != "" {
		if err := message.AddTag(msg.Template); err != nil {
			return fmt.Errorf("mailgun tag: %w", err)
		}
	}
	for k, v := range msg.Variables {
		if err := message.AddVariable(k, v); err != nil {
			return fmt.Errorf("mailgun variable %s: %w", k, err)
		}
	}

	if _, _, err := m.mg.Send(ctx, message); err != nil {
		return fmt.Errorf("mailgun send: %w", err)
	}
	return nil
}
