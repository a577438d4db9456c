package mailer

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/99minutos/accounts/internal/core/ports"
)

// SendGridMailer delivers through the SendGrid v3 API.
type SendGridMailer struct {
	client *sendgrid.Client
	from   *mail.Email
}

func NewSendGridMailer(cfg Config) *SendGridMailer {
	return &SendGridMailer{
		client: sendgrid.NewSendClient(cfg.SendGridKey),
		from:   mail.NewEmail(cfg.FromName, cfg.From),
	}
}

func (m *SendGridMailer) Send(ctx context.Context, msg ports.EmailMessage) error {
	to := mail.NewEmail("", msg.To)
	message := mail.NewSingleEmail(m.from, msg.Subject, to, msg.Text, msg.HTML)
	message.AddCategories(msg.Template)

	resp, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sendgrid send: unexpected status %d", resp.StatusCode)
	}
	return nil
}
