package mailer

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/99minutos/accounts/internal/core/ports"
)

// LogMailer writes emails to the log instead of delivering them.
type LogMailer struct {
	log zerolog.Logger
}

func NewLogMailer(log zerolog.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) Send(_ context.Context, msg ports.EmailMessage) error {
	m.log.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Str("template", msg.Template).
		Str("body", msg.Text).
		Msg("email not delivered (log transport)")
	return nil
}
