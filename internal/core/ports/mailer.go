package ports

import "context"

// EmailMessage is a rendered email ready to hand to a transport.
type EmailMessage struct {
	To       string
	Subject  string
	Template string
	HTML     string
	Text     string
	// Variables are forwarded to providers that render server-side templates.
	Variables map[string]string
}

// Mailer sends a single email. Implementations must honour ctx deadlines.
type Mailer interface {
	Send(ctx context.Context, msg EmailMessage) error
}
