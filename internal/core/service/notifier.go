package service

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"net/url"
	"strconv"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/accounts/internal/core/domain"
	"github.com/99minutos/accounts/internal/core/ports"
	"github.com/99minutos/accounts/internal/pkg/metrics"
)

const (
	TemplateAccountVerification = "account_verification"
	TemplateResetPassword       = "reset_password"

	activationPath    = "/activate"
	passwordResetPath = "/password-reset-confirm"

	defaultMailTimeout = 30 * time.Second
)

type emailTemplate struct {
	subject string
	html    *htmltemplate.Template
	text    *texttemplate.Template
}

var emailTemplates = map[string]emailTemplate{
	TemplateAccountVerification: {
		subject: "Activate your account",
		html: htmltemplate.Must(htmltemplate.New(TemplateAccountVerification).Parse(
			`<p>Hi {{.Name}},</p>
<p>Thanks for signing up. Confirm your email address to activate your account:</p>
<p><a href="{{.Link}}">Activate account</a></p>
<p>The link expires in {{.ExpireDays}} day(s).</p>`)),
		text: texttemplate.Must(texttemplate.New(TemplateAccountVerification).Parse(
			"Hi {{.Name}},\n\nConfirm your email address to activate your account:\n{{.Link}}\n\nThe link expires in {{.ExpireDays}} day(s).\n")),
	},
	TemplateResetPassword: {
		subject: "Reset your password",
		html: htmltemplate.Must(htmltemplate.New(TemplateResetPassword).Parse(
			`<p>Hi {{.Name}},</p>
<p>We received a request to reset your password. Choose a new one here:</p>
<p><a href="{{.Link}}">Reset password</a></p>
<p>If you did not ask for this you can ignore this email. The link expires in {{.ExpireDays}} day(s).</p>`)),
		text: texttemplate.Must(texttemplate.New(TemplateResetPassword).Parse(
			"Hi {{.Name}},\n\nChoose a new password here:\n{{.Link}}\n\nIf you did not ask for this you can ignore this email. The link expires in {{.ExpireDays}} day(s).\n")),
	},
}

type emailData struct {
	Name       string
	Link       string
	ExpireDays int
}

// NotifierConfig controls the links and lifetimes of lifecycle emails.
type NotifierConfig struct {
	// PublicDomain is the scheme and host the links point to.
	PublicDomain string
	// TokenTTLDays is the lifetime of activation and reset links.
	TokenTTLDays int
	Timeout      time.Duration
}

// Notifier sends activation and password-reset emails carrying action tokens.
type Notifier struct {
	mailer ports.Mailer
	codec  *ActionTokenCodec
	cfg    NotifierConfig
	log    zerolog.Logger
}

func NewNotifier(mailer ports.Mailer, codec *ActionTokenCodec, cfg NotifierConfig, log zerolog.Logger) *Notifier {
	if cfg.TokenTTLDays <= 0 {
		cfg.TokenTTLDays = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultMailTimeout
	}
	cfg.PublicDomain = strings.TrimRight(cfg.PublicDomain, "/")
	return &Notifier{mailer: mailer, codec: codec, cfg: cfg, log: log}
}

// SendActivation emails an activation link. Active accounts get nothing.
func (n *Notifier) SendActivation(ctx context.Context, user *domain.User) error {
	if user.IsActive {
		return nil
	}
	return n.send(ctx, user, TemplateAccountVerification, PurposeActivation, activationPath)
}

// SendPasswordReset emails a reset link. Inactive accounts get nothing.
func (n *Notifier) SendPasswordReset(ctx context.Context, user *domain.User) error {
	if !user.IsActive {
		return nil
	}
	return n.send(ctx, user, TemplateResetPassword, PurposePasswordReset, passwordResetPath)
}

func (n *Notifier) tokenTTL() time.Duration {
	return time.Duration(n.cfg.TokenTTLDays) * 24 * time.Hour
}

func (n *Notifier) send(ctx context.Context, user *domain.User, templateName string, purpose TokenPurpose, path string) error {
	token, err := n.codec.Issue(user.ID, purpose, user.ActivationToken, n.tokenTTL())
	if err != nil {
		return err
	}
	link := n.cfg.PublicDomain + path + "?token=" + url.QueryEscape(token)

	msg, err := render(templateName, user, link, n.cfg.TokenTTLDays)
	if err != nil {
		return err
	}

	sendCtx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()

	start := time.Now()
	err = n.mailer.Send(sendCtx, msg)
	metrics.EmailSendDuration.WithLabelValues(templateName).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.EmailsSentTotal.WithLabelValues(templateName, "failed").Inc()
		n.log.Error().Err(err).Str("template", templateName).Str("user_id", user.ID).Msg("email delivery failed")
		return fmt.Errorf("%w: %v", domain.ErrTransportFailure, err)
	}
	metrics.EmailsSentTotal.WithLabelValues(templateName, "sent").Inc()
	n.log.Info().Str("template", templateName).Str("user_id", user.ID).Msg("email sent")
	return nil
}

func render(templateName string, user *domain.User, link string, expireDays int) (ports.EmailMessage, error) {
	tpl, ok := emailTemplates[templateName]
	if !ok {
		return ports.EmailMessage{}, fmt.Errorf("unknown email template %q", templateName)
	}
	name := user.FirstName
	if name == "" {
		name = user.Username
	}
	data := emailData{Name: name, Link: link, ExpireDays: expireDays}

	var html, text bytes.Buffer
	if err := tpl.html.Execute(&html, data); err != nil {
		return ports.EmailMessage{}, fmt.Errorf("render %s html: %w", templateName, err)
	}
	if err := tpl.text.Execute(&text, data); err != nil {
		return ports.EmailMessage{}, fmt.Errorf("render %s text: %w", templateName, err)
	}

	return ports.EmailMessage{
		To:       user.Email,
		Subject:  tpl.subject,
		Template: templateName,
		HTML:     html.String(),
		Text:     text.String(),
		Variables: map[string]string{
			"name":        name,
			"link":        link,
			"expire_days": strconv.Itoa(expireDays),
		},
	}, nil
}
