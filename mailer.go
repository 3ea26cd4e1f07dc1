package users

import (
	"bytes"
	"context"

	"github.com/gofiber/template/django/v3"
	"github.com/goliatone/go-errors"
	"github.com/wneessen/go-mail"
)

// Mailer delivers account verification emails.
type Mailer interface {
	SendVerification(ctx context.Context, email, name, link string) error
}

// MailConfig carries SMTP settings plus the sender identity.
type MailConfig struct {
	Host         string
	Port         int
	Username     string
	Password     string
	From         string
	TemplateDir  string
	TemplateName string
}

// SMTPMailer renders the verification template and delivers it over SMTP.
type SMTPMailer struct {
	client   *mail.Client
	engine   *django.Engine
	from     string
	template string
	logger   Logger
}

func NewSMTPMailer(cfg MailConfig, logger Logger) (*SMTPMailer, error) {
	if logger == nil {
		logger = defLogger{}
	}

	client, err := mail.NewClient(cfg.Host,
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to create mail client")
	}

	dir := cfg.TemplateDir
	if dir == "" {
		dir = "./templates/emails"
	}

	tpl := cfg.TemplateName
	if tpl == "" {
		tpl = "verification"
	}

	engine := django.New(dir, ".html")
	if err := engine.Load(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load mail templates")
	}

	return &SMTPMailer{
		client:   client,
		engine:   engine,
		from:     cfg.From,
		template: tpl,
		logger:   logger,
	}, nil
}

func (m *SMTPMailer) SendVerification(ctx context.Context, email, name, link string) error {
	var body bytes.Buffer
	err := m.engine.Render(&body, m.template, map[string]any{
		"Name": name,
		"Link": link,
	})
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to render verification email")
	}

	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "invalid sender address")
	}
	if err := msg.To(email); err != nil {
		return errors.Wrap(err, errors.CategoryBadInput, "invalid recipient address")
	}
	msg.Subject("Bitte bestätigen Sie Ihre E-Mail")
	msg.SetBodyString(mail.TypeTextHTML, body.String())

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to deliver verification email")
	}

	m.logger.Info("verification email sent to %s", email)

	return nil
}

// LogMailer writes the verification link to the log instead of sending mail.
// Useful for local development and tests.
type LogMailer struct {
	logger Logger
}

func NewLogMailer(logger Logger) *LogMailer {
	if logger == nil {
		logger = defLogger{}
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendVerification(_ context.Context, email, _ string, link string) error {
	m.logger.Info("verification link for %s: %s", email, link)
	return nil
}
