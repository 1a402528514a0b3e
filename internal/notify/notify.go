package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"storefront/internal/config"
)

const (
	TemplateOrderConfirmation = "order_confirmation"
	TemplateEmailVerification = "email_verification"
)

var subjects = map[string]string{
	TemplateOrderConfirmation: "Confirm Your Order - Pull Up Store",
	TemplateEmailVerification: "Verify Your Email - Pull Up Store",
}

//go:embed templates/*.html
var templatesFS embed.FS

var templates = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

// Notifier отправка писем по имени шаблона
type Notifier interface {
	Send(ctx context.Context, to, tmpl string, data any) error
}

// OrderConfirmationData данные письма подтверждения заказа
type OrderConfirmationData struct {
	FirstName   string
	OrderNumber string
	Items       []OrderLine
	TotalAmount string
	ConfirmURL  string
	ExpiresIn   string
}

type OrderLine struct {
	Name     string
	Size     string
	Color    string
	Quantity int64
	Total    string
}

// VerificationData данные письма с кодом подтверждения e-mail
type VerificationData struct {
	FirstName        string
	Code             string
	ExpiresInMinutes int
}

func lookup(name string) (*template.Template, string, error) {
	subject, ok := subjects[name]
	if !ok {
		return nil, "", fmt.Errorf("unknown email template %q", name)
	}
	tpl := templates.Lookup(name + ".html")
	if tpl == nil {
		return nil, "", fmt.Errorf("email template %q not embedded", name)
	}
	return tpl, subject, nil
}

// Render возвращает тему и HTML письма
func Render(name string, data any) (subject, body string, err error) {
	tpl, subject, err := lookup(name)
	if err != nil {
		return "", "", err
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("render %s: %w", name, err)
	}
	return subject, buf.String(), nil
}

// SMTPNotifier отправляет письма через SMTP
type SMTPNotifier struct {
	client *mail.Client
	from   string
}

func NewSMTPNotifier(cfg config.SMTP) (*SMTPNotifier, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTPNotifier{client: client, from: cfg.From}, nil
}

func (n *SMTPNotifier) Send(ctx context.Context, to, name string, data any) error {
	tpl, subject, err := lookup(name)
	if err != nil {
		return err
	}
	msg := mail.NewMsg()
	if err := msg.From(n.from); err != nil {
		return fmt.Errorf("from %q: %w", n.from, err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("to %q: %w", to, err)
	}
	msg.Subject(subject)
	if err := msg.SetBodyHTMLTemplate(tpl, data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	if err := n.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send %s to %s: %w", name, to, err)
	}
	return nil
}

// LogNotifier рендерит письмо и пишет его в лог; используется без SMTP
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier { return &LogNotifier{log: log} }

func (n *LogNotifier) Send(_ context.Context, to, name string, data any) error {
	subject, body, err := Render(name, data)
	if err != nil {
		return err
	}
	n.log.Info("email_logged",
		zap.String("to", to),
		zap.String("template", name),
		zap.String("subject", subject),
		zap.Int("body_bytes", len(body)),
	)
	n.log.Debug("email_body", zap.String("to", to), zap.String("body", body))
	return nil
}
