package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/k3a/html2text"
	"github.com/nimasrn/church-messaging/pkg/logger"
	"github.com/wneessen/go-mail"
)

const (
	EncryptionTLS  = "tls" // STARTTLS, mandatory
	EncryptionSSL  = "ssl" // implicit TLS
	EncryptionNone = "none"

	opEmail = "deliver email"
)

type EmailConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	Encryption string
	From       string
	FromName   string
	Timeout    time.Duration
}

func (c EmailConfig) configured() bool {
	return c.Host != "" && c.From != ""
}

type mailSender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// EmailDispatcher relays through an SMTP server. Bodies are sent as HTML
// with a plain-text alternative.
type EmailDispatcher struct {
	cfg    EmailConfig
	policy Policy
	sender mailSender
}

func NewEmailDispatcher(cfg EmailConfig, policy Policy) (*EmailDispatcher, error) {
	d := &EmailDispatcher{cfg: cfg, policy: policy}
	if !cfg.configured() {
		logger.Warn("email provider not configured", "simulated", policy.AllowSimulated)
		return d, nil
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	opts := []mail.Option{mail.WithTimeout(timeout)}
	switch strings.ToLower(cfg.Encryption) {
	case EncryptionSSL:
		opts = append(opts, mail.WithSSL(), mail.WithTLSPolicy(mail.TLSMandatory))
	case EncryptionNone:
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	case EncryptionTLS, "":
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	default:
		return nil, fmt.Errorf("unknown smtp encryption %q", cfg.Encryption)
	}
	if cfg.Port > 0 {
		opts = append(opts, mail.WithPort(cfg.Port))
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
	d.sender = client

	logger.Info("email dispatcher initialized", "host", cfg.Host, "port", cfg.Port, "encryption", cfg.Encryption)
	return d, nil
}

func (d *EmailDispatcher) Deliver(ctx context.Context, destination, subject, body string) (Outcome, error) {
	if d.sender == nil {
		return d.policy.unconfigured(opEmail, 0)
	}

	msg, err := d.buildMessage(destination, subject, body)
	if err != nil {
		return failed(opEmail, err)
	}

	if err := d.sender.DialAndSendWithContext(ctx, msg); err != nil {
		logger.Warn("email delivery failed", "to", destination, "error", err)
		return failed(opEmail, err)
	}
	return Outcome{Delivered: true}, nil
}

func (d *EmailDispatcher) buildMessage(to, subject, body string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	var err error
	if d.cfg.FromName != "" {
		err = msg.FromFormat(d.cfg.FromName, d.cfg.From)
	} else {
		err = msg.From(d.cfg.From)
	}
	if err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("recipient address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, PlainText(body))
	msg.AddAlternativeString(mail.TypeTextHTML, body)
	return msg, nil
}

// PlainText renders an HTML body as text. Plain input passes through.
func PlainText(body string) string {
	return strings.TrimSpace(html2text.HTML2TextWithOptions(body, html2text.WithUnixLineBreaks()))
}
