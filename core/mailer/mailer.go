// Package mailer sends order confirmation e-mails over SMTP. Delivery is
// best effort: the dialogue never stalls on a failed send.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/ventaflow/ventabot/core/config"
	"github.com/ventaflow/ventabot/core/logger"
)

// Attachment is an inline file carried by a message.
type Attachment struct {
	Name string
	Data []byte
}

// Message is one outbound e-mail.
type Message struct {
	To          string
	Subject     string
	HTML        string
	Attachments []Attachment
}

// Mailer delivers a message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type smtpMailer struct {
	cfg config.SMTPConfig
}

// NewSMTP builds the SMTP mailer. Returns nil when no host is configured so
// callers can treat e-mail as an optional feature.
func NewSMTP(cfg config.SMTPConfig) Mailer {
	if cfg.Host == "" {
		return nil
	}
	return &smtpMailer{cfg: cfg}
}

func (s *smtpMailer) Send(ctx context.Context, msg Message) error {
	started := time.Now()

	m := mail.NewMsg()
	if err := m.From(s.cfg.From); err != nil {
		return fmt.Errorf("mailer: from address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("mailer: to address: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextHTML, msg.HTML)
	for _, a := range msg.Attachments {
		if err := m.AttachReader(a.Name, bytes.NewReader(a.Data)); err != nil {
			return fmt.Errorf("mailer: attach %s: %w", a.Name, err)
		}
	}

	opts := []mail.Option{
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if s.cfg.Port > 0 {
		opts = append(opts, mail.WithPort(s.cfg.Port))
	}
	if s.cfg.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.User),
			mail.WithPassword(s.cfg.Password),
		)
	}

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("mailer: client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		logger.Error(ctx, "mailer", "send.error",
			slog.Any("err", err),
			slog.Duration("duration", logger.Took(started)),
		)
		return fmt.Errorf("mailer: send: %w", err)
	}

	logger.Info(ctx, "mailer", "send.ok",
		slog.Duration("duration", logger.Took(started)),
	)
	return nil
}
