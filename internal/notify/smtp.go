package notify

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"

	"droplink/internal/config"
)

// SMTPNotifier sends notifications as plain-text email.
type SMTPNotifier struct {
	client *mail.Client
	from   string
}

// NewSMTPNotifier builds the mail client once; it dials per message.
func NewSMTPNotifier(cfg config.SMTPConfig) (*SMTPNotifier, error) {
	if !cfg.SMTPEnabled() {
		return nil, fmt.Errorf("smtp host and credentials are required")
	}
	from := cfg.From
	if from == "" {
		from = cfg.User
	}

	client, err := mail.NewClient(cfg.Host,
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.User),
		mail.WithPassword(cfg.Password),
		mail.WithTLSPortPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return &SMTPNotifier{client: client, from: from}, nil
}

func (s *SMTPNotifier) Notify(ctx context.Context, n Notification) error {
	msg, err := s.message(n)
	if err != nil {
		return err
	}
	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", n.To, err)
	}
	return nil
}

func (s *SMTPNotifier) message(n Notification) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return nil, fmt.Errorf("invalid from address %q: %w", s.from, err)
	}
	if err := msg.To(n.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", n.To, err)
	}
	msg.Subject(n.Subject())
	msg.SetBodyString(mail.TypeTextPlain, n.Body())
	return msg, nil
}
