package channel

import (
	"context"
	"fmt"
	"strings"

	"github.com/claimsync/backend/internal/domain/notification"
	"github.com/claimsync/backend/internal/infrastructure/config"
	"github.com/wneessen/go-mail"
)

// Mail sends notifications over SMTP
type Mail struct {
	client *mail.Client
	from   string
}

// NewMail creates the SMTP channel from config. Nothing is dialled until
// the first Send.
func NewMail(cfg config.MailChannelConfig) (*Mail, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(tlsPolicy(cfg.TLS)),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
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
		return nil, fmt.Errorf("mail: failed to create client: %w", err)
	}
	return &Mail{client: client, from: cfg.From}, nil
}

func tlsPolicy(s string) mail.TLSPolicy {
	switch strings.ToLower(s) {
	case "none":
		return mail.NoTLS
	case "opportunistic":
		return mail.TLSOpportunistic
	default:
		return mail.TLSMandatory
	}
}

func (m *Mail) Name() string { return NameMail }

// Recipient uses the contact's email address
func (m *Mail) Recipient(contact notification.Contact) (string, bool) {
	addr := strings.TrimSpace(contact.Email)
	return addr, ValidEmail(addr)
}

// Send dials the server and sends one plain-text message
func (m *Mail) Send(ctx context.Context, msg notification.Message) error {
	out, err := m.compose(msg)
	if err != nil {
		return err
	}
	if err := m.client.DialAndSendWithContext(ctx, out); err != nil {
		return fmt.Errorf("mail: %w", err)
	}
	return nil
}

func (m *Mail) compose(msg notification.Message) (*mail.Msg, error) {
	out := mail.NewMsg()
	if err := out.From(m.from); err != nil {
		return nil, fmt.Errorf("mail: invalid sender %q: %w", m.from, err)
	}
	if err := out.To(msg.Recipient); err != nil {
		return nil, fmt.Errorf("mail: invalid recipient %q: %w", msg.Recipient, err)
	}
	out.Subject(msg.Subject)
	out.SetBodyString(mail.TypeTextPlain, msg.Body)
	out.SetMessageID()
	out.SetDate()
	return out, nil
}

// ValidEmail reports whether s looks like a deliverable address
func ValidEmail(s string) bool {
	at := strings.LastIndex(s, "@")
	if at <= 0 || at == len(s)-1 {
		return false
	}
	return strings.Contains(s[at+1:], ".") && !strings.ContainsAny(s, " \t\r\n")
}
