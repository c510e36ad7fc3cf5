package channel

import (
	"context"
	"strings"
	"unicode"

	"github.com/claimsync/backend/internal/domain/notification"
	"github.com/claimsync/backend/internal/infrastructure/config"
)

// SMS posts urgent alerts to an HTTP SMS gateway
type SMS struct {
	poster   *Poster
	endpoint string
	apiKey   string
	sender   string
}

type smsPayload struct {
	To   string `json:"to"`
	From string `json:"from,omitempty"`
	Text string `json:"text"`
}

// NewSMS creates the SMS channel
func NewSMS(cfg config.SMSChannelConfig, poster *Poster) *SMS {
	return &SMS{poster: poster, endpoint: cfg.Endpoint, apiKey: cfg.APIKey, sender: cfg.Sender}
}

func (s *SMS) Name() string { return NameSMS }

// Supports limits SMS to the urgent categories
func (s *SMS) Supports(category notification.Category) bool {
	return category.IsUrgent()
}

// Recipient uses the contact's phone number
func (s *SMS) Recipient(contact notification.Contact) (string, bool) {
	return NormalizePhone(contact.Phone)
}

func (s *SMS) Send(ctx context.Context, msg notification.Message) error {
	return s.poster.PostJSON(ctx, "sms gateway", s.endpoint, smsPayload{
		To:   msg.Recipient,
		From: s.sender,
		Text: msg.Subject,
	}, map[string]string{"Authorization": "Bearer " + s.apiKey})
}

// NormalizePhone strips formatting from a phone number and keeps a leading
// plus sign. ok is false unless 8 to 15 digits remain.
func NormalizePhone(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	var b strings.Builder
	digits := 0
	for i, r := range raw {
		switch {
		case unicode.IsDigit(r):
			b.WriteRune(r)
			digits++
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return "", false
		}
	}
	if digits < 8 || digits > 15 {
		return "", false
	}
	return b.String(), true
}
