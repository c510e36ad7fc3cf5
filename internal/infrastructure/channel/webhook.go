package channel

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/claimsync/backend/internal/domain/notification"
	"github.com/claimsync/backend/internal/infrastructure/config"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body
const SignatureHeader = "X-Claimsync-Signature"

// Webhook posts every notification as JSON to a configured URL
type Webhook struct {
	poster *Poster
	url    string
	secret string
}

// WebhookPayload is the body posted by the webhook channel
type WebhookPayload struct {
	Category   notification.Category `json:"category"`
	CaseNumber string                `json:"case_number,omitempty"`
	Recipient  string                `json:"recipient"`
	Subject    string                `json:"subject"`
	Body       string                `json:"body"`
}

// NewWebhook creates the webhook channel
func NewWebhook(cfg config.WebhookChannelConfig, poster *Poster) *Webhook {
	return &Webhook{poster: poster, url: cfg.URL, secret: cfg.Secret}
}

func (w *Webhook) Name() string { return NameWebhook }

// Recipient is the configured URL
func (w *Webhook) Recipient(notification.Contact) (string, bool) {
	return w.url, w.url != ""
}

func (w *Webhook) Send(ctx context.Context, msg notification.Message) error {
	body, err := json.Marshal(WebhookPayload{
		Category:   msg.Category,
		CaseNumber: msg.CaseNumber,
		Recipient:  msg.Recipient,
		Subject:    msg.Subject,
		Body:       msg.Body,
	})
	if err != nil {
		return fmt.Errorf("webhook: failed to marshal payload: %w", err)
	}
	var headers map[string]string
	if w.secret != "" {
		headers = map[string]string{SignatureHeader: "sha256=" + Sign(w.secret, body)}
	}
	return w.poster.post(ctx, "webhook", w.url, body, headers)
}

// Sign returns the hex HMAC-SHA256 of body under secret
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
