package channel

import (
	"context"

	"github.com/claimsync/backend/internal/domain/notification"
	"github.com/claimsync/backend/internal/infrastructure/config"
)

// Chat posts to a Slack compatible incoming webhook
type Chat struct {
	poster  *Poster
	url     string
	channel string
}

type chatPayload struct {
	Channel string `json:"channel,omitempty"`
	Text    string `json:"text"`
}

// NewChat creates the chat channel
func NewChat(cfg config.ChatChannelConfig, poster *Poster) *Chat {
	return &Chat{poster: poster, url: cfg.WebhookURL, channel: cfg.Channel}
}

func (c *Chat) Name() string { return NameChat }

// Recipient is the configured chat channel, whoever the contact is
func (c *Chat) Recipient(notification.Contact) (string, bool) {
	if c.channel == "" {
		return "#default", true
	}
	return c.channel, true
}

func (c *Chat) Send(ctx context.Context, msg notification.Message) error {
	return c.poster.PostJSON(ctx, "chat webhook", c.url, chatPayload{
		Channel: c.channel,
		Text:    "*" + msg.Subject + "*\n" + msg.Body,
	}, nil)
}
