package channel

import (
	"github.com/claimsync/backend/internal/domain/notification"
	"github.com/claimsync/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// BuildRegistry creates the enabled channels and registers them
func BuildRegistry(cfg config.ChannelsConfig, logger *zap.Logger) (*notification.Registry, error) {
	registry := notification.NewRegistry()
	poster := NewPoster(cfg.RateLimit, cfg.RateBurst, cfg.HTTPTimeout)

	if cfg.Mail.Enabled {
		m, err := NewMail(cfg.Mail)
		if err != nil {
			return nil, err
		}
		registry.Register(m)
	}
	if cfg.SMS.Enabled {
		registry.Register(NewSMS(cfg.SMS, poster))
	}
	if cfg.Chat.Enabled {
		registry.Register(NewChat(cfg.Chat, poster))
	}
	if cfg.Webhook.Enabled {
		registry.Register(NewWebhook(cfg.Webhook, poster))
	}

	if registry.Len() == 0 {
		logger.Warn("No notification channel enabled; alerts will be recorded but not sent")
	} else {
		logger.Info("Notification channels ready", zap.Strings("channels", registry.Names()))
	}
	return registry, nil
}
