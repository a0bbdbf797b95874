// internal/workers/issues/notify-landlord/config.go
package notifylandlord

import (
	"time"

	"proco-workers/internal/common/config"
)

type Config struct {
	EmailEnabled bool
	SMSEnabled   bool
	FromEmail    string
	TopicARN     string
	Timeout      time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 15 * time.Second,
	}
}

// ConfigFromApp reads the notifications section and workers.notify-landlord.
func ConfigFromApp(cfg *config.Config) *Config {
	c := LoadConfig()
	c.EmailEnabled = cfg.Notifications.Email.Enabled
	c.FromEmail = cfg.Notifications.Email.FromEmail
	c.SMSEnabled = cfg.Notifications.SMS.Enabled
	c.TopicARN = cfg.Notifications.SMS.TopicARN
	if w := config.GetWorkerConfig(cfg, TaskType); w.Timeout > 0 {
		c.Timeout = config.GetDuration(w.Timeout)
	}
	return c
}
