// internal/workers/tenant-chat/process-tenant-message/config.go
package processtenantmessage

import (
	"time"

	"proco-workers/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 45 * time.Second,
	}
}

// ConfigFromApp reads workers.process-tenant-message.
func ConfigFromApp(cfg *config.Config) *Config {
	c := LoadConfig()
	if w := config.GetWorkerConfig(cfg, TaskType); w.Timeout > 0 {
		c.Timeout = config.GetDuration(w.Timeout)
	}
	return c
}
