// internal/workers/tenant-chat/load-conversation/config.go
package loadconversation

import (
	"time"

	"proco-workers/internal/common/config"
)

type Config struct {
	Timeout  time.Duration
	MaxLimit int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:  10 * time.Second,
		MaxLimit: 200,
	}
}

func ConfigFromApp(cfg *config.Config) *Config {
	c := LoadConfig()
	if w := config.GetWorkerConfig(cfg, TaskType); w.Timeout > 0 {
		c.Timeout = config.GetDuration(w.Timeout)
	}
	return c
}
