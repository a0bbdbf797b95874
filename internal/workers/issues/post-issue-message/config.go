// internal/workers/issues/post-issue-message/config.go
package postissuemessage

import (
	"time"

	"proco-workers/internal/common/config"
)

type Config struct {
	Timeout    time.Duration
	MaxContent int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:    10 * time.Second,
		MaxContent: 4000,
	}
}

func ConfigFromApp(cfg *config.Config) *Config {
	c := LoadConfig()
	if w := config.GetWorkerConfig(cfg, TaskType); w.Timeout > 0 {
		c.Timeout = config.GetDuration(w.Timeout)
	}
	return c
}
