// internal/workers/issues/search-issues/config.go
package searchissues

import (
	"time"

	"proco-workers/internal/common/config"
)

type Config struct {
	Timeout      time.Duration
	QueryTimeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout:      10 * time.Second,
		QueryTimeout: 5 * time.Second,
	}
}

// ConfigFromApp reads workers.search-issues and search.timeout.
func ConfigFromApp(cfg *config.Config) *Config {
	c := LoadConfig()
	if w := config.GetWorkerConfig(cfg, TaskType); w.Timeout > 0 {
		c.Timeout = config.GetDuration(w.Timeout)
	}
	if cfg.Search.Timeout > 0 {
		c.QueryTimeout = config.GetDuration(cfg.Search.Timeout)
	}
	return c
}
