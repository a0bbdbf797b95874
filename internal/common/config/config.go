// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	APIs          APIsConfig              `mapstructure:"apis"`
	Agent         AgentConfig             `mapstructure:"agent"`
	Search        SearchConfig            `mapstructure:"search"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Observability ObservabilityConfig     `mapstructure:"observability"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	RegistryPath  string                  `mapstructure:"registry_path"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	HTTPAddress string `mapstructure:"http_address"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"`
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// APIsConfig holds settings for external API integrations.
type APIsConfig struct {
	GenAI GenAIConfig `mapstructure:"genai"`
}

// GenAIConfig configures the inference endpoint. Provider is "openai"
// (any OpenAI-compatible chat completions API) or "http" (the internal
// /api/ai/generate gateway).
type GenAIConfig struct {
	Provider             string  `mapstructure:"provider"`
	BaseURL              string  `mapstructure:"base_url"`
	APIKey               string  `mapstructure:"api_key"`
	Model                string  `mapstructure:"model"`
	Timeout              int     `mapstructure:"timeout"` // milliseconds
	MaxRetries           int     `mapstructure:"max_retries"`
	Temperature          float64 `mapstructure:"temperature"`
	SummaryTemperature   float64 `mapstructure:"summary_temperature"`
	TieBreakTemperature  float64 `mapstructure:"tie_break_temperature"`
	DisableSchemaEnforce bool    `mapstructure:"disable_schema_enforce"`
}

// AgentConfig tunes the conversation agent.
type AgentConfig struct {
	HistoryWindow   int                `mapstructure:"history_window"`
	DefaultReply    string             `mapstructure:"default_reply"`
	SummaryMaxChars int                `mapstructure:"summary_max_chars"`
	Confirmation    ConfirmationConfig `mapstructure:"confirmation"`
	Vendor          VendorConfig       `mapstructure:"vendor"`
}

// ConfirmationConfig lists the phrases that count as explicit tenant consent.
type ConfirmationConfig struct {
	Exact     []string `mapstructure:"exact"`
	Phrases   []string `mapstructure:"phrases"`
	Negations []string `mapstructure:"negations"`
}

type VendorConfig struct {
	TieBreakEnabled bool    `mapstructure:"tie_break_enabled"`
	RatingGap       float64 `mapstructure:"rating_gap"`
	MaxCandidates   int     `mapstructure:"max_candidates"`
	CacheTTL        int     `mapstructure:"cache_ttl"` // milliseconds
}

type SearchConfig struct {
	IssuesIndex string `mapstructure:"issues_index"`
	Timeout     int    `mapstructure:"timeout"` // milliseconds
}

// NotificationConfig holds settings for the notify-landlord worker.
type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled  bool   `mapstructure:"enabled"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sms"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

type ObservabilityConfig struct {
	ServiceName     string  `mapstructure:"service_name"`
	TraceSampleRate float64 `mapstructure:"trace_sample_rate"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
