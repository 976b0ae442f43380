package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Unipile   UnipileConfig   `yaml:"unipile" mapstructure:"unipile"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Enrich    EnrichConfig    `yaml:"enrich" mapstructure:"enrich"`
	Queue     QueueConfig     `yaml:"queue" mapstructure:"queue"`
	Campaign  CampaignConfig  `yaml:"campaign" mapstructure:"campaign"`
	Sender    SenderConfig    `yaml:"sender" mapstructure:"sender"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// UnipileConfig holds messaging/profile provider API settings.
type UnipileConfig struct {
	Key            string  `yaml:"key" mapstructure:"key"`
	AccountID      string  `yaml:"account_id" mapstructure:"account_id"`
	BaseURL        string  `yaml:"base_url" mapstructure:"base_url"`
	WebhookSecret  string  `yaml:"webhook_secret" mapstructure:"webhook_secret"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	Model       string `yaml:"model" mapstructure:"model"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// EnrichConfig configures the enrichment pipeline.
type EnrichConfig struct {
	CacheTTLHours int `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
	BatchDelayMs  int `yaml:"batch_delay_ms" mapstructure:"batch_delay_ms"`
	DefaultLimit  int `yaml:"default_limit" mapstructure:"default_limit"`
	SearchResults int `yaml:"search_results" mapstructure:"search_results"`
}

// CacheTTL returns the profile cache TTL as a duration.
func (c EnrichConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLHours) * time.Hour
}

// BatchDelay returns the inter-prospect delay as a duration.
func (c EnrichConfig) BatchDelay() time.Duration {
	return time.Duration(c.BatchDelayMs) * time.Millisecond
}

// QueueConfig configures the dispatch scheduler.
type QueueConfig struct {
	SendAttempts  int `yaml:"send_attempts" mapstructure:"send_attempts"`
	AIAttempts    int `yaml:"ai_attempts" mapstructure:"ai_attempts"`
	BackoffBaseMs int `yaml:"backoff_base_ms" mapstructure:"backoff_base_ms"`
}

// BackoffBase returns the retry backoff base as a duration.
func (c QueueConfig) BackoffBase() time.Duration {
	return time.Duration(c.BackoffBaseMs) * time.Millisecond
}

// CampaignConfig holds defaults applied to new campaigns.
type CampaignConfig struct {
	DailyLimit             int `yaml:"daily_limit" mapstructure:"daily_limit"`
	DelayBetweenMessagesMs int `yaml:"delay_between_messages_ms" mapstructure:"delay_between_messages_ms"`
}

// SenderConfig points at the sender profile file used for personalization.
type SenderConfig struct {
	ProfilePath string `yaml:"profile_path" mapstructure:"profile_path"`
}

// ServerConfig configures the webhook server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("OUTREACH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("unipile.base_url", "https://api.unipile.com/v1")
	v.SetDefault("unipile.timeout_secs", 15)
	v.SetDefault("unipile.requests_per_sec", 2)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.timeout_secs", 30)
	v.SetDefault("enrich.cache_ttl_hours", 24)
	v.SetDefault("enrich.batch_delay_ms", 2000)
	v.SetDefault("enrich.default_limit", 10)
	v.SetDefault("enrich.search_results", 5)
	v.SetDefault("queue.send_attempts", 3)
	v.SetDefault("queue.ai_attempts", 2)
	v.SetDefault("queue.backoff_base_ms", 2000)
	v.SetDefault("campaign.daily_limit", 50)
	v.SetDefault("campaign.delay_between_messages_ms", 5000)
	v.SetDefault("sender.profile_path", "sender.yaml")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
