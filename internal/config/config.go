package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Email    EmailConfig
	Chat     ChatConfig
	Push     PushConfig
	Webhook  WebhookConfig
	Dispatch DispatchConfig
	Digest   DigestConfig
}

type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeoutSeconds"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	URL          string `mapstructure:"url"`
	MaxRetries   int    `mapstructure:"max_retries"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

type EmailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type ChatConfig struct {
	Enabled            bool             `mapstructure:"enabled"`
	WebhookURL         string           `mapstructure:"webhook_url"`
	APIURL             string           `mapstructure:"api_url"`
	APIToken           string           `mapstructure:"api_token"`
	DefaultRoom        string           `mapstructure:"default_room"`
	Rooms              map[int64]string `mapstructure:"rooms"`
	MaxRetries         int              `mapstructure:"max_retries"`
	RetryBaseDelayMs   int              `mapstructure:"retry_base_delay_ms"`
	RequestsPerSec     float64          `mapstructure:"requests_per_sec"`
	Burst              int              `mapstructure:"burst"`
}

type PushConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	VAPIDPublicKey  string `mapstructure:"vapid_public_key"`
	VAPIDPrivateKey string `mapstructure:"vapid_private_key"`
	Subscriber      string `mapstructure:"subscriber"`
}

type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Secret  string `mapstructure:"secret"`
}

type DispatchConfig struct {
	Channels            []string `mapstructure:"channels"`
	EventTimeoutSeconds int      `mapstructure:"event_timeout_seconds"`
	BaseURL             string   `mapstructure:"base_url"`
}

type DigestConfig struct {
	PollIntervalSeconds  int `mapstructure:"poll_interval_seconds"`
	RetentionDays        int `mapstructure:"retention_days"`
	CleanupIntervalHours int `mapstructure:"cleanup_interval_hours"`
}

// Secrets are overlaid from the environment after the file loads, so
// credentials never have to live in the config file.
type Secrets struct {
	DBPassword    string `envconfig:"DB_PASSWORD"`
	SMTPPassword  string `envconfig:"SMTP_PASSWORD"`
	ChatAPIToken  string `envconfig:"CHAT_API_TOKEN"`
	WebhookSecret string `envconfig:"WEBHOOK_SECRET"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.timeoutSeconds", 30)
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("dispatch.channels", []string{"email", "in_app"})
	viper.SetDefault("dispatch.event_timeout_seconds", 30)
	viper.SetDefault("digest.poll_interval_seconds", 60)
	viper.SetDefault("digest.retention_days", 30)
	viper.SetDefault("digest.cleanup_interval_hours", 24)

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var secrets Secrets
	if err := envconfig.Process("notify", &secrets); err != nil {
		return nil, fmt.Errorf("failed to read secrets from environment: %w", err)
	}
	config.applySecrets(secrets)

	return &config, nil
}

func (c *Config) applySecrets(s Secrets) {
	if s.DBPassword != "" {
		c.Database.Password = s.DBPassword
	}
	if s.SMTPPassword != "" {
		c.Email.Password = s.SMTPPassword
	}
	if s.ChatAPIToken != "" {
		c.Chat.APIToken = s.ChatAPIToken
	}
	if s.WebhookSecret != "" {
		c.Webhook.Secret = s.WebhookSecret
	}
}

func (c *Config) EventTimeout() time.Duration {
	return time.Duration(c.Dispatch.EventTimeoutSeconds) * time.Second
}

func (c *Config) DigestPollInterval() time.Duration {
	return time.Duration(c.Digest.PollIntervalSeconds) * time.Second
}

func (c *Config) ChatRetryBaseDelay() time.Duration {
	return time.Duration(c.Chat.RetryBaseDelayMs) * time.Millisecond
}
