package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TransportConfig holds chat transport settings.
type TransportConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	RunMode string `yaml:"run_mode" envconfig:"TRANSPORT_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TRANSPORT_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	BotFile     string `yaml:"bot_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile"`
}

// EngineConfig bounds session lifetime and timer behaviour of the flow engine.
type EngineConfig struct {
	// SessionTTL is the idle ceiling after which a session with no open
	// capture wait is garbage collected.
	SessionTTL time.Duration `yaml:"session_ttl" envconfig:"ENGINE_SESSION_TTL"`
	// SweepInterval controls how often expired sessions are collected.
	SweepInterval time.Duration `yaml:"sweep_interval" envconfig:"ENGINE_SWEEP_INTERVAL"`
	// MailboxSize bounds the per-identity inbound queue.
	MailboxSize int `yaml:"mailbox_size" envconfig:"ENGINE_MAILBOX_SIZE"`
}

// VerificationConfig configures the external DNI verification API.
type VerificationConfig struct {
	BaseURL string        `yaml:"base_url" envconfig:"VERIFY_BASE_URL"`
	Token   string        `yaml:"token" envconfig:"VERIFY_TOKEN"`
	Timeout time.Duration `yaml:"timeout" envconfig:"VERIFY_TIMEOUT"`
}

// SMTPConfig configures confirmation e-mail delivery.
type SMTPConfig struct {
	Host     string `yaml:"host" envconfig:"SMTP_HOST"`
	Port     int    `yaml:"port" envconfig:"SMTP_PORT"`
	User     string `yaml:"user" envconfig:"SMTP_USER"`
	Password string `yaml:"password" envconfig:"SMTP_PASSWORD"`
	From     string `yaml:"from" envconfig:"SMTP_FROM"`
}

// PricingConfig carries the sales terms presented and charged by the bot.
type PricingConfig struct {
	// UnitPrice is the price of one package in soles.
	UnitPrice float64 `yaml:"unit_price" envconfig:"PRICING_UNIT_PRICE"`
	// DeliverySurcharge is added for orders below FreeDeliveryMin packages.
	DeliverySurcharge float64 `yaml:"delivery_surcharge" envconfig:"PRICING_DELIVERY_SURCHARGE"`
	FreeDeliveryMin   int     `yaml:"free_delivery_min" envconfig:"PRICING_FREE_DELIVERY_MIN"`
}

// ContactConfig holds the business contact details shown in closing messages.
type ContactConfig struct {
	Phone string `yaml:"phone" envconfig:"CONTACT_PHONE"`
	Email string `yaml:"email" envconfig:"CONTACT_EMAIL"`
}

// DatabaseConfig holds order archive connection settings.
type DatabaseConfig struct {
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
}

// RateLimitConfig holds settings for per-identity inbound rate limiting.
type RateLimitConfig struct {
	IntervalMS int `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
}

const (
	// RunModeWebhook selects webhook mode for transport updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for transport updates.
	RunModeLongpoll = "longpoll"
)

// Config aggregates the full application configuration.
type Config struct {
	Transport    TransportConfig    `yaml:"transport"`
	Webhook      WebhookConfig      `yaml:"webhook"`
	Logging      LoggingConfig      `yaml:"logging"`
	Engine       EngineConfig       `yaml:"engine"`
	Verification VerificationConfig `yaml:"verification"`
	SMTP         SMTPConfig         `yaml:"smtp"`
	Pricing      PricingConfig      `yaml:"pricing"`
	Contact      ContactConfig      `yaml:"contact"`
	Database     DatabaseConfig     `yaml:"database"`
	RateLimit    RateLimitConfig    `yaml:"rate_limit"`
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Transport.Token == "" {
		return fmt.Errorf("transport token is required")
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Transport.RunMode))
	if rm == "" {
		rm = RunModeLongpoll
	}
	if rm == "polling" { // accept alias
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when transport.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when transport.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when transport.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Transport.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("transport.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid transport.run_mode %q; allowed: webhook, longpoll", cfg.Transport.RunMode)
	}
	cfg.Transport.RunMode = rm

	if strings.TrimSpace(cfg.Verification.Token) == "" {
		return fmt.Errorf("verification.token is required")
	}
	if strings.TrimSpace(cfg.Verification.BaseURL) == "" {
		cfg.Verification.BaseURL = "https://apiperu.dev"
	}
	if cfg.Verification.Timeout <= 0 {
		cfg.Verification.Timeout = 10 * time.Second
	}

	if cfg.Engine.SessionTTL <= 0 {
		cfg.Engine.SessionTTL = 10 * time.Minute
	}
	if cfg.Engine.SweepInterval <= 0 {
		cfg.Engine.SweepInterval = time.Minute
	}
	if cfg.Engine.MailboxSize <= 0 {
		cfg.Engine.MailboxSize = 16
	}

	if cfg.Pricing.UnitPrice <= 0 {
		cfg.Pricing.UnitPrice = 15
	}
	if cfg.Pricing.DeliverySurcharge < 0 {
		return fmt.Errorf("pricing.delivery_surcharge must be >= 0")
	}
	if cfg.Pricing.DeliverySurcharge == 0 {
		cfg.Pricing.DeliverySurcharge = 7
	}
	if cfg.Pricing.FreeDeliveryMin <= 0 {
		cfg.Pricing.FreeDeliveryMin = 3
	}

	if cfg.RateLimit.IntervalMS < 0 {
		return fmt.Errorf("rate_limit.interval_ms must be >= 0")
	}

	return nil
}
