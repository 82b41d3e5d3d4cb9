package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"github.com/CyberwizD/notification-ingest/internal/models"
)

// ErrParsingConfig wraps failures from the environment parser.
var ErrParsingConfig = errors.New("failed to parse configuration")

// Config holds ingestion daemon configuration loaded from the environment.
type Config struct {
	AppName   string `env:"APP_NAME" envDefault:"notification_ingest"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
	HTTPPort  string `env:"HTTP_PORT" envDefault:"8091"`
	Platform  string `env:"PLATFORM" envDefault:"android"`

	RabbitURL       string `env:"RABBITMQ_URL"`
	PushQueue       string `env:"PUSH_QUEUE" envDefault:"push.ingest.queue"`
	DeadLetterQueue string `env:"PUSH_DLQ" envDefault:"push.ingest.failed"`
	PrefetchCount   int    `env:"PUSH_PREFETCH" envDefault:"20"`
	WorkerCount     int    `env:"WORKER_COUNT" envDefault:"1"`

	DatabaseURL string        `env:"DATABASE_URL"`
	InboxTable  string        `env:"INBOX_TABLE" envDefault:"notification_inbox"`
	RedisURL    string        `env:"REDIS_URL"`
	SessionTTL  time.Duration `env:"SESSION_TTL" envDefault:"168h"`

	ChannelID      string   `env:"CHANNEL_ID" envDefault:"default"`
	ChannelName    string   `env:"CHANNEL_NAME" envDefault:"Default Channel"`
	RoutingKeys    []string `env:"ROUTING_KEYS" envDefault:"video_id" envSeparator:","`
	MarkReadAction string   `env:"MARK_READ_ACTION" envDefault:"mark-as-read"`

	TokenRegistrationURL string        `env:"TOKEN_REGISTRATION_URL"`
	ProviderTimeout      time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"10s"`
	RetryMaxAttempts     int           `env:"RETRY_MAX_ATTEMPTS" envDefault:"4"`
	RetryInitialBackoff  time.Duration `env:"RETRY_INITIAL_BACKOFF" envDefault:"1s"`
	RetryMaxBackoff      time.Duration `env:"RETRY_MAX_BACKOFF" envDefault:"15s"`
}

// Load reads .env when present, parses the environment and validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return parse()
}

func parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Join(ErrParsingConfig, err)
	}
	cfg.normalize()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	keys := c.RoutingKeys[:0]
	for _, k := range c.RoutingKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	c.RoutingKeys = keys
	if p, ok := models.NormalizePlatform(c.Platform); ok {
		c.Platform = p
	}
}

func (c *Config) validate() error {
	var missing []string
	if c.RabbitURL == "" {
		missing = append(missing, "RABBITMQ_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missing)
	}

	var invalid []string
	if _, ok := models.NormalizePlatform(c.Platform); !ok {
		invalid = append(invalid, "PLATFORM")
	}
	if len(c.RoutingKeys) == 0 {
		invalid = append(invalid, "ROUTING_KEYS")
	}
	if c.RedisURL != "" {
		if _, err := redis.ParseURL(c.RedisURL); err != nil {
			invalid = append(invalid, "REDIS_URL")
		}
	}
	if c.WorkerCount <= 0 {
		invalid = append(invalid, "WORKER_COUNT")
	}
	if c.RetryMaxAttempts <= 0 {
		invalid = append(invalid, "RETRY_MAX_ATTEMPTS")
	}
	if c.RetryMaxBackoff < c.RetryInitialBackoff {
		invalid = append(invalid, "RETRY_MAX_BACKOFF")
	}
	if len(invalid) > 0 {
		return fmt.Errorf("invalid environment variables: %v", invalid)
	}
	return nil
}
