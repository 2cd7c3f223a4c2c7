package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN        string `env:"DATABASE_DSN,required=true"`
	RedisURL           string `env:"REDIS_URL,required=true"`
	RabbitMQURL        string `env:"RABBITMQ_URL"`
	APIPort            int    `env:"API_PORT,default=8080"`
	LogLevel           string `env:"LOG_LEVEL,default=info"`
	CacheTimeout       int    `env:"NEWSLETTER_CACHE_TIMEOUT,default=300"`
	RateLimit          int    `env:"PROVIDER_RATE_LIMIT_PER_SEC,default=10"`
	ProviderTimeoutSec int    `env:"PROVIDER_TIMEOUT_SECONDS,default=30"`

	Backend Backend
}

// Backend holds campaign backend settings. They are optional at load time;
// provider.NewFactory reports missing values as configuration errors.
type Backend struct {
	Name            string `env:"CAMPAIGN_BACKEND,default=mailchimp"`
	MailchimpAPIKey string `env:"MAILCHIMP_API_KEY"`
	FromName        string `env:"NEWSLETTER_FROM_NAME"`
	ReplyTo         string `env:"NEWSLETTER_REPLY_TO"`
	ListmonkBaseURL string `env:"LISTMONK_BASE_URL"`
	ListmonkUser    string `env:"LISTMONK_USER"`
	ListmonkAPIKey  string `env:"LISTMONK_API_KEY"`
	ListmonkHeaders string `env:"LISTMONK_HEADERS"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// CacheTTL returns the audience cache timeout, falling back to 300s.
func (c *Config) CacheTTL() time.Duration {
	if c == nil || c.CacheTimeout <= 0 {
		return 300 * time.Second
	}
	return time.Duration(c.CacheTimeout) * time.Second
}

func (c *Config) ProviderTimeout() time.Duration {
	if c == nil || c.ProviderTimeoutSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.ProviderTimeoutSec) * time.Second
}
