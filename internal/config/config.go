// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type WebConfig struct {
	Port int `yaml:"port"`
	// RateLimit caps inbound messaging events per chat per minute.
	RateLimit int `yaml:"rate_limit"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type PaymentConfig struct {
	MercadoPago struct {
		BaseURL string `yaml:"base_url"`
		Sandbox bool   `yaml:"sandbox"`
	} `yaml:"mercadopago"`
}

type WhatsAppConfig struct {
	BaseURL string `yaml:"base_url"` // Evolution-style gateway host
	APIKey  string `yaml:"api_key"`
}

type SweeperConfig struct {
	Secret            string        `yaml:"secret"` // shared secret for the HTTP trigger
	Interval          time.Duration `yaml:"interval"`
	NotifyInterval    time.Duration `yaml:"notify_interval"`
	NotifyWindowDays  int           `yaml:"notify_window_days"`
	NotifyThrottleHrs int           `yaml:"notify_throttle_hours"`
	BatchLimit        int           `yaml:"batch_limit"`
}

type OpsConfig struct {
	APIKey     string        `yaml:"api_key"` // exchanged for a session token
	JWTSecret  string        `yaml:"jwt_secret"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Web      WebConfig      `yaml:"web"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Payment  PaymentConfig  `yaml:"payment"`
	WhatsApp WhatsAppConfig `yaml:"whatsapp"`
	Sweeper  SweeperConfig  `yaml:"sweeper"`
	Ops      OpsConfig      `yaml:"ops"`
	Locale   string         `yaml:"locale"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Web.Port == 0 {
		cfg.Web.Port = 8080
	}
	if cfg.Web.RateLimit <= 0 {
		cfg.Web.RateLimit = 30
	}
	if cfg.Payment.MercadoPago.BaseURL == "" {
		cfg.Payment.MercadoPago.BaseURL = "https://api.mercadopago.com"
	}
	if cfg.Sweeper.Interval <= 0 {
		cfg.Sweeper.Interval = time.Hour
	}
	if cfg.Sweeper.NotifyInterval <= 0 {
		cfg.Sweeper.NotifyInterval = time.Hour
	}
	if cfg.Sweeper.NotifyWindowDays <= 0 {
		cfg.Sweeper.NotifyWindowDays = 5
	}
	if cfg.Sweeper.NotifyThrottleHrs <= 0 {
		cfg.Sweeper.NotifyThrottleHrs = 23
	}
	if cfg.Sweeper.BatchLimit <= 0 {
		cfg.Sweeper.BatchLimit = 200
	}
	if cfg.Ops.SessionTTL <= 0 {
		cfg.Ops.SessionTTL = 30 * time.Minute
	}
	if cfg.Locale == "" {
		cfg.Locale = "pt-BR"
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Sweeper.Secret == "" {
		return nil, errors.New("sweeper.secret is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
