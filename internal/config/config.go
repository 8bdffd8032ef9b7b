package config

import (
	"fmt"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	JWTSecret   string `env:"JWT_SECRET,required"`

	ProviderURL     string `env:"PROVIDER_URL" envDefault:"http://mock-provider:8081"`
	ProviderKeyID   string `env:"PROVIDER_KEY_ID,required"`
	ProviderSecret  string `env:"PROVIDER_SECRET,required"`
	ProviderTimeout int    `env:"PROVIDER_TIMEOUT_S" envDefault:"5"`

	PlatformFeePercent float64 `env:"PLATFORM_FEE_PERCENT" envDefault:"10"`
	OrderTTLMinutes    int     `env:"ORDER_TTL_MINUTES" envDefault:"15"`

	NotifyPollIntervalS int `env:"NOTIFY_POLL_INTERVAL_S" envDefault:"2"`
	NotifyMaxAttempts   int `env:"NOTIFY_MAX_ATTEMPTS" envDefault:"5"`
	ReaperIntervalS     int `env:"REAPER_INTERVAL_S" envDefault:"60"`

	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv   string `env:"APP_ENV" envDefault:"production"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if cfg.PlatformFeePercent < 0 || cfg.PlatformFeePercent > 100 {
		return nil, fmt.Errorf("config.Load: PLATFORM_FEE_PERCENT out of range: %v", cfg.PlatformFeePercent)
	}
	return &cfg, nil
}

// FeeRate returns the platform fee percentage as a decimal, pinned once at
// load so every settlement in a process sees the same representation.
func (c *Config) FeeRate() decimal.Decimal {
	return decimal.NewFromFloat(c.PlatformFeePercent)
}

func (c *Config) OrderTTL() time.Duration {
	return time.Duration(c.OrderTTLMinutes) * time.Minute
}
