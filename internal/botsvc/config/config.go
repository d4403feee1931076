package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Token          string        `env:"TELEGRAM_BOT_TOKEN"`
	Debug          bool          `env:"TELEGRAM_DEBUG"        envDefault:"false"`
	PollTimeout    int           `env:"TELEGRAM_POLL_TIMEOUT" envDefault:"60"`
	AssetDir       string        `env:"CARD_ASSET_DIR"        envDefault:"assets"`
	RequestTimeout time.Duration `env:"CARD_REQUEST_TIMEOUT"  envDefault:"10s"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Token == "" {
		errs = append(errs, errors.New("TELEGRAM_BOT_TOKEN is required"))
	}
	if c.PollTimeout < 0 {
		errs = append(errs, errors.New("TELEGRAM_POLL_TIMEOUT must not be negative"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("CARD_REQUEST_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}
