package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Addr        string `env:"KEEPUP_ADDR" envDefault:":5000"`
	BaseURL     string `env:"KEEPUP_BASE_URL" envDefault:"http://localhost:5000"`
	DBPath      string `env:"KEEPUP_DB_PATH" envDefault:"keepup.db"`
	TokenSecret string `env:"KEEPUP_TOKEN_SECRET" envDefault:"dev-only-secret"`
	Email       EmailConfig
}

type EmailConfig struct {
	From     string `env:"KEEPUP_SMTP_FROM" envDefault:"KeepUp <keepupauto@gmail.com>"`
	SMTPHost string `env:"KEEPUP_SMTP_HOST"`
	SMTPPort string `env:"KEEPUP_SMTP_PORT" envDefault:"587"`
	SMTPUser string `env:"KEEPUP_SMTP_USER"`
	SMTPPass string `env:"KEEPUP_SMTP_PASS"`
}

// Load reads configuration from the environment. A .env file, if any, is
// loaded by the caller before this runs.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
