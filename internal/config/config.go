package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds all runtime configuration, loaded from CIIPA_* environment
// variables.
type Config struct {
	Port       string `env:"CIIPA_PORT" envDefault:"8080"`
	BaseURL    string `env:"CIIPA_BASE_URL" envDefault:"http://localhost:8080"`
	DBPath     string `env:"CIIPA_DB_PATH" envDefault:"ciipa.db"`
	BackupsDir string `env:"CIIPA_BACKUPS_DIR" envDefault:"backups"`
	UploadDir  string `env:"CIIPA_UPLOAD_DIR" envDefault:"web/static/img"`
	Templates  string `env:"CIIPA_TEMPLATES" envDefault:"web/templates/*.html"`
	LogLevel   string `env:"CIIPA_LOG_LEVEL" envDefault:"info"`

	// SecretKey signs password-reset and pending-2FA tokens.
	SecretKey string `env:"CIIPA_SECRET_KEY,required"`

	// Postmark delivery. When the token is empty, 2FA codes are surfaced
	// on-screen instead of emailed.
	PostmarkToken string `env:"CIIPA_POSTMARK_TOKEN"`
	EmailFrom     string `env:"CIIPA_EMAIL_FROM" envDefault:"no-reply@ciipa.com"`
}

// Load parses configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
