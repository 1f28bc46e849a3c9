// Package config loads certmill settings from an optional YAML file, a
// .env file, and environment variables, in increasing order of precedence.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// SMTPConfig holds the mail submission endpoint and credentials. The
// password is an app-level credential held in memory for the batch only.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	From     string `yaml:"from"`
	Password string `yaml:"password"`
}

// RenderConfig holds the external renderer binaries and resolution.
type RenderConfig struct {
	Soffice  string `yaml:"soffice"`
	Pdftoppm string `yaml:"pdftoppm"`
	DPI      int    `yaml:"dpi"`
}

// Config is the full certmill configuration.
type Config struct {
	Provider     string       `yaml:"provider"` // smtp | resend | noop
	SMTP         SMTPConfig   `yaml:"smtp"`
	ResendAPIKey string       `yaml:"resend_api_key"`
	ResendFrom   string       `yaml:"resend_from"`
	Render       RenderConfig `yaml:"render"`
	EmailColumn  string       `yaml:"email_column"`
	OutputDir    string       `yaml:"output_dir"`
	DBPath       string       `yaml:"db_path"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Provider: "smtp",
		SMTP: SMTPConfig{
			Host: "smtp.gmail.com",
			Port: 465,
		},
		Render: RenderConfig{
			Soffice:  "soffice",
			Pdftoppm: "pdftoppm",
			DPI:      150,
		},
		EmailColumn: "EMAIL",
		OutputDir:   "output",
		DBPath:      "certmill.db",
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// any), then .env, then CERTMILL_* environment variables.
// PRE: path may be empty; when set it must point to a readable YAML file
// POST: Returns the merged configuration
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// A missing .env is fine; explicit env always wins below.
	_ = godotenv.Load()

	overlayEnv(&cfg)
	return cfg, nil
}

func overlayEnv(cfg *Config) {
	setString(&cfg.Provider, "CERTMILL_PROVIDER")
	setString(&cfg.SMTP.Host, "CERTMILL_SMTP_HOST")
	setInt(&cfg.SMTP.Port, "CERTMILL_SMTP_PORT")
	setString(&cfg.SMTP.From, "CERTMILL_SMTP_FROM")
	setString(&cfg.SMTP.Password, "CERTMILL_SMTP_PASSWORD")
	setString(&cfg.ResendAPIKey, "CERTMILL_RESEND_API_KEY")
	setString(&cfg.ResendFrom, "CERTMILL_RESEND_FROM")
	setString(&cfg.Render.Soffice, "CERTMILL_SOFFICE")
	setString(&cfg.Render.Pdftoppm, "CERTMILL_PDFTOPPM")
	setInt(&cfg.Render.DPI, "CERTMILL_RENDER_DPI")
	setString(&cfg.EmailColumn, "CERTMILL_EMAIL_COLUMN")
	setString(&cfg.OutputDir, "CERTMILL_OUTPUT_DIR")
	setString(&cfg.DBPath, "CERTMILL_DB_PATH")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = n
		}
	}
}
