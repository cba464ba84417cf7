// Package config loads runtime configuration from the environment, with an
// optional YAML file overriding defaults before environment variables apply.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults used when neither the config file nor the environment sets a value.
const (
	DefaultListenAddr  = ":8080"
	DefaultGeminiModel = "gemini-2.0-flash"
	DefaultLogPath     = "sent_emails.log.csv"
	DefaultSMTPPort    = 587
)

// Config holds every knob for both the CLI and the server. Zero values mean
// "not configured"; the caller decides which backends are mandatory.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	CSVPath    string `yaml:"csv_path"`
	Template   string `yaml:"template"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	Gemini  GeminiConfig  `yaml:"gemini"`
	Mail    MailConfig    `yaml:"mail"`
	Attempt AttemptConfig `yaml:"attempt_log"`

	RateLimitRPS   float64       `yaml:"rate_limit_rps"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type GeminiConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

type MailConfig struct {
	// Transport selects the delivery backend: "resend", "smtp", or ""
	// (disabled, sends fail with a configuration message).
	Transport string `yaml:"transport"`
	From      string `yaml:"from"`

	ResendAPIKey  string `yaml:"resend_api_key"`
	ResendBaseURL string `yaml:"resend_base_url"`

	SMTPHost     string `yaml:"smtp_host"`
	SMTPPort     int    `yaml:"smtp_port"`
	SMTPUsername string `yaml:"smtp_username"`
	SMTPPassword string `yaml:"smtp_password"`
	SMTPStartTLS bool   `yaml:"smtp_starttls"`
}

type AttemptConfig struct {
	// Backend selects the audit store: "csv" (default) or "sqlite".
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// Load builds the effective configuration. Precedence, lowest to highest:
// built-in defaults, the YAML file at path (skipped when path is empty and
// optional when it names a missing file), then environment variables.
// A .env file in the working directory is loaded first, best effort.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		ListenAddr:     DefaultListenAddr,
		LogLevel:       "info",
		LogFormat:      "text",
		RequestTimeout: 30 * time.Second,
		Gemini:         GeminiConfig{Model: DefaultGeminiModel},
		Mail:           MailConfig{SMTPPort: DefaultSMTPPort, SMTPStartTLS: true},
		Attempt:        AttemptConfig{Backend: "csv", Path: DefaultLogPath},
	}

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Config file is optional.
		case err != nil:
			return Config{}, fmt.Errorf("read config file: %w", err)
		default:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	envString(&c.ListenAddr, "LISTEN_ADDR")
	envString(&c.CSVPath, "CSV_FILE_PATH")
	envString(&c.Template, "EMAIL_TEMPLATE")
	envString(&c.LogLevel, "LOG_LEVEL")
	envString(&c.LogFormat, "LOG_FORMAT")

	envString(&c.Gemini.APIKey, "GEMINI_API_KEY")
	envString(&c.Gemini.Model, "GEMINI_MODEL")
	envString(&c.Gemini.BaseURL, "GEMINI_BASE_URL")

	envString(&c.Mail.Transport, "MAIL_TRANSPORT")
	envString(&c.Mail.From, "MAIL_FROM")
	envString(&c.Mail.ResendAPIKey, "RESEND_API_KEY")
	envString(&c.Mail.ResendBaseURL, "RESEND_BASE_URL")
	envString(&c.Mail.SMTPHost, "SMTP_HOST")
	envString(&c.Mail.SMTPUsername, "SMTP_USERNAME")
	envString(&c.Mail.SMTPPassword, "SMTP_PASSWORD")

	envString(&c.Attempt.Backend, "ATTEMPT_LOG_BACKEND")
	envString(&c.Attempt.Path, "ATTEMPT_LOG_PATH")

	if err := envInt(&c.Mail.SMTPPort, "SMTP_PORT"); err != nil {
		return err
	}
	if err := envBool(&c.Mail.SMTPStartTLS, "SMTP_STARTTLS"); err != nil {
		return err
	}
	if err := envFloat(&c.RateLimitRPS, "RATE_LIMIT_RPS"); err != nil {
		return err
	}
	if err := envDuration(&c.RequestTimeout, "REQUEST_TIMEOUT"); err != nil {
		return err
	}

	if c.Mail.Transport != "" && c.Mail.Transport != "resend" && c.Mail.Transport != "smtp" {
		return fmt.Errorf("invalid MAIL_TRANSPORT=%q: want resend, smtp, or empty", c.Mail.Transport)
	}
	if c.Attempt.Backend != "csv" && c.Attempt.Backend != "sqlite" {
		return fmt.Errorf("invalid ATTEMPT_LOG_BACKEND=%q: want csv or sqlite", c.Attempt.Backend)
	}
	return nil
}

func envString(dst *string, varName string) {
	if v := strings.TrimSpace(os.Getenv(varName)); v != "" {
		*dst = v
	}
}

func envInt(dst *int, varName string) error {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return nil
	}
	out, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	*dst = out
	return nil
}

func envFloat(dst *float64, varName string) error {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return nil
	}
	out, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	*dst = out
	return nil
}

func envBool(dst *bool, varName string) error {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return nil
	}
	out, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	*dst = out
	return nil
}

func envDuration(dst *time.Duration, varName string) error {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return nil
	}
	out, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	*dst = out
	return nil
}
