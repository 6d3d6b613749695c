package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"kakeibo/internal/log"
	"kakeibo/internal/slack"
)

type Config struct {
	// HTTP Server
	Port string

	// Ledger files
	KakeiboDir string

	// Slack
	SlackWebhookURL        string
	SlackWebhookRejected   bool // set when SLACK_WEBHOOK_URL was present but not a Slack webhook
	SlackSigningSecret     string
	SlackVerificationToken string
	SlackTimeout           time.Duration

	// Delivery log
	SQLiteDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	RateLimitPerMinute int
	LogLevel           string
}

func Load() *Config {
	cfg := &Config{
		Port:       getEnv("PORT", "8000"),
		KakeiboDir: getEnv("KAKEIBO_DIR", ""),

		SlackSigningSecret:     getEnv("SLACK_SIGNING_SECRET", ""),
		SlackVerificationToken: getEnv("SLACK_VERIFICATION_TOKEN", ""),
		SlackTimeout:           getEnvDuration("SLACK_TIMEOUT", slack.DefaultTimeout),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "kakeibo"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "report_requests"),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}

	// Only exact Slack webhook URLs are accepted; anything else is dropped.
	if webhook := getEnv("SLACK_WEBHOOK_URL", ""); webhook != "" {
		if slack.ValidWebhookURL(webhook) {
			cfg.SlackWebhookURL = webhook
		} else {
			cfg.SlackWebhookRejected = true
		}
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid.
// An unset or unusable KAKEIBO_DIR is not an error; the server reports it
// through its health endpoint instead.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SlackTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid slack timeout %v: must be at least 1 second", c.SlackTimeout))
	} else if c.SlackTimeout > time.Minute {
		errors = append(errors, fmt.Sprintf("invalid slack timeout %v: must be at most 1 minute", c.SlackTimeout))
	}

	if c.SQLiteDBPath != "" {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL: %v", err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.RateLimitPerMinute < 1 || c.RateLimitPerMinute > 10000 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be between 1 and 10000", c.RateLimitPerMinute))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// Logger builds the process logger for component at the configured level.
func (c *Config) Logger(component string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(c.LogLevel)
	cfg.Component = component
	return log.New(cfg)
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return defaultValue
}
