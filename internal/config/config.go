package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// HTTP Server
	Port               string        `mapstructure:"port"`
	AuthJWTSecret      string        `mapstructure:"auth_jwt_secret"`
	AuthTokenTTL       time.Duration `mapstructure:"auth_token_ttl"`
	AuthIssueTokens    bool          `mapstructure:"auth_issue_tokens"`
	RateLimitPerMinute int           `mapstructure:"rate_limit_per_minute"`

	// Database
	SQLiteDBPath string `mapstructure:"sqlite_db_path"`

	// AMQP
	AMQPURL            string `mapstructure:"amqp_url"`
	AMQPExchange       string `mapstructure:"amqp_exchange"`
	AMQPEventsQueue    string `mapstructure:"amqp_events_queue"`
	AMQPRemindersQueue string `mapstructure:"amqp_reminders_queue"`

	// Ledger mirror
	LedgerMirror             string `mapstructure:"ledger_mirror"`
	GoogleSpreadsheetID      string `mapstructure:"google_spreadsheet_id"`
	GoogleSheetName          string `mapstructure:"google_sheet_name"`
	GoogleServiceAccountFile string `mapstructure:"google_service_account_file"`
	GoogleServiceAccountJSON string `mapstructure:"google_service_account_json"`

	// Workers
	OutboxBatchSize    int           `mapstructure:"outbox_batch_size"`
	OutboxInterval     time.Duration `mapstructure:"outbox_interval"`
	OutboxMaxRetries   int           `mapstructure:"outbox_max_retries"`
	BillsInterval      time.Duration `mapstructure:"bills_interval"`
	BillsCalendarAware bool          `mapstructure:"bills_calendar_aware"`

	// Analytics cache
	AnalyticsCacheSize int           `mapstructure:"analytics_cache_size"`
	AnalyticsCacheTTL  time.Duration `mapstructure:"analytics_cache_ttl"`

	LogLevel string `mapstructure:"log_level"`
}

var validMirrors = []string{"none", "memory", "sheets"}

var validLogLevels = []string{"debug", "info", "warn", "error"}

// Load reads configuration from defaults, an optional aarthik.yaml and the
// environment, in increasing order of precedence. AARTHIK_CONFIG points at an
// explicit config file.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("port", "8081")
	v.SetDefault("auth_jwt_secret", "")
	v.SetDefault("auth_token_ttl", 24*time.Hour)
	v.SetDefault("auth_issue_tokens", false)
	v.SetDefault("rate_limit_per_minute", 60)

	v.SetDefault("sqlite_db_path", "./data/aarthik.db")

	v.SetDefault("amqp_url", "")
	v.SetDefault("amqp_exchange", "aarthik")
	v.SetDefault("amqp_events_queue", "ledger_events")
	v.SetDefault("amqp_reminders_queue", "bill_reminders")

	v.SetDefault("ledger_mirror", "none")
	v.SetDefault("google_spreadsheet_id", "")
	v.SetDefault("google_sheet_name", "Ledger")
	v.SetDefault("google_service_account_file", "")
	v.SetDefault("google_service_account_json", "")

	v.SetDefault("outbox_batch_size", 10)
	v.SetDefault("outbox_interval", 5*time.Second)
	v.SetDefault("outbox_max_retries", 5)
	v.SetDefault("bills_interval", time.Hour)
	v.SetDefault("bills_calendar_aware", false)

	v.SetDefault("analytics_cache_size", 1000)
	v.SetDefault("analytics_cache_ttl", 5*time.Minute)

	v.SetDefault("log_level", "info")

	v.SetConfigType("yaml")
	if path := os.Getenv("AARTHIK_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("aarthik")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		// aarthik.yaml is optional, an explicit AARTHIK_CONFIG is not
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	c.LedgerMirror = strings.ToLower(strings.TrimSpace(c.LedgerMirror))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	return &c, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.AuthTokenTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid auth token ttl %v: must be at least 1 minute", c.AuthTokenTTL))
	}
	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		// Check if directory exists or can be created
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	// AMQP is optional; without it the ledger events are applied in-process
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPEventsQueue == "" {
			errors = append(errors, "AMQP events queue name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPRemindersQueue == "" {
			errors = append(errors, "AMQP reminders queue name cannot be empty when AMQP URL is provided")
		}
	}

	if !oneOf(c.LedgerMirror, validMirrors) {
		errors = append(errors, fmt.Sprintf("invalid ledger mirror '%s': must be one of %v", c.LedgerMirror, validMirrors))
	}
	if c.LedgerMirror == "sheets" {
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets mirror")
		}
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when using sheets mirror")
		}
		if c.GoogleServiceAccountFile == "" && c.GoogleServiceAccountJSON == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for sheets mirror")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	// Validate worker configuration
	if c.OutboxBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid outbox batch size %d: must be at least 1", c.OutboxBatchSize))
	} else if c.OutboxBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid outbox batch size %d: must be at most 1000", c.OutboxBatchSize))
	}
	if c.OutboxInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid outbox interval %v: must be at least 1 second", c.OutboxInterval))
	} else if c.OutboxInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid outbox interval %v: must be at most 24 hours", c.OutboxInterval))
	}
	if c.OutboxMaxRetries < 0 {
		errors = append(errors, fmt.Sprintf("invalid outbox max retries %d: must not be negative", c.OutboxMaxRetries))
	}
	if c.BillsInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid bills interval %v: must be at least 1 minute", c.BillsInterval))
	} else if c.BillsInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid bills interval %v: must be at most 24 hours", c.BillsInterval))
	}

	if c.AnalyticsCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid analytics cache size %d: must be at least 1", c.AnalyticsCacheSize))
	}
	if c.AnalyticsCacheTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid analytics cache ttl %v: must be positive", c.AnalyticsCacheTTL))
	}

	if !oneOf(c.LogLevel, validLogLevels) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLogLevels))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func oneOf(v string, valid []string) bool {
	for _, s := range valid {
		if v == s {
			return true
		}
	}
	return false
}
