package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/spf13/viper"
)

// ConfigFileEnv names an optional YAML/TOML/JSON file read before the environment.
const ConfigFileEnv = "FINTRACK_CONFIG"

var validBackends = []string{"memory", "sqlite", "postgres"}

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int

	LogLevel string

	// Storage
	DataBackend  string
	SQLiteDBPath string
	PostgresDSN  string
	SeedExamples bool

	// Presentation
	Currency string
	Timezone string

	// Advice
	GeminiAPIKey  string
	GeminiModel   string
	AdviceTimeout time.Duration

	// Telegram
	TelegramToken        string
	TelegramAllowedUsers string
	WebAppURL            string
	InitDataMaxAge       time.Duration

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets export
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Chart cache
	ChartCacheSize int
	ChartCacheTTL  time.Duration
}

func defaults(v *viper.Viper) {
	v.SetDefault("PORT", "8081")
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 60)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DATA_BACKEND", "sqlite")
	v.SetDefault("SQLITE_DB_PATH", "./data/fintrack.db")
	v.SetDefault("POSTGRES_DSN", "")
	v.SetDefault("SEED_EXAMPLES", true)
	v.SetDefault("CURRENCY", money.RUB)
	v.SetDefault("TIMEZONE", "")
	v.SetDefault("GEMINI_API_KEY", "")
	v.SetDefault("GEMINI_MODEL", "gemini-3-flash-preview")
	v.SetDefault("ADVICE_TIMEOUT", 30*time.Second)
	v.SetDefault("TELEGRAM_TOKEN", "")
	v.SetDefault("TELEGRAM_ALLOWED_USERS", "")
	v.SetDefault("WEBAPP_URL", "")
	v.SetDefault("INIT_DATA_MAX_AGE", 24*time.Hour)
	v.SetDefault("AMQP_URL", "")
	v.SetDefault("AMQP_EXCHANGE", "fintrack")
	v.SetDefault("AMQP_QUEUE", "ledger_events")
	v.SetDefault("GOOGLE_SPREADSHEET_ID", "")
	v.SetDefault("GOOGLE_SHEET_NAME", "Transactions")
	v.SetDefault("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	v.SetDefault("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	v.SetDefault("CHART_CACHE_SIZE", 64)
	v.SetDefault("CHART_CACHE_TTL", 10*time.Minute)
}

// Load reads defaults, then the optional config file named by FINTRACK_CONFIG,
// then environment variables. Later sources win.
func Load() (*Config, error) {
	v := viper.New()
	defaults(v)
	v.AutomaticEnv()

	if path := strings.TrimSpace(os.Getenv(ConfigFileEnv)); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		Port:               v.GetString("PORT"),
		RateLimitPerMinute: v.GetInt("RATE_LIMIT_PER_MINUTE"),
		LogLevel:           v.GetString("LOG_LEVEL"),

		DataBackend:  strings.ToLower(v.GetString("DATA_BACKEND")),
		SQLiteDBPath: v.GetString("SQLITE_DB_PATH"),
		PostgresDSN:  v.GetString("POSTGRES_DSN"),
		SeedExamples: v.GetBool("SEED_EXAMPLES"),

		Currency: strings.ToUpper(v.GetString("CURRENCY")),
		Timezone: v.GetString("TIMEZONE"),

		GeminiAPIKey:  v.GetString("GEMINI_API_KEY"),
		GeminiModel:   v.GetString("GEMINI_MODEL"),
		AdviceTimeout: v.GetDuration("ADVICE_TIMEOUT"),

		TelegramToken:        v.GetString("TELEGRAM_TOKEN"),
		TelegramAllowedUsers: v.GetString("TELEGRAM_ALLOWED_USERS"),
		WebAppURL:            v.GetString("WEBAPP_URL"),
		InitDataMaxAge:       v.GetDuration("INIT_DATA_MAX_AGE"),

		AMQPURL:      v.GetString("AMQP_URL"),
		AMQPExchange: v.GetString("AMQP_EXCHANGE"),
		AMQPQueue:    v.GetString("AMQP_QUEUE"),

		GoogleSpreadsheetID:      v.GetString("GOOGLE_SPREADSHEET_ID"),
		GoogleSheetName:          v.GetString("GOOGLE_SHEET_NAME"),
		GoogleServiceAccountJSON: v.GetString("GOOGLE_SERVICE_ACCOUNT_JSON"),
		GoogleServiceAccountFile: v.GetString("GOOGLE_SERVICE_ACCOUNT_FILE"),

		ChartCacheSize: v.GetInt("CHART_CACHE_SIZE"),
		ChartCacheTTL:  v.GetDuration("CHART_CACHE_TTL"),
	}

	return cfg, nil
}

// AllowedUserIDs parses TELEGRAM_ALLOWED_USERS. An empty list allows everyone.
func (c *Config) AllowedUserIDs() ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(c.TelegramAllowedUsers, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid telegram user id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Location resolves TIMEZONE, defaulting to the process local zone.
func (c *Config) Location() (*time.Location, error) {
	if strings.TrimSpace(c.Timezone) == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// AdviceEnabled reports whether a Gemini key is configured.
func (c *Config) AdviceEnabled() bool {
	return strings.TrimSpace(c.GeminiAPIKey) != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.DataBackend == "postgres" && strings.TrimSpace(c.PostgresDSN) == "" {
		errors = append(errors, "POSTGRES_DSN is required when using postgres backend")
	}

	if money.GetCurrency(c.Currency) == nil {
		errors = append(errors, fmt.Sprintf("unknown currency '%s'", c.Currency))
	}

	if _, err := c.Location(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}

	if c.AdviceTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid advice timeout %v: must be at least 1 second", c.AdviceTimeout))
	}

	if _, err := c.AllowedUserIDs(); err != nil {
		errors = append(errors, err.Error())
	}

	if c.WebAppURL != "" {
		if u, err := url.Parse(c.WebAppURL); err != nil || u.Scheme != "https" || u.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid web app URL '%s': must be an absolute https URL", c.WebAppURL))
		}
	}

	if c.InitDataMaxAge < 0 {
		errors = append(errors, fmt.Sprintf("invalid init data max age %v: must not be negative", c.InitDataMaxAge))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
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

	if c.GoogleSpreadsheetID != "" {
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when a spreadsheet ID is set")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for sheets export")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if c.ChartCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid chart cache size %d: must be at least 1", c.ChartCacheSize))
	}
	if c.ChartCacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid chart cache TTL %v: must be at least 1 second", c.ChartCacheTTL))
	}
	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 per minute", c.RateLimitPerMinute))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateWorker checks the settings the export worker cannot run without.
func (c *Config) ValidateWorker() error {
	var errors []string
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP_URL is required for the export worker")
	}
	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, "GOOGLE_SPREADSHEET_ID is required for the export worker")
	}
	if len(errors) > 0 {
		return fmt.Errorf("worker configuration invalid:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}
