package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Host        string
	Port        int
	Environment string

	// where the browser lands after an oauth flow finishes
	FrontendURL string `toml:"frontend_url"`

	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	SentryEnabled bool   `toml:"sentry_enabled"`

	// postgres (remote session persistence)
	PostgresHost   string `toml:"postgres_host"`
	PostgresPort   string `toml:"postgres_port"`
	PostgresDBName string `toml:"postgres_db_name"`

	// redis (session cache + rate limiting)
	RedisHost string `toml:"redis_host"`
	RedisPort string `toml:"redis_port"`

	// prometheus metrics server
	PrometheusMetricsHost string `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port"`

	// activity-import adapter (strava-like service)
	ActivityAPIBaseURL   string `toml:"activity_api_base_url"`
	ActivityOAuthBaseURL string `toml:"activity_oauth_base_url"`
	ActivityRedirectURI  string `toml:"activity_redirect_uri"`

	// calendar-export adapter
	CalendarID          string `toml:"calendar_id"`
	CalendarRedirectURI string `toml:"calendar_redirect_uri"`
	CalendarEventTag    string `toml:"calendar_event_tag"`

	// wellness adapter (intervals-like service)
	WellnessAPIBaseURL string `toml:"wellness_api_base_url"`

	// periodic auto import of new activities, empty = disabled
	AutoImportCronSpec   string `toml:"auto_import_cron_spec"`
	AutoImportWindowDays int    `toml:"auto_import_window_days"`

	ImportRateLimitAllowedPerMin int `toml:"import_rate_limit_allowed_per_min"`
}

type Toml struct {
	Development *Config
	Production  *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	switch strings.ToLower(env) {
	case "dev", "development":
		return t.Development, nil
	case "prod", "production":
		return t.Production, nil
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
}

func Load(env, path string) (*Config, error) {
	configBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var configToml Toml
	if err := toml.Unmarshal(configBytes, &configToml); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg, err := configToml.Get(env)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("config for env [%s] is empty", env)
	}

	cfg.Environment = env

	if cfg.AutoImportWindowDays <= 0 {
		cfg.AutoImportWindowDays = 7
	}
	if cfg.ImportRateLimitAllowedPerMin <= 0 {
		cfg.ImportRateLimitAllowedPerMin = 10
	}
	if cfg.CalendarID == "" {
		cfg.CalendarID = "primary"
	}
	if cfg.CalendarEventTag == "" {
		cfg.CalendarEventTag = "[trainlog]"
	}
	if cfg.FrontendURL == "" {
		cfg.FrontendURL = "/"
	}

	return cfg, nil
}
