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

// Config holds all application configuration.
type Config struct {
	Finnhub struct {
		APIKey  string        `yaml:"api_key"`
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"finnhub"`
	AlphaVantage struct {
		APIKey  string `yaml:"api_key"`
		BaseURL string `yaml:"base_url"`
	} `yaml:"alpha_vantage"`
	ETL struct {
		Exchange       string `yaml:"exchange"`
		BatchSize      int    `yaml:"batch_size"`
		RateLimitMS    *int   `yaml:"rate_limit_ms"` // nil means default; 0 disables spacing
		MaxConcurrent  int    `yaml:"max_concurrent"`
		PriceDays      int    `yaml:"price_days"`
		PriceSource    string `yaml:"price_source"`
		EnrichProfiles bool   `yaml:"enrich_profiles"`
	} `yaml:"etl"`
	Schedule struct {
		FullCron   string `yaml:"full_cron"`
		PricesCron string `yaml:"prices_cron"`
		RunOnStart bool   `yaml:"run_on_start"`
	} `yaml:"schedule"`
	Database struct {
		Driver          string        `yaml:"driver"`
		SQLitePath      string        `yaml:"sqlite_path"`
		PostgresURL     string        `yaml:"postgres_url"`
		MaxConns        int32         `yaml:"max_conns"`
		MinConns        int32         `yaml:"min_conns"`
		MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	} `yaml:"database"`
	Redis struct {
		Addr     string        `yaml:"addr"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		TTL      time.Duration `yaml:"ttl"`
	} `yaml:"redis"`
	Server struct {
		Addr         string        `yaml:"addr"`
		CORSOrigins  []string      `yaml:"cors_origins"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"server"`
	Ranking struct {
		Paging string `yaml:"paging"`
	} `yaml:"ranking"`
	Logging struct {
		Level      string `yaml:"level"`
		Format     string `yaml:"format"`
		Dir        string `yaml:"dir"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
	} `yaml:"logging"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file and a .env file, then applies
// environment variable overrides and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	// .env only fills variables that are not already set.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Finnhub.APIKey, "FINNHUB_API_KEY")
	setString(&c.AlphaVantage.APIKey, "ALPHA_VANTAGE_API_KEY")
	setInt(&c.ETL.BatchSize, "ETL_BATCH_SIZE")
	if v := os.Getenv("ETL_RATE_LIMIT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.ETL.RateLimitMS = &n
		}
	}
	setString(&c.Database.Driver, "DATABASE_DRIVER")
	setString(&c.Database.PostgresURL, "DATABASE_URL")
	setString(&c.Database.SQLitePath, "SQLITE_PATH")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Addr = ":" + strings.TrimPrefix(v, ":")
	}
	if v := os.Getenv("CORS_ORIGIN"); v != "" {
		c.Server.CORSOrigins = splitList(v)
	}
	setString(&c.Logging.Level, "LOG_LEVEL")
	setString(&c.Logging.Format, "LOG_FORMAT")
	setString(&c.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	setString(&c.Telegram.ChatID, "TELEGRAM_CHAT_ID")
	setString(&c.Proxy, "HTTPS_PROXY")
	setString(&c.Ranking.Paging, "RANKING_PAGING")
	if v := os.Getenv("RUN_ON_START"); v != "" {
		c.Schedule.RunOnStart = v == "true" || v == "1"
	}
	// DATABASE_URL alone selects Postgres.
	if c.Database.Driver == "" && os.Getenv("DATABASE_URL") != "" {
		c.Database.Driver = "postgres"
	}
}

func (c *Config) applyDefaults() {
	if c.Finnhub.Timeout == 0 {
		c.Finnhub.Timeout = 10 * time.Second
	}
	if c.ETL.Exchange == "" {
		c.ETL.Exchange = "US"
	}
	if c.ETL.BatchSize == 0 {
		c.ETL.BatchSize = 10
	}
	if c.ETL.RateLimitMS == nil {
		ms := 100
		c.ETL.RateLimitMS = &ms
	}
	if c.ETL.MaxConcurrent == 0 {
		c.ETL.MaxConcurrent = 1
	}
	if c.ETL.PriceDays == 0 {
		c.ETL.PriceDays = 730
	}
	if c.ETL.PriceSource == "" {
		c.ETL.PriceSource = "finnhub"
	}
	if c.Schedule.FullCron == "" {
		c.Schedule.FullCron = "0 0 2 * * *"
	}
	if c.Schedule.PricesCron == "" {
		c.Schedule.PricesCron = "0 30 21 * * 1-5"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/stocklens.db"
	}
	if c.Redis.TTL == 0 {
		c.Redis.TTL = 10 * time.Minute
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":3001"
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"http://localhost:5173"}
	}
	if c.Ranking.Paging == "" {
		c.Ranking.Paging = "global"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "pretty"
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = 50
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = 5
	}
	if c.Logging.MaxAgeDays == 0 {
		c.Logging.MaxAgeDays = 14
	}
}

// Validate checks the settings every command depends on. Commands that call
// upstream APIs check their keys through RequireFinnhub.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("database.sqlite_path is required for the sqlite driver")
		}
	case "postgres":
		if c.Database.PostgresURL == "" {
			return fmt.Errorf("database.postgres_url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver)
	}
	if c.ETL.BatchSize < 1 {
		return fmt.Errorf("etl.batch_size must be positive")
	}
	if c.ETL.RateLimitMS != nil && *c.ETL.RateLimitMS < 0 {
		return fmt.Errorf("etl.rate_limit_ms must not be negative")
	}
	if c.ETL.MaxConcurrent < 1 {
		return fmt.Errorf("etl.max_concurrent must be positive")
	}
	if c.ETL.PriceDays < 1 {
		return fmt.Errorf("etl.price_days must be positive")
	}
	switch c.ETL.PriceSource {
	case "finnhub", "alphavantage":
	default:
		return fmt.Errorf("etl.price_source must be finnhub or alphavantage, got %q", c.ETL.PriceSource)
	}
	switch c.Ranking.Paging {
	case "global", "window":
	default:
		return fmt.Errorf("ranking.paging must be global or window, got %q", c.Ranking.Paging)
	}
	if c.Telegram.BotToken != "" && c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required when telegram.bot_token is set")
	}
	return nil
}

// RequireFinnhub reports a missing Finnhub API key.
func (c *Config) RequireFinnhub() error {
	if c.Finnhub.APIKey == "" {
		return fmt.Errorf("finnhub.api_key is required (set FINNHUB_API_KEY)")
	}
	return nil
}

// RateLimit is the minimum spacing between upstream requests.
func (c *Config) RateLimit() time.Duration {
	if c.ETL.RateLimitMS == nil {
		return 0
	}
	return time.Duration(*c.ETL.RateLimitMS) * time.Millisecond
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
