// Package config provides configuration management for the analyst.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	apperrors "price-analyst/internal/errors"
	"price-analyst/internal/logging"
	"price-analyst/internal/marketdata"
	"price-analyst/internal/models"
)

// Config holds all application configuration.
type Config struct {
	Data          DataConfig         `mapstructure:"data"`
	Cache         CacheConfig        `mapstructure:"cache"`
	Scan          ScanConfig         `mapstructure:"scan"`
	Narrative     NarrativeConfig    `mapstructure:"narrative"`
	Store         StoreConfig        `mapstructure:"store"`
	Watch         WatchConfig        `mapstructure:"watch"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Logging       LoggingConfig      `mapstructure:"logging"`
	Credentials   Credentials        `mapstructure:"-"` // Loaded separately

	dir string
}

// DataConfig controls provider selection and series planning.
type DataConfig struct {
	IntradayOrder  []string       `mapstructure:"intraday_order"`
	DailyOrder     []string       `mapstructure:"daily_order"`
	YahooRelays    []string       `mapstructure:"yahoo_relays"`
	Scraper        bool           `mapstructure:"scraper"`
	AttemptTimeout time.Duration  `mapstructure:"attempt_timeout"`
	Timezone       string         `mapstructure:"timezone"`
	DefaultRange   string         `mapstructure:"default_range"`
	RateLimits     map[string]int `mapstructure:"rate_limits"` // requests per minute
}

// CacheConfig controls the in-memory freshness cache.
type CacheConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	IntradayTTL time.Duration `mapstructure:"intraday_ttl"`
	DailyTTL    time.Duration `mapstructure:"daily_ttl"`
	Capacity    int           `mapstructure:"capacity"`
}

// ScanConfig controls batch scans.
type ScanConfig struct {
	Delay         time.Duration `mapstructure:"delay"`
	Benchmark     string        `mapstructure:"benchmark"`
	MinConfidence int           `mapstructure:"min_confidence"`
}

// NarrativeConfig controls the optional LLM narrative.
type NarrativeConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Model       string        `mapstructure:"model"`
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
}

// StoreConfig controls the SQLite store.
type StoreConfig struct {
	Path    string `mapstructure:"path"`
	Archive bool   `mapstructure:"archive"`
	History bool   `mapstructure:"history"`
}

// WatchConfig controls the scheduled watch mode.
type WatchConfig struct {
	Schedule    string   `mapstructure:"schedule"`
	MetricsAddr string   `mapstructure:"metrics_addr"`
	Symbols     []string `mapstructure:"symbols"`
	Range       string   `mapstructure:"range"`
}

// NotificationConfig holds watch-mode alert settings.
type NotificationConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Level    string         `mapstructure:"level"` // all, signals_only, errors_only
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// WebhookConfig holds webhook notification settings.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

// TelegramConfig holds Telegram notification settings.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

// LoggingConfig mirrors logging.LogConfig.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	Path       string `mapstructure:"path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// Credentials holds API credentials from credentials.toml and the
// environment. Keys saved with `creds set` live in the store instead.
type Credentials struct {
	TwelveData   APIKey          `mapstructure:"twelvedata"`
	Polygon      APIKey          `mapstructure:"polygon"`
	Finnhub      APIKey          `mapstructure:"finnhub"`
	AlphaVantage APIKey          `mapstructure:"alphavantage"`
	Kite         KiteCredentials `mapstructure:"kite"`
	OpenAI       APIKey          `mapstructure:"openai"`
	Security     SecurityKeys    `mapstructure:"security"`
}

// APIKey holds a single provider key.
type APIKey struct {
	APIKey string `mapstructure:"api_key"`
}

// KiteCredentials holds Zerodha Kite Connect credentials.
type KiteCredentials struct {
	APIKey      string `mapstructure:"api_key"`
	AccessToken string `mapstructure:"access_token"`
}

// SecurityKeys holds the master key used to seal stored credentials.
type SecurityKeys struct {
	MasterKey string `mapstructure:"master_key"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/price-analyst"
	}
	return filepath.Join(home, ".config", "price-analyst")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. Missing files
// are created from templates and the defaults are used.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{dir: configDir}

	// .env files never override variables already set.
	for _, path := range []string{filepath.Join(configDir, ".env"), ".env"} {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
	}

	if err := loadConfigFile(configDir, cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	if err := loadCredentials(configDir, &cfg.Credentials); err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration without touching the disk.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{dir: DefaultConfigDir()}
	_ = v.Unmarshal(cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data.intraday_order", providerNames(marketdata.DefaultIntradayOrder))
	v.SetDefault("data.daily_order", providerNames(marketdata.DefaultDailyOrder))
	v.SetDefault("data.yahoo_relays", []string{})
	v.SetDefault("data.scraper", true)
	v.SetDefault("data.attempt_timeout", marketdata.DefaultAttemptTimeout)
	v.SetDefault("data.timezone", "UTC")
	v.SetDefault("data.default_range", string(models.DefaultRange))
	v.SetDefault("data.rate_limits", map[string]int{})

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.intraday_ttl", marketdata.DefaultIntradayTTL)
	v.SetDefault("cache.daily_ttl", marketdata.DefaultDailyTTL)
	v.SetDefault("cache.capacity", marketdata.DefaultCacheCapacity)

	v.SetDefault("scan.delay", 1500*time.Millisecond)
	v.SetDefault("scan.benchmark", "")
	v.SetDefault("scan.min_confidence", 0)

	v.SetDefault("narrative.enabled", false)
	v.SetDefault("narrative.model", "gpt-4o-mini")
	v.SetDefault("narrative.base_url", "")
	v.SetDefault("narrative.timeout", 20*time.Second)
	v.SetDefault("narrative.max_tokens", 400)
	v.SetDefault("narrative.temperature", 0.3)

	v.SetDefault("store.path", "analyst.db")
	v.SetDefault("store.archive", true)
	v.SetDefault("store.history", true)

	v.SetDefault("watch.schedule", "*/15 * * * *")
	v.SetDefault("watch.metrics_addr", ":9108")
	v.SetDefault("watch.symbols", []string{})
	v.SetDefault("watch.range", string(models.Range1D))

	v.SetDefault("notifications.enabled", false)
	v.SetDefault("notifications.level", "all")
	v.SetDefault("notifications.webhook.enabled", false)
	v.SetDefault("notifications.webhook.url", "")
	v.SetDefault("notifications.telegram.enabled", false)
	v.SetDefault("notifications.telegram.bot_token", "")
	v.SetDefault("notifications.telegram.chat_id", "")

	logDefaults := logging.DefaultLogConfig()
	v.SetDefault("logging.level", logDefaults.Level)
	v.SetDefault("logging.console", logDefaults.Console)
	v.SetDefault("logging.file", logDefaults.File)
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.max_size", logDefaults.MaxSize)
	v.SetDefault("logging.max_backups", logDefaults.MaxBackups)
	v.SetDefault("logging.max_age", logDefaults.MaxAge)
}

func providerNames(ids []marketdata.ProviderID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func loadConfigFile(configDir string, cfg *Config) error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
		if err := createTemplate(configDir, "config.toml", configTemplate, 0644); err != nil {
			return err
		}
	}

	return v.Unmarshal(cfg)
}

func loadCredentials(configDir string, creds *Credentials) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
		// Use restricted permissions for credentials file
		return createTemplate(configDir, "credentials.toml", credentialsTemplate, 0600)
	}

	return v.Unmarshal(creds)
}

func applyEnvOverrides(cfg *Config) {
	overrides := []struct {
		env    string
		target *string
	}{
		{"TWELVEDATA_API_KEY", &cfg.Credentials.TwelveData.APIKey},
		{"POLYGON_API_KEY", &cfg.Credentials.Polygon.APIKey},
		{"FINNHUB_API_KEY", &cfg.Credentials.Finnhub.APIKey},
		{"ALPHAVANTAGE_API_KEY", &cfg.Credentials.AlphaVantage.APIKey},
		{"KITE_API_KEY", &cfg.Credentials.Kite.APIKey},
		{"KITE_ACCESS_TOKEN", &cfg.Credentials.Kite.AccessToken},
		{"OPENAI_API_KEY", &cfg.Credentials.OpenAI.APIKey},
		{"ANALYST_MASTER_KEY", &cfg.Credentials.Security.MasterKey},
		{"ANALYST_LOG_LEVEL", &cfg.Logging.Level},
		{"ANALYST_TIMEZONE", &cfg.Data.Timezone},
		{"TELEGRAM_BOT_TOKEN", &cfg.Notifications.Telegram.BotToken},
	}
	for _, o := range overrides {
		if v := strings.TrimSpace(os.Getenv(o.env)); v != "" {
			*o.target = v
		}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	invalid := func(field string, value interface{}, msg string) error {
		return fmt.Errorf("%w: %v", apperrors.ErrConfigInvalid, apperrors.NewValidationError(field, value, msg))
	}

	for field, names := range map[string][]string{
		"data.intraday_order": c.Data.IntradayOrder,
		"data.daily_order":    c.Data.DailyOrder,
	} {
		if len(names) == 0 {
			return invalid(field, names, "must name at least one provider")
		}
		if _, err := ParseOrder(names); err != nil {
			return invalid(field, names, err.Error())
		}
	}
	for name := range c.Data.RateLimits {
		if _, ok := marketdata.ParseProviderID(name); !ok {
			return invalid("data.rate_limits", name, "unknown provider")
		}
	}
	if c.Data.AttemptTimeout <= 0 {
		return invalid("data.attempt_timeout", c.Data.AttemptTimeout, "must be positive")
	}
	if _, err := time.LoadLocation(c.Data.Timezone); err != nil {
		return invalid("data.timezone", c.Data.Timezone, "unknown time zone")
	}
	if _, ok := models.ParseRange(c.Data.DefaultRange); !ok {
		return invalid("data.default_range", c.Data.DefaultRange, "unknown range")
	}

	if c.Cache.Enabled && (c.Cache.IntradayTTL <= 0 || c.Cache.DailyTTL <= 0 || c.Cache.Capacity <= 0) {
		return invalid("cache", c.Cache, "ttls and capacity must be positive")
	}

	if c.Scan.Delay < 0 {
		return invalid("scan.delay", c.Scan.Delay, "must not be negative")
	}
	if c.Scan.MinConfidence < 0 || c.Scan.MinConfidence > 100 {
		return invalid("scan.min_confidence", c.Scan.MinConfidence, "must be between 0 and 100")
	}

	if c.Narrative.Enabled && c.Narrative.Model == "" {
		return invalid("narrative.model", c.Narrative.Model, "required when narrative is enabled")
	}
	if c.Narrative.Temperature < 0 || c.Narrative.Temperature > 2 {
		return invalid("narrative.temperature", c.Narrative.Temperature, "must be between 0 and 2")
	}

	if c.Store.Path == "" {
		return invalid("store.path", c.Store.Path, "required")
	}

	if _, err := cron.ParseStandard(c.Watch.Schedule); err != nil {
		return invalid("watch.schedule", c.Watch.Schedule, err.Error())
	}
	if _, ok := models.ParseRange(c.Watch.Range); !ok {
		return invalid("watch.range", c.Watch.Range, "unknown range")
	}

	switch c.Notifications.Level {
	case "all", "signals_only", "errors_only":
	default:
		return invalid("notifications.level", c.Notifications.Level, "must be all, signals_only or errors_only")
	}
	if n := c.Notifications; n.Enabled {
		if n.Webhook.Enabled && n.Webhook.URL == "" {
			return invalid("notifications.webhook.url", n.Webhook.URL, "required when the webhook is enabled")
		}
		if n.Telegram.Enabled && (n.Telegram.BotToken == "" || n.Telegram.ChatID == "") {
			return invalid("notifications.telegram", "", "bot_token and chat_id are required when telegram is enabled")
		}
	}

	return nil
}

// ParseOrder converts provider names into IDs.
func ParseOrder(names []string) ([]marketdata.ProviderID, error) {
	ids := make([]marketdata.ProviderID, 0, len(names))
	for _, n := range names {
		id, ok := marketdata.ParseProviderID(n)
		if !ok {
			return nil, fmt.Errorf("unknown provider %q", n)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Dir returns the directory the configuration was loaded from.
func (c *Config) Dir() string {
	return c.dir
}

// StorePath resolves the database path against the config directory.
func (c *Config) StorePath() string {
	if c.Store.Path == ":memory:" || filepath.IsAbs(c.Store.Path) {
		return c.Store.Path
	}
	return filepath.Join(c.dir, c.Store.Path)
}

// Location returns the configured market time zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Data.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DefaultRange returns the configured default range tag.
func (c *Config) DefaultRange() models.RangeTag {
	if tag, ok := models.ParseRange(c.Data.DefaultRange); ok {
		return tag
	}
	return models.DefaultRange
}

// WatchRange returns the range tag watch mode analyzes.
func (c *Config) WatchRange() models.RangeTag {
	if tag, ok := models.ParseRange(c.Watch.Range); ok {
		return tag
	}
	return models.Range1D
}

// Orders returns the validated intraday and daily provider orders.
func (c *Config) Orders() (intraday, daily []marketdata.ProviderID) {
	intraday, _ = ParseOrder(c.Data.IntradayOrder)
	daily, _ = ParseOrder(c.Data.DailyOrder)
	return intraday, daily
}

// RateLimit returns the configured budget for id, or def when unset.
func (c *Config) RateLimit(id marketdata.ProviderID, def int) int {
	for name, rpm := range c.Data.RateLimits {
		if p, ok := marketdata.ParseProviderID(name); ok && p == id {
			return rpm
		}
	}
	return def
}

// ProviderCredentials returns the file and environment credentials keyed by
// provider. Kite's is "api_key:access_token".
func (c *Config) ProviderCredentials() marketdata.Credentials {
	creds := marketdata.Credentials{
		marketdata.TwelveData:   c.Credentials.TwelveData.APIKey,
		marketdata.Polygon:      c.Credentials.Polygon.APIKey,
		marketdata.Finnhub:      c.Credentials.Finnhub.APIKey,
		marketdata.AlphaVantage: c.Credentials.AlphaVantage.APIKey,
	}
	if k := c.Credentials.Kite; k.APIKey != "" && k.AccessToken != "" {
		creds[marketdata.Kite] = k.APIKey + ":" + k.AccessToken
	}
	for id, v := range creds {
		if strings.TrimSpace(v) == "" {
			delete(creds, id)
		}
	}
	return creds
}

// LogConfig converts the logging section.
func (c *Config) LogConfig() logging.LogConfig {
	path := c.Logging.Path
	if path == "" {
		path = filepath.Join(c.dir, "logs", "analyst.log")
	}
	return logging.LogConfig{
		Level:      c.Logging.Level,
		Console:    c.Logging.Console,
		File:       c.Logging.File,
		FilePath:   path,
		MaxSize:    c.Logging.MaxSize,
		MaxBackups: c.Logging.MaxBackups,
		MaxAge:     c.Logging.MaxAge,
	}
}
