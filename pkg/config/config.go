package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultDataDir is where state lives when PATH_PREFIX is not set
	DefaultDataDir = "/app/data"

	// DefaultCaption is the caption template; %s is the account handle
	DefaultCaption = "New story from @%s"
)

// Config holds all configuration options for the story relay
type Config struct {
	// Instagram credentials and client settings
	Instagram InstagramConfig `yaml:"instagram" json:"instagram"`

	// Telegram destination
	Telegram TelegramConfig `yaml:"telegram" json:"telegram"`

	// Polling loop settings
	Relay RelayConfig `yaml:"relay" json:"relay"`

	// Persisted state layout and backends
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// InstagramConfig holds Instagram-specific configuration
type InstagramConfig struct {
	Username          string        `yaml:"username" json:"username"`
	Password          string        `yaml:"password" json:"-"`
	UserAgent         string        `yaml:"user_agent" json:"user_agent"`
	BaseURL           string        `yaml:"base_url" json:"base_url"`
	RequestTimeout    time.Duration `yaml:"request_timeout" json:"request_timeout"`
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
	BurstSize         int           `yaml:"burst_size" json:"burst_size"`
}

// TelegramConfig holds the bot token and destination channel
type TelegramConfig struct {
	BotToken       string        `yaml:"bot_token" json:"-"`
	ChannelID      string        `yaml:"channel_id" json:"channel_id"`
	APIEndpoint    string        `yaml:"api_endpoint" json:"api_endpoint"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
}

// RelayConfig holds the supervising loop settings
type RelayConfig struct {
	TargetUsers     []string      `yaml:"target_users" json:"target_users"`
	PollInterval    time.Duration `yaml:"poll_interval" json:"poll_interval"`
	BackoffDelay    time.Duration `yaml:"backoff_delay" json:"backoff_delay"`
	ReauthPause     time.Duration `yaml:"reauth_pause" json:"reauth_pause"`
	CaptionTemplate string        `yaml:"caption_template" json:"caption_template"`
	KeepDownloads   bool          `yaml:"keep_downloads" json:"keep_downloads"`
}

// StorageConfig holds the on-disk layout and backend selection
type StorageConfig struct {
	PathPrefix        string      `yaml:"path_prefix" json:"path_prefix"`
	DataDir           string      `yaml:"data_dir" json:"data_dir"`
	DatabaseFile      string      `yaml:"database_file" json:"database_file"`
	SessionFile       string      `yaml:"session_file" json:"session_file"`
	DownloadsDir      string      `yaml:"downloads_dir" json:"downloads_dir"`
	SeenBackend       string      `yaml:"seen_backend" json:"seen_backend"`
	SessionBackend    string      `yaml:"session_backend" json:"session_backend"`
	SessionPassphrase string      `yaml:"session_passphrase" json:"-"`
	Redis             RedisConfig `yaml:"redis" json:"redis"`
}

// RedisConfig holds connection settings for the redis seen-items backend
type RedisConfig struct {
	Addr      string `yaml:"addr" json:"addr"`
	Username  string `yaml:"username" json:"username"`
	Password  string `yaml:"password" json:"-"`
	DB        int    `yaml:"db" json:"db"`
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	File   string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Instagram: InstagramConfig{
			UserAgent:         "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
			BaseURL:           "https://www.instagram.com",
			RequestTimeout:    30 * time.Second,
			RequestsPerMinute: 30,
			BurstSize:         5,
		},
		Telegram: TelegramConfig{
			APIEndpoint:    "https://api.telegram.org/bot%s/%s",
			RequestTimeout: 60 * time.Second,
		},
		Relay: RelayConfig{
			PollInterval:    30 * time.Minute,
			BackoffDelay:    60 * time.Second,
			ReauthPause:     5 * time.Second,
			CaptionTemplate: DefaultCaption,
		},
		Storage: StorageConfig{
			DataDir:        DefaultDataDir,
			DatabaseFile:   "stories.db",
			SessionFile:    "session.json",
			DownloadsDir:   "downloads",
			SeenBackend:    "sqlite",
			SessionBackend: "file",
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				KeyPrefix: "igrelay:",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	// Variable names shared with the container deployment
	if users := os.Getenv("TARGET_USERS"); users != "" {
		c.Relay.TargetUsers = ParseTargetUsers(users)
	}
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		c.Telegram.BotToken = token
	}
	if channel := os.Getenv("TELEGRAM_CHANNEL_ID"); channel != "" {
		c.Telegram.ChannelID = channel
	}
	if username := os.Getenv("INSTAGRAM_USERNAME"); username != "" {
		c.Instagram.Username = username
	}
	if password := os.Getenv("INSTAGRAM_PASSWORD"); password != "" {
		c.Instagram.Password = password
	}
	if prefix := os.Getenv("PATH_PREFIX"); prefix != "" {
		c.Storage.PathPrefix = prefix
	}

	// Tuning knobs
	if v := os.Getenv("IGRELAY_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("IGRELAY_POLL_INTERVAL: %w", err))
		} else {
			c.Relay.PollInterval = d
		}
	}
	if v := os.Getenv("IGRELAY_BACKOFF_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("IGRELAY_BACKOFF_DELAY: %w", err))
		} else {
			c.Relay.BackoffDelay = d
		}
	}
	if v := os.Getenv("IGRELAY_REQUESTS_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("IGRELAY_REQUESTS_PER_MINUTE: %w", err))
		} else {
			c.Instagram.RequestsPerMinute = n
		}
	}
	if v := os.Getenv("IGRELAY_KEEP_DOWNLOADS"); v != "" {
		c.Relay.KeepDownloads = strings.ToLower(v) == "true"
	}

	// Backends
	if v := os.Getenv("IGRELAY_SEEN_BACKEND"); v != "" {
		c.Storage.SeenBackend = v
	}
	if v := os.Getenv("IGRELAY_SESSION_BACKEND"); v != "" {
		c.Storage.SessionBackend = v
	}
	if v := os.Getenv("IGRELAY_SESSION_PASSPHRASE"); v != "" {
		c.Storage.SessionPassphrase = v
	}
	if v := os.Getenv("IGRELAY_REDIS_ADDR"); v != "" {
		c.Storage.Redis.Addr = v
	}
	if v := os.Getenv("IGRELAY_REDIS_USERNAME"); v != "" {
		c.Storage.Redis.Username = v
	}
	if v := os.Getenv("IGRELAY_REDIS_PASSWORD"); v != "" {
		c.Storage.Redis.Password = v
	}

	// Logging
	if v := os.Getenv("IGRELAY_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("IGRELAY_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		"igrelay.yaml",
		"igrelay.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "igrelay", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "igrelay", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks the settings every command needs
func (c *Config) Validate() error {
	var errs []error

	if err := c.Instagram.Validate(); err != nil {
		errs = append(errs, err)
	}

	if c.Instagram.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests per minute cannot be negative"))
	}
	if c.Instagram.RequestTimeout <= 0 {
		errs = append(errs, errors.New("instagram request timeout must be positive"))
	}

	switch strings.ToLower(c.Storage.SeenBackend) {
	case "sqlite", "redis":
	default:
		errs = append(errs, fmt.Errorf("unknown seen backend %q", c.Storage.SeenBackend))
	}
	switch strings.ToLower(c.Storage.SessionBackend) {
	case "file", "keyring":
	default:
		errs = append(errs, fmt.Errorf("unknown session backend %q", c.Storage.SessionBackend))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}
	validFormats := map[string]bool{"console": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, errors.New("invalid log format"))
	}

	return errors.Join(errs...)
}

// ValidateRelay checks the additional settings the polling loop needs
func (c *Config) ValidateRelay() error {
	var errs []error

	if err := c.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(c.Relay.TargetUsers) == 0 {
		errs = append(errs, errors.New("TARGET_USERS must name at least one account"))
	}
	if c.Telegram.BotToken == "" {
		errs = append(errs, errors.New("TELEGRAM_BOT_TOKEN is required"))
	}
	if c.Telegram.ChannelID == "" {
		errs = append(errs, errors.New("TELEGRAM_CHANNEL_ID is required"))
	}
	if c.Relay.PollInterval <= 0 {
		errs = append(errs, errors.New("poll interval must be positive"))
	}
	if c.Relay.BackoffDelay <= 0 {
		errs = append(errs, errors.New("backoff delay must be positive"))
	}
	if c.Relay.ReauthPause < 0 {
		errs = append(errs, errors.New("reauth pause cannot be negative"))
	}
	if !strings.Contains(c.Relay.CaptionTemplate, "%s") {
		errs = append(errs, errors.New("caption template must contain %s for the account handle"))
	}

	return errors.Join(errs...)
}

// Validate checks that login credentials are present
func (ic InstagramConfig) Validate() error {
	var errs []error
	if ic.Username == "" {
		errs = append(errs, errors.New("INSTAGRAM_USERNAME is required"))
	}
	if ic.Password == "" {
		errs = append(errs, errors.New("INSTAGRAM_PASSWORD is required"))
	}
	return errors.Join(errs...)
}

// ResolvedDataDir returns the data directory after applying PATH_PREFIX
func (s StorageConfig) ResolvedDataDir() string {
	if s.PathPrefix != "" {
		return filepath.Join(s.PathPrefix, "data")
	}
	if s.DataDir == "" {
		return DefaultDataDir
	}
	return s.DataDir
}

// DatabasePath returns the absolute path of the seen-items database
func (s StorageConfig) DatabasePath() string {
	return s.resolve(s.DatabaseFile)
}

// SessionPath returns the absolute path of the session file
func (s StorageConfig) SessionPath() string {
	return s.resolve(s.SessionFile)
}

// DownloadsPath returns the transient downloads directory
func (s StorageConfig) DownloadsPath() string {
	return s.resolve(s.DownloadsDir)
}

func (s StorageConfig) resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(s.ResolvedDataDir(), name)
}

// ParseTargetUsers splits a comma separated handle list
func ParseTargetUsers(raw string) []string {
	var users []string
	for _, part := range strings.Split(raw, ",") {
		handle := strings.TrimPrefix(strings.TrimSpace(part), "@")
		if handle != "" {
			users = append(users, handle)
		}
	}
	return users
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFormat, ok := flags["log-format"].(string); ok && logFormat != "" {
		c.Logging.Format = logFormat
	}
	if prefix, ok := flags["path-prefix"].(string); ok && prefix != "" {
		c.Storage.PathPrefix = prefix
	}
	if interval, ok := flags["interval"].(time.Duration); ok && interval > 0 {
		c.Relay.PollInterval = interval
	}
	if users, ok := flags["targets"].([]string); ok && len(users) > 0 {
		c.Relay.TargetUsers = users
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Missing .env files are fine
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".igrelay.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	return config, nil
}
