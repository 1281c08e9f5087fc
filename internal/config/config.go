package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Search   SearchConfig   `mapstructure:"search"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Games    GamesConfig    `mapstructure:"games"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// APIConfig holds show-directory API and socket configuration
type APIConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	UserID           string        `mapstructure:"user_id"`
	BearerToken      string        `mapstructure:"bearer_token"`
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxRetries       int           `mapstructure:"max_retries"`
	RetryDelayBase   time.Duration `mapstructure:"retry_delay_base"`
	ReconnectBackoff time.Duration `mapstructure:"reconnect_backoff"`
	DiscoveryBackoff time.Duration `mapstructure:"discovery_backoff"`
}

// SearchConfig holds search-engine query configuration
type SearchConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxWorkers  int           `mapstructure:"max_workers"`
	OpenBrowser bool          `mapstructure:"open_browser"`
}

// CacheConfig holds response-cache configuration
type CacheConfig struct {
	DBPath  string `mapstructure:"db_path"`
	DumpDir string `mapstructure:"dump_dir"`
}

// GamesConfig holds game-record persistence configuration
type GamesConfig struct {
	Dir         string `mapstructure:"dir"`
	ReplayPath  string `mapstructure:"replay_path"`
	MessagesLog string `mapstructure:"messages_log"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	setDefaults(v)

	v.SetEnvPrefix("QUIZORACLE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// API defaults
	v.SetDefault("api.base_url", "https://api-quiz.hype.space")
	v.SetDefault("api.timeout", "30s")
	v.SetDefault("api.max_retries", 3)
	v.SetDefault("api.retry_delay_base", "1s")
	v.SetDefault("api.reconnect_backoff", "2s")
	v.SetDefault("api.discovery_backoff", "10s")

	// Search defaults
	v.SetDefault("search.base_url", "https://www.google.co.uk/search?pws=0&q=")
	v.SetDefault("search.timeout", "10s")
	v.SetDefault("search.max_workers", 10)
	v.SetDefault("search.open_browser", false)

	// Cache defaults
	v.SetDefault("cache.db_path", "./db/cache.sqlite")
	v.SetDefault("cache.dump_dir", "./db")

	// Games defaults
	v.SetDefault("games.dir", "./games")
	v.SetDefault("games.replay_path", "./games/replay_results.json")
	v.SetDefault("games.messages_log", "./games/messages.log")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.API.Timeout < time.Second {
		return fmt.Errorf("api.timeout must be at least 1 second")
	}
	if c.API.MaxRetries < 1 {
		return fmt.Errorf("api.max_retries must be at least 1")
	}
	if c.API.ReconnectBackoff <= 0 {
		return fmt.Errorf("api.reconnect_backoff must be positive")
	}
	if c.API.DiscoveryBackoff <= 0 {
		return fmt.Errorf("api.discovery_backoff must be positive")
	}

	if c.Search.BaseURL == "" {
		return fmt.Errorf("search.base_url is required")
	}
	if c.Search.MaxWorkers < 1 {
		return fmt.Errorf("search.max_workers must be at least 1")
	}

	if c.Cache.DBPath == "" {
		return fmt.Errorf("cache.db_path is required")
	}
	if c.Cache.DumpDir == "" {
		return fmt.Errorf("cache.dump_dir is required")
	}

	if c.Games.Dir == "" {
		return fmt.Errorf("games.dir is required")
	}
	if c.Games.ReplayPath == "" {
		return fmt.Errorf("games.replay_path is required")
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
