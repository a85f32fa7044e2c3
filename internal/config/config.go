// Package config provides configuration management for the application.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	RabbitMQ  RabbitMQConfig
	Kick      KickConfig
	Feed      FeedConfig
	Downloads DownloadsConfig
	Logging   LoggingConfig
}

// ServerConfig contains HTTP server configuration.
// An empty APIKeys list leaves the control API unauthenticated.
type ServerConfig struct {
	APIKeys         []string
	Port            int
	ShutdownTimeout time.Duration
}

// DatabaseConfig contains database connection configuration for the download registry.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type DatabaseConfig struct {
	Host           string
	Name           string
	User           string
	Password       string
	SSLMode        string
	Port           int
	MaxConnections int
	MinConnections int
	MaxIdleTime    time.Duration
	MaxLifetime    time.Duration
	AutoMigrate    bool
}

// RedisConfig contains the recent-channels store configuration.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	RecentKey   string
	RecentLimit int
}

// RabbitMQConfig contains download event publishing configuration.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type RabbitMQConfig struct {
	Enabled  bool
	Host     string
	User     string
	Password string
	Exchange string
	Port     int
}

// KickConfig contains upstream clip listing configuration.
type KickConfig struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// FeedConfig contains pagination engine configuration.
type FeedConfig struct {
	FailureThreshold int
}

// DownloadsConfig contains transfer configuration.
type DownloadsConfig struct {
	Dir              string
	MaxParallel      int
	ProgressInterval time.Duration
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level string
	File  string
}

// Load loads configuration from file and environment variables.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvPrefix("APP")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// No config file; defaults and env vars apply.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the engines cannot run with.
func (c *Config) Validate() error {
	if c.Feed.FailureThreshold < 1 {
		return fmt.Errorf("invalid config: feed.failurethreshold must be >= 1, got %d", c.Feed.FailureThreshold)
	}
	if c.Downloads.MaxParallel < 1 {
		return fmt.Errorf("invalid config: downloads.maxparallel must be >= 1, got %d", c.Downloads.MaxParallel)
	}
	if c.Downloads.Dir == "" {
		return fmt.Errorf("invalid config: downloads.dir is required")
	}
	if c.Kick.BaseURL == "" {
		return fmt.Errorf("invalid config: kick.baseurl is required")
	}
	return nil
}

func setDefaults() {
	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.shutdowntimeout", 30*time.Second)
	viper.SetDefault("server.apikeys", []string{})

	// Database
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "kickclips")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.maxconnections", 10)
	viper.SetDefault("database.minconnections", 2)
	viper.SetDefault("database.maxidletime", 10*time.Minute)
	viper.SetDefault("database.maxlifetime", 1*time.Hour)
	viper.SetDefault("database.automigrate", true)

	// Redis
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.recentkey", "recent_channels")
	viper.SetDefault("redis.recentlimit", 5)

	// RabbitMQ
	viper.SetDefault("rabbitmq.enabled", false)
	viper.SetDefault("rabbitmq.host", "localhost")
	viper.SetDefault("rabbitmq.port", 5672)
	viper.SetDefault("rabbitmq.user", "guest")
	viper.SetDefault("rabbitmq.password", "guest")
	viper.SetDefault("rabbitmq.exchange", "kickclips.downloads")

	// Kick
	viper.SetDefault("kick.baseurl", "https://kick.com/api/v2")
	viper.SetDefault("kick.useragent", "kick-clips-go/1.0")
	viper.SetDefault("kick.timeout", 15*time.Second)

	// Feed
	viper.SetDefault("feed.failurethreshold", 3)

	// Downloads
	viper.SetDefault("downloads.dir", "./downloads")
	viper.SetDefault("downloads.maxparallel", 2)
	viper.SetDefault("downloads.progressinterval", 500*time.Millisecond)

	// Logging
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.file", "")
}
