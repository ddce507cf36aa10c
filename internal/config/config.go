// Package config provides configuration management for the application.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Gateway    GatewayConfig    `mapstructure:"gateway"`
	Webhook    WebhookConfig    `mapstructure:"webhook"`
	Bulk       BulkConfig       `mapstructure:"bulk"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Middleware MiddlewareConfig `mapstructure:"middleware"`
}

type ServerConfig struct {
	Port         string `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// GatewayConfig configures the outbound WhatsApp Cloud API client.
type GatewayConfig struct {
	BaseURL            string               `mapstructure:"base_url"`
	AccessToken        string               `mapstructure:"access_token"`
	PhoneNumberID      string               `mapstructure:"phone_number_id"`
	AppSecret          string               `mapstructure:"app_secret"`
	DefaultCountryCode string               `mapstructure:"default_country_code"`
	Timeout            int                  `mapstructure:"timeout"`
	MaxAttempts        int                  `mapstructure:"max_attempts"`
	BackoffBase        int                  `mapstructure:"backoff_base"`
	BackoffCap         int                  `mapstructure:"backoff_cap"`
	RateLimit          int                  `mapstructure:"rate_limit"`
	RateWindowMillis   int                  `mapstructure:"rate_window_millis"`
	CircuitBreaker     CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// WebhookConfig configures inbound webhook handling.
type WebhookConfig struct {
	VerifyToken string `mapstructure:"verify_token"`
	// AllowUnsigned accepts events without signature verification when no
	// app secret is configured. Strict rejection is the production default.
	AllowUnsigned bool `mapstructure:"allow_unsigned"`
	// EventTTLHours bounds how long processed event IDs are remembered for
	// redelivery suppression.
	EventTTLHours int `mapstructure:"event_ttl_hours"`
}

type CircuitBreakerConfig struct {
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"`
	Timeout          int     `mapstructure:"timeout"`
	FailureRatio     float64 `mapstructure:"failure_ratio"`
	ConsecutiveFails uint32  `mapstructure:"consecutive_fails"`
}

// BulkConfig bounds bulk campaign dispatch.
type BulkConfig struct {
	MaxContacts  int     `mapstructure:"max_contacts"`
	MinDelay     float64 `mapstructure:"min_delay"`
	MaxDelay     float64 `mapstructure:"max_delay"`
	DefaultDelay float64 `mapstructure:"default_delay"`
}

type SchedulerConfig struct {
	IntervalMinutes int `mapstructure:"interval_minutes"`
}

type MiddlewareConfig struct {
	RateLimit      int      `mapstructure:"rate_limit"`
	RateLimitBurst int      `mapstructure:"rate_limit_burst"`
	EnableCORS     bool     `mapstructure:"enable_cors"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_timeout", 10)
	viper.SetDefault("server.write_timeout", 10)
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("gateway.base_url", "https://graph.facebook.com/v18.0")
	viper.SetDefault("gateway.default_country_code", "91")
	viper.SetDefault("gateway.timeout", 30)
	viper.SetDefault("gateway.max_attempts", 3)
	viper.SetDefault("gateway.backoff_base", 2)
	viper.SetDefault("gateway.backoff_cap", 10)
	viper.SetDefault("gateway.rate_limit", 80)
	viper.SetDefault("gateway.rate_window_millis", 1000)
	viper.SetDefault("gateway.circuit_breaker.max_requests", 3)
	viper.SetDefault("gateway.circuit_breaker.interval", 60)
	viper.SetDefault("gateway.circuit_breaker.timeout", 60)
	viper.SetDefault("gateway.circuit_breaker.failure_ratio", 0.6)
	viper.SetDefault("gateway.circuit_breaker.consecutive_fails", 5)
	viper.SetDefault("webhook.verify_token", "verify_token")
	viper.SetDefault("webhook.allow_unsigned", false)
	viper.SetDefault("webhook.event_ttl_hours", 24)
	viper.SetDefault("bulk.max_contacts", 1000)
	viper.SetDefault("bulk.min_delay", 0.5)
	viper.SetDefault("bulk.max_delay", 5.0)
	viper.SetDefault("bulk.default_delay", 1.0)
	viper.SetDefault("scheduler.interval_minutes", 10)
	viper.SetDefault("middleware.rate_limit", 100)
	viper.SetDefault("middleware.rate_limit_burst", 1000)
	viper.SetDefault("middleware.enable_cors", true)
	viper.SetDefault("middleware.allowed_origins", []string{"*"})

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	viper.AutomaticEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// GetDSN returns PostgreSQL connection string.
func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// RequestTimeout returns the per-attempt HTTP timeout for gateway calls.
func (g *GatewayConfig) RequestTimeout() time.Duration {
	return time.Duration(g.Timeout) * time.Second
}

// RateWindow returns the sliding window used by the outbound rate limiter.
func (g *GatewayConfig) RateWindow() time.Duration {
	return time.Duration(g.RateWindowMillis) * time.Millisecond
}
