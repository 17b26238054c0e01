package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	SMTP      SMTPConfig
	RateLimit RateLimitConfig
	Drip      DripConfig
}

type ServerConfig struct {
	Port           int    `mapstructure:"port"`
	TimeoutSeconds int    `mapstructure:"timeoutSeconds"`
	TrackingURL    string `mapstructure:"tracking_url"`
	CronKey        string `mapstructure:"cron_key"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type RateLimitConfig struct {
	MaxRequests     int           `mapstructure:"max_requests"`
	Window          time.Duration `mapstructure:"window"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type DripConfig struct {
	SendTimeout time.Duration `mapstructure:"send_timeout"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	viper.SetDefault("ratelimit.max_requests", 100)
	viper.SetDefault("ratelimit.window", time.Minute)
	viper.SetDefault("ratelimit.cleanup_interval", 5*time.Minute)
	viper.SetDefault("drip.send_timeout", 15*time.Second)

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}
