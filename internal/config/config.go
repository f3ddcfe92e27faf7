package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" default:"development"`
	Port        string `env:"PORT" default:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`
	LogLevel    string `env:"LOG_LEVEL" default:"info"`
	LogFormat   string `env:"LOG_FORMAT" default:"text"`

	MaxWebSocketConnections int `env:"MAX_WEBSOCKET_CONNECTIONS" default:"10000"`
	MaxConnectionsPerIP     int `env:"MAX_CONNECTIONS_PER_IP" default:"20"`

	ActivityFeedLimit int `env:"ACTIVITY_FEED_LIMIT" default:"50"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" default:"10s"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	required := map[string]string{
		"DATABASE_URL": cfg.DatabaseURL,
		"REDIS_URL":    cfg.RedisURL,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	if cfg.MaxWebSocketConnections <= 0 {
		return fmt.Errorf("MAX_WEBSOCKET_CONNECTIONS must be positive, got %d", cfg.MaxWebSocketConnections)
	}
	if cfg.MaxConnectionsPerIP <= 0 {
		return fmt.Errorf("MAX_CONNECTIONS_PER_IP must be positive, got %d", cfg.MaxConnectionsPerIP)
	}

	return nil
}
