package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	// Broadcast core
	MaxConnections int           `env:"MAX_CONNECTIONS" default:"500"`
	QueueCapacity  int           `env:"QUEUE_CAPACITY" default:"100"`
	FlushInterval  time.Duration `env:"FLUSH_INTERVAL" default:"50ms"`
	WriteTimeout   time.Duration `env:"WRITE_TIMEOUT" default:"1s"`

	// Orchestrator
	PhaseTimeout           time.Duration `env:"PHASE_TIMEOUT" default:"30s"`
	MaxConcurrentIncidents int           `env:"MAX_CONCURRENT_INCIDENTS" default:"10"`
	AgentPoolSize          int           `env:"AGENT_POOL_SIZE" default:"5"`
	HealthInterval         time.Duration `env:"HEALTH_INTERVAL" default:"5s"`

	// WebSocket route protection
	ConnectionsPerSecond float64 `env:"WS_CONNECTIONS_PER_SECOND" default:"10"`
	ConnectionBurst      int     `env:"WS_CONNECTION_BURST" default:"20"`

	// Optional cross-instance relay; disabled when empty
	RedisURL string `env:"REDIS_URL"`
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
	positive := map[string]int{
		"MAX_CONNECTIONS":          cfg.MaxConnections,
		"QUEUE_CAPACITY":           cfg.QueueCapacity,
		"MAX_CONCURRENT_INCIDENTS": cfg.MaxConcurrentIncidents,
		"AGENT_POOL_SIZE":          cfg.AgentPoolSize,
		"WS_CONNECTION_BURST":      cfg.ConnectionBurst,
	}
	for name, value := range positive {
		if value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, value)
		}
	}

	durations := map[string]time.Duration{
		"FLUSH_INTERVAL":  cfg.FlushInterval,
		"WRITE_TIMEOUT":   cfg.WriteTimeout,
		"PHASE_TIMEOUT":   cfg.PhaseTimeout,
		"HEALTH_INTERVAL": cfg.HealthInterval,
	}
	for name, value := range durations {
		if value <= 0 {
			return fmt.Errorf("%s must be positive, got %v", name, value)
		}
	}

	if cfg.ConnectionsPerSecond <= 0 {
		return fmt.Errorf("WS_CONNECTIONS_PER_SECOND must be positive, got %v", cfg.ConnectionsPerSecond)
	}

	return nil
}
