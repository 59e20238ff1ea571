package config

import (
	"fmt"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN       string `env:"DATABASE_DSN,required=true"`
	RedisURL          string `env:"REDIS_URL,required=true"`
	UploadRatePerSec  int    `env:"UPLOAD_RATE_PER_SEC,default=10"`
	MaxUploadMB       int    `env:"MAX_UPLOAD_MB,default=32"`
	ExecutorQueueSize int    `env:"EXECUTOR_QUEUE_SIZE,default=64"`
	APIPort           int    `env:"API_PORT,default=8080"`
	LogLevel          string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
