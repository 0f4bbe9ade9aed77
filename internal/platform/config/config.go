package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

type HTTPConfig struct {
	Addr string
}

type AppConfig struct {
	ServiceName string
	LogLevel    string
	// LogFile enables a rotating file sink next to stdout when set.
	LogFile string
	HTTP    HTTPConfig
	// ShutdownTimeout bounds graceful shutdown after a signal.
	ShutdownTimeout time.Duration
}

func Load() (AppConfig, error) {
	cfg := AppConfig{
		ServiceName: env("SERVICE_NAME", ""),
		LogLevel:    env("LOG_LEVEL", "info"),
		LogFile:     env("LOG_FILE", ""),
		HTTP: HTTPConfig{
			Addr: env("HTTP_ADDR", ":8080"),
		},
		ShutdownTimeout: 10 * time.Second,
	}
	if cfg.ServiceName == "" {
		return AppConfig{}, errors.New("SERVICE_NAME is required")
	}
	if raw := env("SHUTDOWN_TIMEOUT", ""); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return AppConfig{}, fmt.Errorf("invalid SHUTDOWN_TIMEOUT %q", raw)
		}
		cfg.ShutdownTimeout = d
	}
	return cfg, nil
}

func env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
