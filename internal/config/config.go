// Package config содержит логику чтения конфигурации панели прачечной.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config содержит параметры конфигурации панели прачечной.
type Config struct {
	RunAddress     string        `env:"RUN_ADDRESS"`
	BackendAddress string        `env:"BACKEND_ADDRESS"`
	SessionSecret  string        `env:"SESSION_SECRET"`
	SessionTTL     time.Duration `env:"SESSION_TTL"`
	PageSize       int           `env:"PAGE_SIZE"`
	OfflineLogin   bool          `env:"OFFLINE_LOGIN"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных
// окружения; значения окружения имеют приоритет. Файл .env, если он есть,
// подгружается перед разбором.
func Parse() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envBackendAddress := cfg.BackendAddress
	envSessionSecret := cfg.SessionSecret
	envSessionTTL := cfg.SessionTTL
	envPageSize := cfg.PageSize
	envOfflineLogin := cfg.OfflineLogin

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.BackendAddress, "b", "http://localhost:6543/api", "laundry backend address")
	flag.StringVar(&cfg.SessionSecret, "s", "", "secret key for session cookies")
	flag.DurationVar(&cfg.SessionTTL, "t", 12*time.Hour, "session cookie lifetime")
	flag.IntVar(&cfg.PageSize, "p", 10, "rows per table page")
	flag.BoolVar(&cfg.OfflineLogin, "offline-login", false, "log in against built-in accounts instead of the backend")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envBackendAddress != "" {
		cfg.BackendAddress = envBackendAddress
	}
	if envSessionSecret != "" {
		cfg.SessionSecret = envSessionSecret
	}
	if envSessionTTL != 0 {
		cfg.SessionTTL = envSessionTTL
	}
	if envPageSize != 0 {
		cfg.PageSize = envPageSize
	}
	if envOfflineLogin {
		cfg.OfflineLogin = true
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 10
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 12 * time.Hour
	}

	return cfg, nil
}
