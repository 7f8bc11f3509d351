// Package config содержит логику чтения конфигурации сервиса StaySync.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/mmeshcher/staysync/internal/mirror"
	"github.com/mmeshcher/staysync/internal/model"
)

const (
	defaultRunAddress = "localhost:8080"
	defaultLocalDB    = "staysync.db"
	defaultLoginRate  = 10
)

// Config содержит параметры конфигурации сервиса StaySync.
// Параметры хранилища используются только при первом запуске: дальше источником истины
// служит запись настроек в локальной базе.
type Config struct {
	RunAddress     string
	LocalDBPath    string
	DataSource     model.DataSource
	DemoMode       bool
	RemoteDriver   string
	RemoteURI      string
	RemoteTimeout  time.Duration
	SessionSecret  string
	LoginRateLimit int
}

// envConfig повторяет Config указателями, чтобы отличить незаданную переменную от пустой.
type envConfig struct {
	RunAddress     *string        `env:"RUN_ADDRESS"`
	LocalDBPath    *string        `env:"LOCAL_DB_PATH"`
	DataSource     *string        `env:"DATA_SOURCE"`
	DemoMode       *bool          `env:"DEMO_MODE"`
	RemoteDriver   *string        `env:"REMOTE_DRIVER"`
	RemoteURI      *string        `env:"REMOTE_URI"`
	RemoteTimeout  *time.Duration `env:"REMOTE_TIMEOUT"`
	SessionSecret  *string        `env:"SESSION_SECRET"`
	LoginRateLimit *int           `env:"LOGIN_RATE_LIMIT"`
}

// Parse считывает конфигурацию из файла .env, флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var e envConfig
	if err := env.Parse(&e); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg := &Config{}
	var dataSource string

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.LocalDBPath, "l", defaultLocalDB, "path to the local SQLite database")
	flag.StringVar(&dataSource, "s", string(model.DataSourceLocal), "initial data source: Local or Cloud")
	flag.BoolVar(&cfg.DemoMode, "demo", true, "seed empty collections with demo data")
	flag.StringVar(&cfg.RemoteDriver, "r", "", "remote driver: postgres, redis or http")
	flag.StringVar(&cfg.RemoteURI, "u", "", "remote connection URI")
	flag.DurationVar(&cfg.RemoteTimeout, "t", mirror.DefaultRemoteTimeout, "remote operation timeout")
	flag.StringVar(&cfg.SessionSecret, "k", "", "session cookie signing key")
	flag.IntVar(&cfg.LoginRateLimit, "login-rate", defaultLoginRate, "login attempts per minute per address")

	flag.Parse()

	if e.RunAddress != nil && *e.RunAddress != "" {
		cfg.RunAddress = *e.RunAddress
	}
	if e.LocalDBPath != nil && *e.LocalDBPath != "" {
		cfg.LocalDBPath = *e.LocalDBPath
	}
	if e.DataSource != nil && *e.DataSource != "" {
		dataSource = *e.DataSource
	}
	if e.DemoMode != nil {
		cfg.DemoMode = *e.DemoMode
	}
	if e.RemoteDriver != nil {
		cfg.RemoteDriver = *e.RemoteDriver
	}
	if e.RemoteURI != nil {
		cfg.RemoteURI = *e.RemoteURI
	}
	if e.RemoteTimeout != nil {
		cfg.RemoteTimeout = *e.RemoteTimeout
	}
	if e.SessionSecret != nil {
		cfg.SessionSecret = *e.SessionSecret
	}
	if e.LoginRateLimit != nil {
		cfg.LoginRateLimit = *e.LoginRateLimit
	}

	cfg.DataSource = model.DataSource(dataSource)
	switch cfg.DataSource {
	case model.DataSourceLocal, model.DataSourceCloud:
	default:
		return nil, fmt.Errorf("unknown data source %q", dataSource)
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.LocalDBPath == "" {
		cfg.LocalDBPath = defaultLocalDB
	}
	if cfg.RemoteTimeout <= 0 {
		cfg.RemoteTimeout = mirror.DefaultRemoteTimeout
	}
	if cfg.LoginRateLimit <= 0 {
		cfg.LoginRateLimit = defaultLoginRate
	}

	return cfg, nil
}

// InitialSettings возвращает запись настроек для первого запуска.
func (c *Config) InitialSettings() model.Settings {
	return model.Settings{
		DataSource: c.DataSource,
		DemoMode:   c.DemoMode,
		Remote: model.RemoteParams{
			Driver: c.RemoteDriver,
			URI:    c.RemoteURI,
		},
	}
}
