package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the process configuration, loaded from an optional YAML file with
// environment variable overrides.
type Config struct {
	Env        string `yaml:"env" env:"CATALOG_ENV" env-default:"local"`
	DB         DB     `yaml:"db"`
	HTTPServer HTTP   `yaml:"http_server"`
	Auth       Auth   `yaml:"auth"`
}

type DB struct {
	// DSN is optional: without it the service runs on the in-memory store,
	// which is enough for local development.
	DSN string `yaml:"dsn" env:"CATALOG_PG_DSN"`
}

type HTTP struct {
	Address      string        `yaml:"address" env:"CATALOG_HTTP_ADDR" env-default:":8080"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env-default:"15s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env-default:"15s"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" env-default:"60s"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" env-default:"1048576"`
	RateBurst    int           `yaml:"rate_burst" env-default:"20"`
	RatePerSec   int           `yaml:"rate_per_sec" env-default:"10"`
}

type Auth struct {
	// Secret signs access tokens. Its absence is a fatal startup error, never
	// a per-request failure.
	Secret     string        `yaml:"secret" env:"CATALOG_AUTH_SECRET"`
	Issuer     string        `yaml:"issuer" env:"CATALOG_AUTH_ISSUER" env-default:"catalog-api"`
	Audience   string        `yaml:"audience" env:"CATALOG_AUTH_AUDIENCE" env-default:"catalog-clients"`
	AccessTTL  time.Duration `yaml:"access_ttl" env:"CATALOG_AUTH_ACCESS_TTL" env-default:"15m"`
	RefreshTTL time.Duration `yaml:"refresh_ttl" env:"CATALOG_AUTH_REFRESH_TTL" env-default:"336h"`

	// ExclusiveUser is the identity claim value satisfying the exclusive
	// policies (revocation and role administration).
	ExclusiveUser string `yaml:"exclusive_user" env:"CATALOG_AUTH_EXCLUSIVE_USER" env-default:"romulo"`
}

// Load reads configuration from path (when given) and the environment.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("read env: %w", err)
		}
	}
	if cfg.Auth.Secret == "" {
		return nil, errors.New("auth secret is not configured")
	}
	return &cfg, nil
}

// MustLoad is Load that terminates the process on failure. Intended for main.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}
