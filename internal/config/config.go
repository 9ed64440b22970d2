package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Environment overrides for values that should not live in the file.
const (
	EnvDatabaseDSN = "PLANNER_DATABASE_DSN"
	EnvTokenSecret = "PLANNER_TOKEN_SECRET"
)

const (
	defaultListen        = "127.0.0.1:8080"
	defaultTimezone      = "America/Sao_Paulo"
	defaultLogLevel      = "info"
	defaultHorizonMonths = 6
	defaultRefresh       = "0 * * * *"
	defaultZoom          = 1.0
	defaultMaxConns      = 10
	defaultTokenTTL      = 24 * time.Hour
	defaultIssuer        = "planner"
)

// DatabaseConfig selects the event/user store.
type DatabaseConfig struct {
	// DSN is a PostgreSQL connection string. Empty means the in-memory
	// store, which loses everything on restart.
	DSN string `yaml:"dsn" json:"dsn"`
	// MaxConns bounds the pgx pool.
	MaxConns int32 `yaml:"max_conns" json:"max_conns"`
}

// AuthConfig controls session token issuance.
type AuthConfig struct {
	TokenSecret string        `yaml:"token_secret" json:"-"`
	TokenTTL    time.Duration `yaml:"token_ttl" json:"token_ttl"`
	Issuer      string        `yaml:"issuer" json:"issuer"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone in which dates, day boundaries and hour
	// buckets are interpreted.
	Timezone string `yaml:"timezone" json:"timezone"`

	LogLevel string `yaml:"log_level" json:"log_level"`
	LogJSON  bool   `yaml:"log_json" json:"log_json"`

	// HorizonMonths is how far ahead of now recurring events are expanded.
	HorizonMonths int `yaml:"horizon_months" json:"horizon_months"`

	// RefreshCron is a standard five-field cron spec controlling how often
	// the occurrence snapshot is rebuilt so the horizon keeps moving.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// DefaultZoom applies to day/week layout when a request has no zoom.
	DefaultZoom float64 `yaml:"default_zoom" json:"default_zoom"`

	Database DatabaseConfig `yaml:"database" json:"database"`
	Auth     AuthConfig     `yaml:"auth" json:"auth"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:        defaultListen,
		Timezone:      defaultTimezone,
		LogLevel:      defaultLogLevel,
		HorizonMonths: defaultHorizonMonths,
		RefreshCron:   defaultRefresh,
		DefaultZoom:   defaultZoom,
		Database: DatabaseConfig{
			MaxConns: defaultMaxConns,
		},
		Auth: AuthConfig{
			TokenTTL: defaultTokenTTL,
			Issuer:   defaultIssuer,
		},
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// written files still behave.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.HorizonMonths <= 0 {
		c.HorizonMonths = defaultHorizonMonths
	}
	// An unparsable spec would stop the refresh loop from starting at all.
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		c.RefreshCron = defaultRefresh
	}
	if c.DefaultZoom <= 0 {
		c.DefaultZoom = defaultZoom
	}
	if c.Database.MaxConns <= 0 {
		c.Database.MaxConns = defaultMaxConns
	}
	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = defaultTokenTTL
	}
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = defaultIssuer
	}
}

// ApplyEnv overrides secrets from the environment when set.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvDatabaseDSN); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(EnvTokenSecret); v != "" {
		c.Auth.TokenSecret = v
	}
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written there with
//     0600 perms and returned.
//   - Otherwise the YAML is decoded and normalized.
//
// Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				cfg.ApplyEnv()
				return cfg, err
			}
			cfg.ApplyEnv()
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	cfg.ApplyEnv()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file in the same directory,
// then rename) with 0600 permissions. The parent directory is created
// with 0700 if missing.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".planner-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
