package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. PARISHWEB_BACKEND_BASE_URL.
const EnvPrefix = "PARISHWEB"

// Environments.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// BackendConfig locates the parish backend. SessionCookies names the browser
// cookies forwarded on calls made for a visitor.
type BackendConfig struct {
	BaseURL         string        `mapstructure:"base_url" yaml:"base_url"`
	Resource        string        `mapstructure:"resource" yaml:"resource"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	BreakerFailures uint32        `mapstructure:"breaker_failures" yaml:"breaker_failures"`
	BreakerCooldown time.Duration `mapstructure:"breaker_cooldown" yaml:"breaker_cooldown"`
	SessionCookies  []string      `mapstructure:"session_cookies" yaml:"session_cookies"`
	UpcomingPath    string        `mapstructure:"upcoming_path" yaml:"upcoming_path"`
}

// RecipientsConfig controls the recipient directory cache.
type RecipientsConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
}

// PerfConfig sets the slow-operation thresholds.
type PerfConfig struct {
	SlowRequest time.Duration `mapstructure:"slow_request" yaml:"slow_request"`
	SlowQuery   time.Duration `mapstructure:"slow_query" yaml:"slow_query"`
}

// Config is the server configuration. StaticDir holds the compiled page
// script served under /static/.
type Config struct {
	Addr               string           `mapstructure:"addr" yaml:"addr"`
	Env                string           `mapstructure:"env" yaml:"env"`
	LogLevel           string           `mapstructure:"log_level" yaml:"log_level"`
	DBPath             string           `mapstructure:"db_path" yaml:"db_path"`
	StaticDir          string           `mapstructure:"static_dir" yaml:"static_dir"`
	CSRFKey            string           `mapstructure:"csrf_key" yaml:"csrf_key"`
	RateLimitPerSecond float64          `mapstructure:"rate_limit_per_second" yaml:"rate_limit_per_second"`
	Backend            BackendConfig    `mapstructure:"backend" yaml:"backend"`
	Recipients         RecipientsConfig `mapstructure:"recipients" yaml:"recipients"`
	Perf               PerfConfig       `mapstructure:"perf" yaml:"perf"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:               ":8080",
		Env:                EnvDevelopment,
		LogLevel:           "info",
		DBPath:             "parishweb.db",
		StaticDir:          "static",
		RateLimitPerSecond: 20,
		Backend: BackendConfig{
			BaseURL:         "http://localhost:8081",
			Resource:        "parishioners",
			BreakerFailures: 5,
			BreakerCooldown: 30 * time.Second,
			SessionCookies:  []string{"JSESSIONID"},
			UpcomingPath:    "/dashboard/upcoming-events",
		},
		Recipients: RecipientsConfig{CacheTTL: 5 * time.Minute},
		Perf: PerfConfig{
			SlowRequest: 200 * time.Millisecond,
			SlowQuery:   50 * time.Millisecond,
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("addr", d.Addr)
	v.SetDefault("env", d.Env)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("db_path", d.DBPath)
	v.SetDefault("static_dir", d.StaticDir)
	v.SetDefault("csrf_key", d.CSRFKey)
	v.SetDefault("rate_limit_per_second", d.RateLimitPerSecond)
	v.SetDefault("backend.base_url", d.Backend.BaseURL)
	v.SetDefault("backend.resource", d.Backend.Resource)
	v.SetDefault("backend.request_timeout", d.Backend.RequestTimeout)
	v.SetDefault("backend.breaker_failures", d.Backend.BreakerFailures)
	v.SetDefault("backend.breaker_cooldown", d.Backend.BreakerCooldown)
	v.SetDefault("backend.session_cookies", d.Backend.SessionCookies)
	v.SetDefault("backend.upcoming_path", d.Backend.UpcomingPath)
	v.SetDefault("recipients.cache_ttl", d.Recipients.CacheTTL)
	v.SetDefault("perf.slow_request", d.Perf.SlowRequest)
	v.SetDefault("perf.slow_query", d.Perf.SlowQuery)
}

// Load reads defaults, then the YAML file at path (skipped when path is empty
// or the file does not exist), then PARISHWEB_* environment variables.
// PRE: none
// POST: returns a validated config or the first problem found
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
			slog.Info("config_file_missing", "path", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration's invariants.
// PRE: none
// POST: returns nil if valid, error describing the first violation otherwise
func (c Config) Validate() error {
	if c.Env != EnvDevelopment && c.Env != EnvProduction {
		return fmt.Errorf("env must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.Env)
	}
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("backend.base_url must be an absolute http(s) URL, got %q", c.Backend.BaseURL)
	}
	for _, name := range c.Backend.SessionCookies {
		if strings.TrimSpace(name) == "" {
			return errors.New("backend.session_cookies cannot contain empty names")
		}
	}
	if !strings.HasPrefix(c.Backend.UpcomingPath, "/") {
		return fmt.Errorf("backend.upcoming_path must start with /, got %q", c.Backend.UpcomingPath)
	}
	if c.RateLimitPerSecond < 0 {
		return errors.New("rate_limit_per_second cannot be negative")
	}
	if c.Recipients.CacheTTL <= 0 {
		return errors.New("recipients.cache_ttl must be positive")
	}
	if c.CSRFKey != "" {
		if _, err := c.CSRFKeyBytes(); err != nil {
			return err
		}
	} else if c.IsProduction() {
		return errors.New("csrf_key is required in production")
	}
	return nil
}

// IsProduction reports whether the server runs in production.
func (c Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// CSRFKeyBytes decodes the 64-hex-character CSRF key.
// POST: returns 32 bytes or an error
func (c Config) CSRFKeyBytes() ([]byte, error) {
	key, err := hex.DecodeString(c.CSRFKey)
	if err != nil || len(key) != 32 {
		return nil, errors.New("csrf_key must be 64 hex characters")
	}
	return key, nil
}

// SlogLevel maps log_level onto a slog level; unknown values give Info.
func (c Config) SlogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// WriteDefault writes the default configuration as YAML for a first run.
// PRE: path is non-empty
// POST: the file exists with mode 0600; an existing file is left untouched and reported
func WriteDefault(path string) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config %s already exists", path)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("encode default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
