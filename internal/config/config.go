// Package config loads runtime settings from an optional .env file, an
// optional YAML file and environment variables, in that order of precedence
// (later wins).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/kitsu-catalog/pkg/client"
	"github.com/Sternrassler/kitsu-catalog/pkg/logging"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// EnvConfigFile names the YAML file when Load is called with an empty path.
const EnvConfigFile = "CATALOG_CONFIG"

// Config is the merged runtime configuration.
type Config struct {
	BaseURL        string        `yaml:"base_url"`
	UserAgent      string        `yaml:"user_agent"`
	RateLimit      float64       `yaml:"rate_limit"`
	RateBurst      int           `yaml:"rate_burst"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	LoadTimeout    time.Duration `yaml:"load_timeout"`

	// RedisURL enables the response cache and shared backoff state.
	// Either a redis:// URL or a bare host:port.
	RedisURL string `yaml:"redis_url"`

	Port      string `yaml:"port"`
	LogLevel  string `yaml:"log_level"`
	LogPretty bool   `yaml:"log_pretty"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		BaseURL:        client.DefaultBaseURL,
		UserAgent:      "kitsu-catalog/0.1.0",
		RateLimit:      5,
		RateBurst:      5,
		RequestTimeout: 30 * time.Second,
		LoadTimeout:    15 * time.Second,
		Port:           "8080",
		LogLevel:       string(logging.LevelInfo),
	}
}

// Load builds a Config. A missing .env file is not an error; a missing YAML
// file is an error only when path was given explicitly.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvConfigFile)
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			if explicit || !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("KITSU_BASE_URL", &c.BaseURL)
	str("USER_AGENT", &c.UserAgent)
	str("REDIS_URL", &c.RedisURL)
	str("PORT", &c.Port)
	str("LOG_LEVEL", &c.LogLevel)

	if v, ok := lookup("RATE_LIMIT"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("RATE_LIMIT: %w", err)
		}
		c.RateLimit = f
	}
	if v, ok := lookup("RATE_BURST"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RATE_BURST: %w", err)
		}
		c.RateBurst = n
	}
	for key, dst := range map[string]*time.Duration{
		"REQUEST_TIMEOUT": &c.RequestTimeout,
		"LOAD_TIMEOUT":    &c.LoadTimeout,
	} {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = d
		}
	}
	if v, ok := lookup("LOG_PRETTY"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("LOG_PRETTY: %w", err)
		}
		c.LogPretty = b
	}
	return nil
}

// Validate checks field ranges and formats.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.UserAgent) == "" {
		errs = append(errs, errors.New("user agent is required"))
	}
	if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("base url must be absolute (got %q)", c.BaseURL))
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("rate limit must be >= 0 (got %v)", c.RateLimit))
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		errs = append(errs, fmt.Errorf("rate burst must be >= 1 when rate limiting (got %d)", c.RateBurst))
	}
	if c.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("request timeout must be >= 0 (got %s)", c.RequestTimeout))
	}
	if c.LoadTimeout < 0 {
		errs = append(errs, fmt.Errorf("load timeout must be >= 0 (got %s)", c.LoadTimeout))
	}
	if p, err := strconv.Atoi(c.Port); err != nil || p < 1 || p > 65535 {
		errs = append(errs, fmt.Errorf("port must be 1-65535 (got %q)", c.Port))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.RedisURL != "" {
		if _, err := c.RedisOptions(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Client returns the client configuration. Transport and backoff store are
// wired by the caller.
func (c *Config) Client() client.Config {
	return client.Config{
		BaseURL:   c.BaseURL,
		UserAgent: c.UserAgent,
		RateLimit: c.RateLimit,
		Burst:     c.RateBurst,
		Timeout:   c.RequestTimeout,
	}
}

// Logging returns the logger configuration for service.
func (c *Config) Logging(service string) logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level, _ = logging.ParseLevel(c.LogLevel)
	cfg.Pretty = c.LogPretty
	cfg.Service = service
	return cfg
}

// RedisOptions parses RedisURL. A value without a scheme is taken as host:port.
func (c *Config) RedisOptions() (*redis.Options, error) {
	if c.RedisURL == "" {
		return nil, errors.New("redis url is not set")
	}
	if !strings.Contains(c.RedisURL, "://") {
		return &redis.Options{Addr: c.RedisURL}, nil
	}
	opts, err := redis.ParseURL(c.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	return opts, nil
}

// Addr is the server listen address.
func (c *Config) Addr() string {
	return ":" + c.Port
}
