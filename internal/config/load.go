package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/titanous/json5"
)

// Load reads the JSON5 file at path over Default() and applies environment
// overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(ExpandHome(path))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	case len(strings.TrimSpace(string(data))) > 0:
		if err := json5.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg as indented JSON (valid JSON5) with owner-only permissions.
func Save(path string, cfg *Config) error {
	path = ExpandHome(path)
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// ApplyEnvOverrides layers BOTLINK_* variables over the file values.
func (c *Config) ApplyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envStr("BOTLINK_API_URL", &c.API.URL)
	envStr("BOTLINK_OWNER_UUID", &c.Owner.UUID)
	envStr("BOTLINK_LOCALE", &c.Owner.Locale)
	envStr("BOTLINK_CACHE_KEY", &c.Cache.Key)
	envStr("BOTLINK_REDIS_URL", &c.Cache.RedisURL)
	envStr("BOTLINK_POSTGRES_DSN", &c.Cache.PostgresDSN)
	envStr("BOTLINK_LOG_LEVEL", &c.Log.Level)
	if v := os.Getenv("BOTLINK_POLL_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Poll.IntervalMS = n
		}
	}
}

func (c *Config) normalize() {
	d := Default()
	c.Owner.Locale = NormalizeLocale(c.Owner.Locale)
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	if c.Cache.Backend == "" {
		c.Cache.Backend = d.Cache.Backend
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.API.TimeoutSeconds <= 0 {
		c.API.TimeoutSeconds = d.API.TimeoutSeconds
	}
	if c.Poll.IntervalMS <= 0 {
		c.Poll.IntervalMS = d.Poll.IntervalMS
	}
	if c.Roster.PageSize <= 0 {
		c.Roster.PageSize = d.Roster.PageSize
	}
	if c.Cache.TTLSeconds <= 0 {
		c.Cache.TTLSeconds = d.Cache.TTLSeconds
	}
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	if u, err := url.Parse(c.API.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("api.url must be an http(s) URL, got %q", c.API.URL))
	}
	if c.API.RateLimitRPM < 0 {
		errs = append(errs, errors.New("api.rate_limit_rpm must not be negative"))
	}
	if c.API.Retries < 0 || c.API.Retries > 10 {
		errs = append(errs, fmt.Errorf("api.retries must be between 0 and 10, got %d", c.API.Retries))
	}
	if c.Poll.IntervalMS < 100 {
		errs = append(errs, fmt.Errorf("poll.interval_ms must be at least 100, got %d", c.Poll.IntervalMS))
	}
	if c.Roster.PageSize > 100 {
		errs = append(errs, fmt.Errorf("roster.page_size must be at most 100, got %d", c.Roster.PageSize))
	}
	switch c.Cache.Backend {
	case "file", "sqlite", "memory":
	case "redis":
		if c.Cache.RedisURL == "" {
			errs = append(errs, errors.New("cache.redis_url is required for the redis backend"))
		}
	case "postgres":
		if c.Cache.PostgresDSN == "" {
			errs = append(errs, errors.New("cache.postgres_dsn is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cache.backend %q", c.Cache.Backend))
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log.level %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log.format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
