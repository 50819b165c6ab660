// Package config loads the botlink configuration: a JSON5 file with defaults
// and environment overrides layered on top.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// DefaultPath is the config file location when neither --config nor
// BOTLINK_CONFIG is set.
const DefaultPath = "~/.botlink/config.json"

// Config is the root configuration.
type Config struct {
	API       APIConfig       `json:"api"`
	Owner     OwnerConfig     `json:"owner"`
	Poll      PollConfig      `json:"poll"`
	Roster    RosterConfig    `json:"roster"`
	Cache     CacheConfig     `json:"cache"`
	Log       LogConfig       `json:"log"`
	Telemetry TelemetryConfig `json:"telemetry"`
}

// APIConfig points at the dashboard service.
type APIConfig struct {
	URL            string `json:"url"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
	RateLimitRPM   int    `json:"rate_limit_rpm,omitempty"` // 0 = unlimited
	Retries        int    `json:"retries"`                  // extra attempts for reads, 0 = none
}

// OwnerConfig identifies the operator. UUID is the opaque owner reference.
type OwnerConfig struct {
	UUID   string `json:"uuid,omitempty"`
	Locale string `json:"locale,omitempty"`
}

type PollConfig struct {
	IntervalMS int `json:"interval_ms,omitempty"`
}

type RosterConfig struct {
	PageSize int `json:"page_size,omitempty"`
}

// CacheConfig selects the binding cache backend.
type CacheConfig struct {
	Backend       string `json:"backend,omitempty"` // file (default), sqlite, redis, postgres, memory
	Path          string `json:"path,omitempty"`
	RedisURL      string `json:"redis_url,omitempty"`
	PostgresDSN   string `json:"postgres_dsn,omitempty"`
	TTLSeconds    int    `json:"ttl_seconds,omitempty"`
	Key           string `json:"key,omitempty"`
	UseKeyring    bool   `json:"use_keyring,omitempty"`
	MemoryEntries int    `json:"memory_entries,omitempty"`
}

type LogConfig struct {
	Level  string `json:"level,omitempty"`  // debug, info, warn, error
	Format string `json:"format,omitempty"` // text (default), json
}

// TelemetryConfig is only honoured by binaries built with -tags otel.
type TelemetryConfig struct {
	Enabled     bool              `json:"enabled,omitempty"`
	Endpoint    string            `json:"endpoint,omitempty"`
	Protocol    string            `json:"protocol,omitempty"`
	Insecure    bool              `json:"insecure,omitempty"`
	ServiceName string            `json:"service_name,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
}

// Default returns a config with every default filled in.
func Default() *Config {
	return &Config{
		API: APIConfig{
			URL:            "http://localhost:8000/api/",
			TimeoutSeconds: 15,
			Retries:        2,
		},
		Owner:  OwnerConfig{Locale: DefaultLocale},
		Poll:   PollConfig{IntervalMS: 3000},
		Roster: RosterConfig{PageSize: 5},
		Cache: CacheConfig{
			Backend:    "file",
			TTLSeconds: 86400,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// PollInterval returns the verification poll period.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Poll.IntervalMS) * time.Millisecond
}

// APITimeout returns the per-request HTTP timeout.
func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// CacheTTL returns the binding cache lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// CachePath returns the file or database location for the cache backend.
func (c *Config) CachePath() string {
	if c.Cache.Path != "" {
		return ExpandHome(c.Cache.Path)
	}
	switch c.Cache.Backend {
	case "sqlite":
		return ExpandHome("~/.botlink/cache.db")
	default:
		return ExpandHome("~/.botlink/bindings.json")
	}
}

// Hash returns a content hash used to skip reloads that change nothing.
func (c *Config) Hash() string {
	data, _ := json.Marshal(c)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() *Config {
	cp := *c
	cp.Cache.Key = maskSecret(cp.Cache.Key)
	cp.Cache.RedisURL = maskSecret(cp.Cache.RedisURL)
	cp.Cache.PostgresDSN = maskSecret(cp.Cache.PostgresDSN)
	if len(c.Telemetry.Headers) > 0 {
		cp.Telemetry.Headers = make(map[string]string, len(c.Telemetry.Headers))
		for k, v := range c.Telemetry.Headers {
			cp.Telemetry.Headers[k] = maskSecret(v)
		}
	}
	return &cp
}

func maskSecret(s string) string {
	switch {
	case len(s) > 8:
		return s[:4] + "****" + s[len(s)-4:]
	case s != "":
		return "****"
	}
	return s
}
