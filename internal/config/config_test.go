package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"BOTLINK_API_URL", "BOTLINK_OWNER_UUID", "BOTLINK_LOCALE", "BOTLINK_CACHE_KEY",
		"BOTLINK_REDIS_URL", "BOTLINK_POSTGRES_DSN", "BOTLINK_LOG_LEVEL", "BOTLINK_POLL_INTERVAL_MS",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Poll.IntervalMS != 3000 || cfg.Roster.PageSize != 5 || cfg.Cache.TTLSeconds != 86400 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.Owner.Locale != "en" || cfg.Cache.Backend != "file" {
		t.Errorf("locale/backend = %q/%q", cfg.Owner.Locale, cfg.Cache.Backend)
	}
}

func TestLoadJSON5(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	src := `{
		// comments and trailing commas are allowed
		api: { url: "https://dash.example.com/api/", rate_limit_rpm: 120, },
		owner: { uuid: "ref-1", locale: "ru_RU" },
		poll: { interval_ms: 500 },
		cache: { backend: "SQLite" },
	}`
	if err := os.WriteFile(path, []byte(src), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.URL != "https://dash.example.com/api/" || cfg.API.RateLimitRPM != 120 {
		t.Errorf("api = %+v", cfg.API)
	}
	if cfg.Owner.UUID != "ref-1" || cfg.Owner.Locale != "ru" {
		t.Errorf("owner = %+v", cfg.Owner)
	}
	if cfg.PollInterval().Milliseconds() != 500 {
		t.Errorf("PollInterval = %v", cfg.PollInterval())
	}
	if cfg.Cache.Backend != "sqlite" || !strings.HasSuffix(cfg.CachePath(), "cache.db") {
		t.Errorf("cache = %q at %q", cfg.Cache.Backend, cfg.CachePath())
	}
	if cfg.API.TimeoutSeconds != 15 {
		t.Errorf("unset timeout should keep default, got %d", cfg.API.TimeoutSeconds)
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("BOTLINK_API_URL", "http://127.0.0.1:9000/api/")
	t.Setenv("BOTLINK_OWNER_UUID", "env-owner")
	t.Setenv("BOTLINK_POLL_INTERVAL_MS", "250")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.URL != "http://127.0.0.1:9000/api/" || cfg.Owner.UUID != "env-owner" || cfg.Poll.IntervalMS != 250 {
		t.Errorf("env not applied: %+v", cfg)
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Default()
	cfg.API.URL = "ftp://nope"
	cfg.Cache.Backend = "redis"
	cfg.Log.Level = "loud"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"api.url", "cache.redis_url", "log.level"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "sub", "config.json")
	cfg := Default()
	cfg.Owner.UUID = "ref-2"
	cfg.Roster.PageSize = 10
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Hash() != cfg.Hash() {
		t.Errorf("round trip changed config: %+v vs %+v", got, cfg)
	}
}

func TestRedacted(t *testing.T) {
	cfg := Default()
	cfg.Cache.Key = "0123456789abcdef0123456789abcdef"
	r := cfg.Redacted()
	if r.Cache.Key != "0123****cdef" {
		t.Errorf("Redacted key = %q", r.Cache.Key)
	}
	if cfg.Cache.Key == r.Cache.Key {
		t.Error("Redacted modified the original")
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := ExpandHome("~/.botlink/x"); got != filepath.Join(home, ".botlink/x") {
		t.Errorf("ExpandHome = %q", got)
	}
	if got := ExpandHome("/abs/~"); got != "/abs/~" {
		t.Errorf("ExpandHome changed absolute path: %q", got)
	}
}
