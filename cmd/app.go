package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/nextlevelbuilder/botlink/internal/bus"
	"github.com/nextlevelbuilder/botlink/internal/config"
	"github.com/nextlevelbuilder/botlink/internal/crypto"
	"github.com/nextlevelbuilder/botlink/internal/remote"
	"github.com/nextlevelbuilder/botlink/internal/roster"
	"github.com/nextlevelbuilder/botlink/internal/session"
	"github.com/nextlevelbuilder/botlink/internal/store"
	"github.com/nextlevelbuilder/botlink/internal/store/backends"
)

// errNoOwner is returned when the config has no owner reference yet.
var errNoOwner = errors.New("no owner configured; run `botlink init` first")

// app is everything one command invocation needs.
type app struct {
	cfgPath string
	cfg     *config.Config
	bus     *bus.Bus
	api     *remote.Client
	cache   *backends.Cache
	roster  *roster.Synchronizer
	ctrl    *session.Controller

	// noticed is set once an error notice has been printed, so the final
	// error is not reported twice.
	noticed atomic.Bool

	stopTelemetry func(context.Context) error
}

func loadConfig() (*config.Config, string, error) {
	path := resolveConfigPath()
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, err
	}
	setupLogging(cfg)
	return cfg, path, nil
}

func newApp(ctx context.Context) (*app, error) {
	cfg, path, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Owner.UUID == "" {
		return nil, errNoOwner
	}

	a := &app{cfgPath: path, cfg: cfg, bus: bus.New()}
	a.stopTelemetry = initTelemetry(ctx, cfg)
	a.bus.Subscribe("cli", a.printEvent)

	a.api, err = remote.New(remote.Config{
		BaseURL:      cfg.API.URL,
		Timeout:      cfg.APITimeout(),
		RateLimitRPM: cfg.API.RateLimitRPM,
		Retry:        apiRetry(cfg),
	})
	if err != nil {
		return nil, err
	}

	a.cache, err = openCache(ctx, cfg)
	if err != nil {
		// The cache only speeds up restores; run without it.
		slog.Warn("binding cache unavailable", "backend", cfg.Cache.Backend, "error", err)
		a.cache = nil
	}

	a.roster = roster.New(a.api, roster.Config{PageSize: cfg.Roster.PageSize, Bus: a.bus})
	scfg := session.Config{
		Owner:        cfg.Owner.UUID,
		Locale:       cfg.Owner.Locale,
		PollInterval: cfg.PollInterval(),
		Bus:          a.bus,
		Roster:       a.roster,
	}
	if a.cache != nil {
		scfg.Cache = a.cache
	}
	a.ctrl = session.New(a.api, scfg)
	return a, nil
}

func apiRetry(cfg *config.Config) remote.RetryConfig {
	r := remote.DefaultRetryConfig()
	r.MaxRetries = cfg.API.Retries
	return r
}

func cacheConfig(cfg *config.Config) (store.Config, error) {
	sc := store.Config{
		Backend:       cfg.Cache.Backend,
		Path:          cfg.CachePath(),
		RedisURL:      cfg.Cache.RedisURL,
		PostgresDSN:   cfg.Cache.PostgresDSN,
		TTL:           cfg.CacheTTL(),
		Key:           cfg.Cache.Key,
		MemoryEntries: cfg.Cache.MemoryEntries,
	}
	if sc.Key == "" && cfg.Cache.UseKeyring {
		key, err := crypto.ResolveKey(cfg.Owner.UUID)
		if err != nil {
			return sc, fmt.Errorf("cache key from keyring: %w", err)
		}
		sc.Key = key
	}
	return sc, nil
}

func openCache(ctx context.Context, cfg *config.Config) (*backends.Cache, error) {
	sc, err := cacheConfig(cfg)
	if err != nil {
		return nil, err
	}
	return backends.Open(ctx, sc)
}

// close releases everything without logging the selected bot out.
func (a *app) close() {
	if a == nil {
		return
	}
	if a.ctrl != nil {
		a.ctrl.Close()
	}
	if a.roster != nil {
		a.roster.Close()
	}
	if err := a.cache.Close(); err != nil {
		slog.Debug("cache close failed", "error", err)
	}
	if a.stopTelemetry != nil {
		_ = a.stopTelemetry(context.Background())
	}
}

// fail prints err unless a notice already covered it, releases the app and
// exits with status 1.
func (a *app) fail(err error) {
	if a == nil || !a.noticed.Load() {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+userMessage(err)))
	}
	a.close()
	os.Exit(1)
}

// userMessage renders remote failures the way notices do and everything
// else as is.
func userMessage(err error) string {
	var re *remote.RequestError
	var te *remote.TransportError
	if errors.As(err, &re) || errors.As(err, &te) || errors.Is(err, remote.ErrInvalidCredential) {
		return remote.UserMessage(err)
	}
	return err.Error()
}

func (a *app) printEvent(ev bus.Event) {
	switch p := ev.Payload.(type) {
	case bus.Notice:
		if p.Level == bus.LevelError {
			a.noticed.Store(true)
			fmt.Fprintln(os.Stderr, errorStyle.Render("✗ "+p.Message))
			return
		}
		fmt.Fprintln(os.Stderr, infoStyle.Render("• "+p.Message))
	case bus.ModeChange:
		slog.Debug("session mode", "from", p.From, "to", p.To)
	}
}

// mustApp builds the app or exits.
func mustApp(ctx context.Context) *app {
	a, err := newApp(ctx)
	if err != nil {
		(*app)(nil).fail(err)
	}
	return a
}
