// Package backends builds the configured binding cache stack: the durable
// backend, optional sealing of pass UUIDs, and the in-process LRU tier.
package backends

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nextlevelbuilder/botlink/internal/crypto"
	"github.com/nextlevelbuilder/botlink/internal/store"
	"github.com/nextlevelbuilder/botlink/internal/store/file"
	"github.com/nextlevelbuilder/botlink/internal/store/pg"
	"github.com/nextlevelbuilder/botlink/internal/store/redis"
	"github.com/nextlevelbuilder/botlink/internal/store/sqlite"
)

// Cache is an opened cache stack. Close releases the durable backend.
type Cache struct {
	store.BindingCache
	tier    *store.MemoryTier
	closeFn func() error
}

// Forget drops the in-process copies so the next Load reads the backend,
// which another process may have written since.
func (c *Cache) Forget() {
	if c != nil && c.tier != nil {
		c.tier.Purge()
	}
}

func (c *Cache) Close() error {
	if c == nil || c.closeFn == nil {
		return nil
	}
	return c.closeFn()
}

// Open builds the cache described by cfg.
func Open(ctx context.Context, cfg store.Config) (*Cache, error) {
	var (
		backend store.BindingCache
		closeFn func() error
	)
	switch cfg.Backend {
	case "", store.BackendFile:
		backend = file.NewBindingStore(cfg.Path)
	case store.BackendSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0700); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
		s, err := sqlite.Open(cfg.Path, cfg.TTL)
		if err != nil {
			return nil, err
		}
		backend, closeFn = s, s.Close
	case store.BackendRedis:
		s, err := redis.Open(ctx, cfg.RedisURL, cfg.TTL)
		if err != nil {
			return nil, err
		}
		backend, closeFn = s, s.Close
	case store.BackendPG:
		s, err := pg.Open(ctx, cfg.PostgresDSN, cfg.TTL)
		if err != nil {
			return nil, err
		}
		backend, closeFn = s, s.Close
	case store.BackendMemory:
		// the LRU tier below is the whole cache
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}

	if backend != nil && cfg.Key != "" {
		sealer, err := crypto.NewSealer(cfg.Key)
		if err != nil {
			if closeFn != nil {
				closeFn()
			}
			return nil, fmt.Errorf("cache key: %w", err)
		}
		backend = store.NewSealed(backend, sealer)
	}

	slog.Debug("binding cache ready", "backend", cfg.Backend, "sealed", cfg.Key != "")
	tier := store.NewMemoryTier(backend, cfg.MemoryEntries)
	return &Cache{BindingCache: tier, tier: tier, closeFn: closeFn}, nil
}
