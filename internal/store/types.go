// Package store persists the last known bot bindings per owner reference so a
// session can be restored after a restart. Cached bindings are provisional:
// they never prove the bot is still linked or verified.
package store

import (
	"context"
	"slices"
	"time"

	"github.com/nextlevelbuilder/botlink/pkg/protocol"
)

// BindingCache stores the bindings last seen for an owner reference.
// Load returns an empty slice and a nil error on a miss.
type BindingCache interface {
	Save(ctx context.Context, owner string, bindings []protocol.Binding) error
	Load(ctx context.Context, owner string) ([]protocol.Binding, error)
}

// Backend names accepted by Config.Backend.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendPG     = "postgres"
	BackendMemory = "memory"
)

// DefaultTTL matches the lifetime the service gives its own owner cache.
const DefaultTTL = 24 * time.Hour

// Config configures the cache layer.
type Config struct {
	Backend string // file (default), sqlite, redis, postgres, memory
	// Path is the file or sqlite database location.
	Path        string
	RedisURL    string
	PostgresDSN string
	TTL         time.Duration
	// Key seals pass UUIDs at rest. Empty stores them in clear text.
	Key string
	// MemoryEntries sizes the in-process tier. Zero uses DefaultMemoryEntries.
	MemoryEntries int
}

// Record is the persisted shape shared by the file and sqlite backends.
type Record struct {
	Bindings []protocol.Binding `json:"bindings"`
	SavedAt  time.Time          `json:"saved_at"`
}

func cloneBindings(in []protocol.Binding) []protocol.Binding {
	if in == nil {
		return []protocol.Binding{}
	}
	return slices.Clone(in)
}
