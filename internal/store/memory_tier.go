package store

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/nextlevelbuilder/botlink/pkg/protocol"
)

// DefaultMemoryEntries is the number of owners kept in the in-process tier.
const DefaultMemoryEntries = 64

// MemoryTier is an LRU in front of a durable backend. With a nil backend it
// is a process-local cache on its own. Writes are last-writer-wins.
type MemoryTier struct {
	next  BindingCache
	cache *lru.Cache[string, []protocol.Binding]
	mu    sync.Mutex // serialises write-through so the LRU and backend agree
}

// NewMemoryTier creates the tier. size <= 0 uses DefaultMemoryEntries.
func NewMemoryTier(next BindingCache, size int) *MemoryTier {
	if size <= 0 {
		size = DefaultMemoryEntries
	}
	// lru.New only errors on a non-positive size, guarded above.
	cache, _ := lru.New[string, []protocol.Binding](size)
	return &MemoryTier{next: next, cache: cache}
}

func (m *MemoryTier) Save(ctx context.Context, owner string, bindings []protocol.Binding) error {
	if err := ValidateOwnerRef(owner); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.next != nil {
		if err := m.next.Save(ctx, owner, bindings); err != nil {
			m.cache.Remove(owner)
			return err
		}
	}
	m.cache.Add(owner, cloneBindings(bindings))
	return nil
}

func (m *MemoryTier) Load(ctx context.Context, owner string) ([]protocol.Binding, error) {
	if v, ok := m.cache.Get(owner); ok {
		return cloneBindings(v), nil
	}
	if m.next == nil {
		return []protocol.Binding{}, nil
	}
	v, err := m.next.Load(ctx, owner)
	if err != nil {
		return nil, err
	}
	m.cache.ContainsOrAdd(owner, cloneBindings(v))
	return cloneBindings(v), nil
}

// Purge drops every in-process entry. The backend is untouched.
func (m *MemoryTier) Purge() { m.cache.Purge() }
