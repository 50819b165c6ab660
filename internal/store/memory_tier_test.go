package store

import (
	"context"
	"errors"
	"testing"

	"github.com/nextlevelbuilder/botlink/internal/crypto"
	"github.com/nextlevelbuilder/botlink/pkg/protocol"
)

type mapCache struct {
	data  map[string][]protocol.Binding
	loads int
	fail  error
}

func newMapCache() *mapCache { return &mapCache{data: map[string][]protocol.Binding{}} }

func (m *mapCache) Save(_ context.Context, owner string, b []protocol.Binding) error {
	if m.fail != nil {
		return m.fail
	}
	m.data[owner] = cloneBindings(b)
	return nil
}

func (m *mapCache) Load(_ context.Context, owner string) ([]protocol.Binding, error) {
	m.loads++
	return cloneBindings(m.data[owner]), nil
}

func TestMemoryTierServesFromLRU(t *testing.T) {
	ctx := context.Background()
	backend := newMapCache()
	backend.data["ref"] = []protocol.Binding{{BotID: 7}}
	tier := NewMemoryTier(backend, 2)

	for range 3 {
		got, err := tier.Load(ctx, "ref")
		if err != nil || len(got) != 1 || got[0].BotID != 7 {
			t.Fatalf("Load = %+v, %v", got, err)
		}
	}
	if backend.loads != 1 {
		t.Errorf("backend loads = %d, want 1", backend.loads)
	}

	// Callers get copies.
	got, _ := tier.Load(ctx, "ref")
	got[0].BotID = 99
	again, _ := tier.Load(ctx, "ref")
	if again[0].BotID != 7 {
		t.Error("mutating a loaded slice leaked into the cache")
	}
}

func TestMemoryTierWriteThroughFailure(t *testing.T) {
	ctx := context.Background()
	backend := newMapCache()
	tier := NewMemoryTier(backend, 0)
	_ = tier.Save(ctx, "ref", []protocol.Binding{{BotID: 1}})

	backend.fail = errors.New("disk full")
	if err := tier.Save(ctx, "ref", []protocol.Binding{{BotID: 2}}); err == nil {
		t.Fatal("expected backend error")
	}
	got, _ := tier.Load(ctx, "ref")
	if len(got) != 1 || got[0].BotID != 1 {
		t.Errorf("Load after failed save = %+v, want the backend's bot 1", got)
	}
}

func TestMemoryTierStandalone(t *testing.T) {
	ctx := context.Background()
	tier := NewMemoryTier(nil, 1)
	if got, _ := tier.Load(ctx, "a"); len(got) != 0 {
		t.Fatalf("miss = %+v", got)
	}
	_ = tier.Save(ctx, "a", []protocol.Binding{{BotID: 1}})
	_ = tier.Save(ctx, "b", []protocol.Binding{{BotID: 2}}) // evicts a
	if got, _ := tier.Load(ctx, "a"); len(got) != 0 {
		t.Errorf("evicted entry still present: %+v", got)
	}
}

func TestSealedHidesPassUUID(t *testing.T) {
	ctx := context.Background()
	sealer, err := crypto.NewSealer("0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatal(err)
	}
	backend := newMapCache()
	c := NewSealed(backend, sealer)

	in := []protocol.Binding{{BotID: 7, BotName: "demo_bot", PassUUID: "secret-uuid"}}
	if err := c.Save(ctx, "ref", in); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if in[0].PassUUID != "secret-uuid" {
		t.Error("Save mutated the caller's slice")
	}
	if stored := backend.data["ref"][0].PassUUID; !crypto.IsSealed(stored) {
		t.Errorf("backend holds %q, want sealed value", stored)
	}

	got, err := c.Load(ctx, "ref")
	if err != nil || got[0].PassUUID != "secret-uuid" || got[0].BotName != "demo_bot" {
		t.Errorf("Load = %+v, %v", got, err)
	}
}
