// Package redis stores the binding cache in Redis so several machines of the
// same operator share it.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/nextlevelbuilder/botlink/internal/store"
	"github.com/nextlevelbuilder/botlink/pkg/protocol"
)

// BindingStore implements store.BindingCache with one string key per owner.
type BindingStore struct {
	rdb *goredis.Client
	ttl time.Duration
}

// Key returns the Redis key holding owner's bindings.
func Key(owner string) string {
	return fmt.Sprintf("botlink:owner:%s:bots", owner)
}

// Open parses url (redis://...) and falls back to treating it as host:port.
func Open(ctx context.Context, url string, ttl time.Duration) (*BindingStore, error) {
	opt, err := goredis.ParseURL(url)
	if err != nil {
		opt = &goredis.Options{Addr: url}
	}
	rdb := goredis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return New(rdb, ttl), nil
}

// New wraps an existing client. ttl <= 0 uses store.DefaultTTL.
func New(rdb *goredis.Client, ttl time.Duration) *BindingStore {
	if ttl <= 0 {
		ttl = store.DefaultTTL
	}
	return &BindingStore{rdb: rdb, ttl: ttl}
}

func (s *BindingStore) Save(ctx context.Context, owner string, bindings []protocol.Binding) error {
	if err := store.ValidateOwnerRef(owner); err != nil {
		return err
	}
	if bindings == nil {
		bindings = []protocol.Binding{}
	}
	payload, err := json.Marshal(bindings)
	if err != nil {
		return fmt.Errorf("encode bindings: %w", err)
	}
	if err := s.rdb.Set(ctx, Key(owner), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *BindingStore) Load(ctx context.Context, owner string) ([]protocol.Binding, error) {
	payload, err := s.rdb.Get(ctx, Key(owner)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return []protocol.Binding{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	out := []protocol.Binding{}
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("decode bindings: %w", err)
	}
	return out, nil
}

func (s *BindingStore) Close() error { return s.rdb.Close() }
