package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nextlevelbuilder/botlink/internal/store"
	"github.com/nextlevelbuilder/botlink/pkg/protocol"
)

// BindingStore implements store.BindingCache on the binding_cache table.
type BindingStore struct {
	db  *sql.DB
	ttl time.Duration
}

// Open connects and creates the table if needed. Rows older than ttl are a
// miss; ttl <= 0 keeps them forever.
func Open(ctx context.Context, dsn string, ttl time.Duration) (*BindingStore, error) {
	db, err := OpenDB(ctx, dsn)
	if err != nil {
		return nil, err
	}
	s := &BindingStore{db: db, ttl: ttl}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS binding_cache (
		owner    TEXT PRIMARY KEY,
		payload  JSONB NOT NULL,
		saved_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
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
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO binding_cache (owner, payload, saved_at) VALUES ($1, $2, now())
		 ON CONFLICT (owner) DO UPDATE SET payload = EXCLUDED.payload, saved_at = EXCLUDED.saved_at`,
		owner, payload)
	if err != nil {
		return fmt.Errorf("save bindings: %w", err)
	}
	return nil
}

func (s *BindingStore) Load(ctx context.Context, owner string) ([]protocol.Binding, error) {
	var payload []byte
	var savedAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, saved_at FROM binding_cache WHERE owner = $1`, owner).Scan(&payload, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return []protocol.Binding{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load bindings: %w", err)
	}
	if s.ttl > 0 && time.Since(savedAt) > s.ttl {
		return []protocol.Binding{}, nil
	}
	out := []protocol.Binding{}
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("decode bindings: %w", err)
	}
	return out, nil
}

// Close closes the connection pool.
func (s *BindingStore) Close() error { return s.db.Close() }
