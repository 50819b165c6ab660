// Package sqlite stores the binding cache in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nextlevelbuilder/botlink/internal/store"
	"github.com/nextlevelbuilder/botlink/pkg/protocol"
)

// BindingStore implements store.BindingCache on the binding_cache table.
type BindingStore struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// Open opens (or creates) the database at dbPath. Rows older than ttl are
// treated as a miss; ttl <= 0 keeps rows forever.
func Open(dbPath string, ttl time.Duration) (*BindingStore, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &BindingStore{db: db, ttl: ttl, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	slog.Debug("binding cache opened", "backend", "sqlite", "path", dbPath)
	return s, nil
}

func (s *BindingStore) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS binding_cache (
		owner TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		saved_at INTEGER NOT NULL
	)`)
	return err
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
		`INSERT INTO binding_cache (owner, payload, saved_at) VALUES (?, ?, ?)
		 ON CONFLICT(owner) DO UPDATE SET payload = excluded.payload, saved_at = excluded.saved_at`,
		owner, string(payload), s.now().Unix())
	if err != nil {
		return fmt.Errorf("save bindings: %w", err)
	}
	return nil
}

func (s *BindingStore) Load(ctx context.Context, owner string) ([]protocol.Binding, error) {
	var payload string
	var savedAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, saved_at FROM binding_cache WHERE owner = ?`, owner).Scan(&payload, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return []protocol.Binding{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load bindings: %w", err)
	}
	if s.ttl > 0 && s.now().Sub(time.Unix(savedAt, 0)) > s.ttl {
		return []protocol.Binding{}, nil
	}

	out := []protocol.Binding{}
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		return nil, fmt.Errorf("decode bindings: %w", err)
	}
	return out, nil
}

// Close closes the database.
func (s *BindingStore) Close() error { return s.db.Close() }
