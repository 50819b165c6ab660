// Package file is the default binding cache: one JSON document holding every
// owner's last known bindings.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nextlevelbuilder/botlink/internal/store"
	"github.com/nextlevelbuilder/botlink/pkg/protocol"
)

// BindingStore keeps the document at path and rewrites it atomically on each Save.
type BindingStore struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

func NewBindingStore(path string) *BindingStore {
	return &BindingStore{path: path, now: time.Now}
}

// Path returns the document location.
func (s *BindingStore) Path() string { return s.path }

func (s *BindingStore) Save(_ context.Context, owner string, bindings []protocol.Binding) error {
	if err := store.ValidateOwnerRef(owner); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	if bindings == nil {
		bindings = []protocol.Binding{}
	}
	doc[owner] = store.Record{Bindings: bindings, SavedAt: s.now().UTC()}
	return s.write(doc)
}

func (s *BindingStore) Load(_ context.Context, owner string) ([]protocol.Binding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	rec, ok := doc[owner]
	if !ok || rec.Bindings == nil {
		return []protocol.Binding{}, nil
	}
	return rec.Bindings, nil
}

func (s *BindingStore) read() (map[string]store.Record, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]store.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read binding cache: %w", err)
	}
	doc := map[string]store.Record{}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse binding cache %s: %w", s.path, err)
	}
	return doc, nil
}

func (s *BindingStore) write(doc map[string]store.Record) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode binding cache: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".bindings-*.json")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp cache file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace binding cache: %w", err)
	}
	return nil
}
