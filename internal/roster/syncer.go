// Package roster keeps the selected bot's paginated, filtered user table in
// step with the service. Fetches are last-request-wins; status toggles are
// optimistic with revert; deletes are optimistic without reinsertion.
package roster

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/nextlevelbuilder/botlink/internal/bus"
	"github.com/nextlevelbuilder/botlink/internal/remote"
	"github.com/nextlevelbuilder/botlink/pkg/protocol"
)

// API is the part of the remote service the synchronizer calls.
type API interface {
	ListUsers(ctx context.Context, botID int64, params protocol.UsersParams) (protocol.UsersPage, error)
	SetUserStatus(ctx context.Context, botID int64, userID string, active bool) error
	DeleteUser(ctx context.Context, botID int64, userID string) error
}

// DefaultPageSize is used when Config.PageSize is not set.
const DefaultPageSize = 5

type Config struct {
	PageSize int
	Bus      *bus.Bus
}

// Snapshot is a consistent copy of the table.
type Snapshot struct {
	BotID   int64
	Query   Query
	Rows    []Row
	Total   int
	Loading bool
}

// Synchronizer is bound to at most one bot at a time. Safe for concurrent use.
type Synchronizer struct {
	api      API
	bus      *bus.Bus
	pageSize int

	mu      sync.Mutex
	botID   int64
	query   Query
	rows    []Row
	total   int
	seq     uint64 // last issued fetch
	epoch   uint64 // bumped by Reset and Close
	loading bool
	closed  bool
}

func New(api API, cfg Config) *Synchronizer {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	return &Synchronizer{
		api:      api,
		bus:      cfg.Bus,
		pageSize: cfg.PageSize,
		query:    Query{Page: 1, PageSize: cfg.PageSize},
	}
}

// Reset binds the synchronizer to botID (0 unbinds) with a fresh query and an
// empty table. Responses to requests issued before the reset are dropped.
func (s *Synchronizer) Reset(botID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.botID = botID
	s.query = Query{Page: 1, PageSize: s.pageSize}
	s.rows = nil
	s.total = 0
	s.loading = false
}

// SetPageSize changes the default page size applied by the next Reset.
func (s *Synchronizer) SetPageSize(n int) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	s.pageSize = n
	s.mu.Unlock()
}

// Close unbinds the synchronizer for good.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.closed = true
	s.botID = 0
	s.rows = nil
	s.total = 0
	s.loading = false
}

// Snapshot returns a copy of the current table.
func (s *Synchronizer) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		BotID:   s.botID,
		Query:   s.query,
		Rows:    slices.Clone(s.rows),
		Total:   s.total,
		Loading: s.loading,
	}
}

// SetQuery merges p into the current query and fetches.
func (s *Synchronizer) SetQuery(ctx context.Context, p QueryPatch) error {
	s.mu.Lock()
	if err := s.usableLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.query = s.query.merge(p)
	s.mu.Unlock()
	return s.Fetch(ctx)
}

// Fetch loads the current query. On success rows and total are replaced
// together; on failure the previous rows stay and the error is returned and
// surfaced once. A response overtaken by a later fetch is dropped silently.
func (s *Synchronizer) Fetch(ctx context.Context) error {
	s.mu.Lock()
	if err := s.usableLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.seq++
	seq, epoch, botID, q := s.seq, s.epoch, s.botID, s.query
	s.loading = true
	s.mu.Unlock()

	page, err := s.api.ListUsers(ctx, botID, q.params())

	s.mu.Lock()
	if s.epoch != epoch || s.seq != seq {
		s.mu.Unlock()
		slog.Debug("roster response dropped", "bot_id", botID, "page", q.Page, "reason", errStaleResponse)
		return nil
	}
	s.loading = false
	if err != nil {
		s.mu.Unlock()
		s.notifyError(err)
		return fmt.Errorf("fetch users: %w", err)
	}
	rows := make([]Row, 0, len(page.Users))
	for _, u := range page.Users {
		rows = append(rows, rowFromRaw(u))
	}
	s.rows = rows
	s.total = page.Total
	s.mu.Unlock()

	s.bus.Publish(bus.Event{
		Name:    bus.EventRosterUpdated,
		Payload: bus.RosterUpdated{BotID: botID, Rows: len(rows), Total: page.Total},
	})
	return nil
}

// ToggleStatus flips the row's status at once and then asks the service. On
// failure the flip is reverted, unless the row has since left the view, and
// the reason is surfaced.
func (s *Synchronizer) ToggleStatus(ctx context.Context, rowID string) error {
	s.mu.Lock()
	idx, err := s.mutableLocked(rowID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	want := !s.rows[idx].Active
	s.rows[idx].Active = want
	botID, epoch := s.botID, s.epoch
	s.mu.Unlock()

	err = s.api.SetUserStatus(ctx, botID, rowID, want)
	if err == nil {
		slog.Debug("user status changed", "bot_id", botID, "user_id", rowID, "active", want)
		return nil
	}

	s.mu.Lock()
	current := s.epoch == epoch
	if current {
		if i := s.indexLocked(rowID); i >= 0 && s.rows[i].Active == want {
			s.rows[i].Active = !want
		}
	}
	s.mu.Unlock()

	if current {
		s.notifyError(err)
	}
	return fmt.Errorf("set user %s status: %w", rowID, err)
}

// DeleteRow removes the row at once and then asks the service. A failed
// delete is surfaced but the row is not put back; the next Fetch reconciles.
func (s *Synchronizer) DeleteRow(ctx context.Context, rowID string) error {
	s.mu.Lock()
	idx, err := s.mutableLocked(rowID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.rows = slices.Delete(slices.Clone(s.rows), idx, idx+1)
	if s.total > 0 {
		s.total--
	}
	botID, epoch := s.botID, s.epoch
	s.mu.Unlock()

	err = s.api.DeleteUser(ctx, botID, rowID)
	if err == nil {
		slog.Info("user deleted", "bot_id", botID, "user_id", rowID)
		return nil
	}

	s.mu.Lock()
	current := s.epoch == epoch
	s.mu.Unlock()
	if current {
		s.notifyError(err)
	}
	return fmt.Errorf("delete user %s: %w", rowID, err)
}

func (s *Synchronizer) usableLocked() error {
	if s.closed {
		return ErrClosed
	}
	if s.botID == 0 {
		return ErrNoBot
	}
	return nil
}

func (s *Synchronizer) mutableLocked(rowID string) (int, error) {
	if err := s.usableLocked(); err != nil {
		return -1, err
	}
	idx := s.indexLocked(rowID)
	if idx < 0 {
		return -1, fmt.Errorf("user %s: %w", rowID, ErrRowNotFound)
	}
	if s.rows[idx].IsOwner {
		return -1, ErrOwnerRow
	}
	return idx, nil
}

func (s *Synchronizer) indexLocked(rowID string) int {
	return slices.IndexFunc(s.rows, func(r Row) bool { return r.ID == rowID })
}

func (s *Synchronizer) notifyError(err error) {
	s.bus.Notify(bus.LevelError, remote.UserMessage(err))
}
