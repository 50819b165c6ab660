package roster

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nextlevelbuilder/botlink/internal/bus"
	"github.com/nextlevelbuilder/botlink/internal/remote"
	"github.com/nextlevelbuilder/botlink/pkg/protocol"
)

type listCall struct {
	botID  int64
	params protocol.UsersParams
	reply  chan listReply
}

type listReply struct {
	page protocol.UsersPage
	err  error
}

// fakeAPI hands every ListUsers call to the test through calls, which answers
// on call.reply. Mutations answer from statusErr/deleteErr, optionally after
// waiting on gate.
type fakeAPI struct {
	calls chan listCall

	mu        sync.Mutex
	statusErr error
	deleteErr error
	gate      chan struct{}
	mutations []string
}

func newFakeAPI() *fakeAPI { return &fakeAPI{calls: make(chan listCall)} }

func (f *fakeAPI) ListUsers(ctx context.Context, botID int64, p protocol.UsersParams) (protocol.UsersPage, error) {
	c := listCall{botID: botID, params: p, reply: make(chan listReply, 1)}
	select {
	case f.calls <- c:
	case <-ctx.Done():
		return protocol.UsersPage{}, ctx.Err()
	}
	r := <-c.reply
	return r.page, r.err
}

func (f *fakeAPI) wait() {
	f.mu.Lock()
	g := f.gate
	f.mu.Unlock()
	if g != nil {
		<-g
	}
}

func (f *fakeAPI) SetUserStatus(_ context.Context, _ int64, userID string, active bool) error {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutations = append(f.mutations, "status "+userID)
	return f.statusErr
}

func (f *fakeAPI) DeleteUser(_ context.Context, _ int64, userID string) error {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutations = append(f.mutations, "delete "+userID)
	return f.deleteErr
}

func strp(s string) *string { return &s }

func user(id int64, name string, active, owner bool) protocol.RawUser {
	return protocol.RawUser{ID: id, Name: strp(name), Phone: strp("+71111111111"), Status: active, IsOwner: owner}
}

type fixture struct {
	api     *fakeAPI
	sync    *Synchronizer
	notices *[]bus.Notice
	mu      *sync.Mutex
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	api := newFakeAPI()
	b := bus.New()
	var mu sync.Mutex
	var notices []bus.Notice
	b.Subscribe("test", func(ev bus.Event) {
		if n, ok := ev.Payload.(bus.Notice); ok {
			mu.Lock()
			notices = append(notices, n)
			mu.Unlock()
		}
	})
	s := New(api, Config{Bus: b})
	s.Reset(7)
	return fixture{api: api, sync: s, notices: &notices, mu: &mu}
}

func (f fixture) noticeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(*f.notices)
}

func (f fixture) nextCall(t *testing.T) listCall {
	t.Helper()
	select {
	case c := <-f.api.calls:
		return c
	case <-time.After(time.Second):
		t.Fatal("no ListUsers call")
		return listCall{}
	}
}

// load runs one fetch answered with users.
func (f fixture) load(t *testing.T, total int, users ...protocol.RawUser) {
	t.Helper()
	errc := make(chan error, 1)
	go func() { errc <- f.sync.Fetch(context.Background()) }()
	c := f.nextCall(t)
	c.reply <- listReply{page: protocol.UsersPage{Users: users, Total: total}}
	if err := <-errc; err != nil {
		t.Fatalf("Fetch: %v", err)
	}
}

func TestFetchScenario(t *testing.T) {
	f := newFixture(t)
	errc := make(chan error, 1)
	go func() { errc <- f.sync.Fetch(context.Background()) }()

	c := f.nextCall(t)
	if c.botID != 7 || c.params.Encode() != "page=1&per_page=5" {
		t.Fatalf("request = bot %d %q", c.botID, c.params.Encode())
	}
	if !f.sync.Snapshot().Loading {
		t.Error("Loading not set while the fetch is outstanding")
	}
	c.reply <- listReply{page: protocol.UsersPage{Users: []protocol.RawUser{user(1, "Jim", true, false)}, Total: 1}}
	if err := <-errc; err != nil {
		t.Fatal(err)
	}

	snap := f.sync.Snapshot()
	if len(snap.Rows) != 1 || snap.Total != 1 || snap.Rows[0].ID != "1" || snap.Loading {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestLastIssuedFetchWins(t *testing.T) {
	f := newFixture(t)
	firstErr := make(chan error, 1)
	go func() { firstErr <- f.sync.Fetch(context.Background()) }()
	first := f.nextCall(t)

	page2 := 2
	secondErr := make(chan error, 1)
	go func() { secondErr <- f.sync.SetQuery(context.Background(), QueryPatch{Page: &page2}) }()
	second := f.nextCall(t)
	if second.params.Page != 2 {
		t.Fatalf("second fetch page = %d", second.params.Page)
	}

	// The later request answers first, the earlier one afterwards.
	second.reply <- listReply{page: protocol.UsersPage{Users: []protocol.RawUser{user(6, "Page Two", true, false)}, Total: 6}}
	if err := <-secondErr; err != nil {
		t.Fatal(err)
	}
	first.reply <- listReply{page: protocol.UsersPage{Users: []protocol.RawUser{user(1, "Page One", true, false)}, Total: 6}}
	if err := <-firstErr; err != nil {
		t.Fatalf("stale fetch must not report an error: %v", err)
	}

	snap := f.sync.Snapshot()
	if len(snap.Rows) != 1 || snap.Rows[0].ID != "6" || snap.Query.Page != 2 {
		t.Errorf("snapshot = %+v, want page 2 rows", snap)
	}
}

func TestFetchFailureKeepsRows(t *testing.T) {
	f := newFixture(t)
	f.load(t, 1, user(1, "Jim", true, false))

	errc := make(chan error, 1)
	go func() { errc <- f.sync.Fetch(context.Background()) }()
	c := f.nextCall(t)
	c.reply <- listReply{err: &remote.RequestError{Status: 500}}
	if err := <-errc; err == nil {
		t.Fatal("expected error")
	}
	if snap := f.sync.Snapshot(); len(snap.Rows) != 1 || snap.Loading {
		t.Errorf("stale rows lost: %+v", snap)
	}
	if f.noticeCount() != 1 {
		t.Errorf("notices = %d, want 1", f.noticeCount())
	}
}

func TestFilterChangeResetsPage(t *testing.T) {
	tests := []struct {
		name  string
		patch QueryPatch
	}{
		{"search", QueryPatch{Search: strp("jim")}},
		{"status", func() QueryPatch { s := StatusInactive; return QueryPatch{Status: &s} }()},
		{"search overrides page", func() QueryPatch { p := 4; return QueryPatch{Page: &p, Search: strp("joe")} }()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			page3 := 3
			go f.sync.SetQuery(context.Background(), QueryPatch{Page: &page3})
			c := f.nextCall(t)
			c.reply <- listReply{page: protocol.UsersPage{Total: 20}}

			errc := make(chan error, 1)
			go func() { errc <- f.sync.SetQuery(context.Background(), tt.patch) }()
			c = f.nextCall(t)
			if c.params.Page != 1 {
				t.Errorf("page after filter change = %d, want 1", c.params.Page)
			}
			c.reply <- listReply{}
			<-errc
		})
	}
}

func TestStatusParamEncoding(t *testing.T) {
	f := newFixture(t)
	active := StatusActive
	go f.sync.SetQuery(context.Background(), QueryPatch{Status: &active, Search: strp("jim green")})
	c := f.nextCall(t)
	if got := c.params.Encode(); got != "page=1&per_page=5&search=jim+green&status=true" {
		t.Errorf("query = %q", got)
	}
	c.reply <- listReply{}
}

func TestToggleRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.load(t, 1, user(2, "Jim", false, false))

	if err := f.sync.ToggleStatus(context.Background(), "2"); err != nil {
		t.Fatalf("ToggleStatus: %v", err)
	}
	if !f.sync.Snapshot().Rows[0].Active {
		t.Error("successful toggle should leave the row active")
	}

	// Back to inactive and then a failing toggle.
	f.load(t, 1, user(2, "Jim", false, false))
	f.api.mu.Lock()
	f.api.statusErr = &remote.RequestError{Status: 400, Detail: "user is blocked"}
	f.api.gate = make(chan struct{})
	gate := f.api.gate
	f.api.mu.Unlock()

	errc := make(chan error, 1)
	go func() { errc <- f.sync.ToggleStatus(context.Background(), "2") }()
	deadline := time.After(time.Second)
	for !f.sync.Snapshot().Rows[0].Active {
		select {
		case <-deadline:
			t.Fatal("optimistic flip not visible")
		case <-time.After(time.Millisecond):
		}
	}
	close(gate)
	if err := <-errc; err == nil {
		t.Fatal("expected error")
	}
	if f.sync.Snapshot().Rows[0].Active {
		t.Error("failed toggle should restore inactive")
	}
	if f.noticeCount() != 1 {
		t.Errorf("notices = %d, want exactly 1", f.noticeCount())
	}
	f.mu.Lock()
	msg := (*f.notices)[0].Message
	f.mu.Unlock()
	if msg != "user is blocked" {
		t.Errorf("notice = %q, want server reason", msg)
	}
}

func TestToggleRevertAfterRowRemoved(t *testing.T) {
	f := newFixture(t)
	f.load(t, 2, user(2, "Jim", false, false), user(3, "Joe", true, false))
	f.api.mu.Lock()
	f.api.statusErr = errors.New("boom")
	f.api.gate = make(chan struct{})
	gate := f.api.gate
	f.api.mu.Unlock()

	errc := make(chan error, 1)
	go func() { errc <- f.sync.ToggleStatus(context.Background(), "2") }()
	time.Sleep(5 * time.Millisecond)
	// A fetch replaces the view without row 2 before the toggle fails.
	f.api.mu.Lock()
	f.api.gate = nil
	f.api.mu.Unlock()
	f.load(t, 1, user(3, "Joe", true, false))
	close(gate)
	<-errc

	snap := f.sync.Snapshot()
	if len(snap.Rows) != 1 || snap.Rows[0].ID != "3" || !snap.Rows[0].Active {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestDeleteScenario(t *testing.T) {
	f := newFixture(t)
	f.load(t, 1, user(1, "Jim", true, false))
	f.api.mu.Lock()
	f.api.deleteErr = &remote.RequestError{Status: 409, Detail: "cannot delete"}
	f.api.gate = make(chan struct{})
	gate := f.api.gate
	f.api.mu.Unlock()

	errc := make(chan error, 1)
	go func() { errc <- f.sync.DeleteRow(context.Background(), "1") }()
	deadline := time.After(time.Second)
	for len(f.sync.Snapshot().Rows) != 0 {
		select {
		case <-deadline:
			t.Fatal("row not removed before the response")
		case <-time.After(time.Millisecond):
		}
	}
	close(gate)
	if err := <-errc; err == nil {
		t.Fatal("expected error")
	}

	snap := f.sync.Snapshot()
	if len(snap.Rows) != 0 || snap.Total != 0 {
		t.Errorf("failed delete reinserted the row: %+v", snap)
	}
	if f.noticeCount() != 1 {
		t.Errorf("notices = %d, want 1", f.noticeCount())
	}

	f.api.mu.Lock()
	f.api.gate = nil
	f.api.mu.Unlock()
	f.load(t, 1, user(1, "Jim", true, false))
	if len(f.sync.Snapshot().Rows) != 1 {
		t.Error("fetch did not reconcile the row back")
	}
}

func TestOwnerRowIsReadOnly(t *testing.T) {
	f := newFixture(t)
	f.load(t, 1, user(1, "John", true, true))

	if err := f.sync.ToggleStatus(context.Background(), "1"); !errors.Is(err, ErrOwnerRow) {
		t.Errorf("ToggleStatus(owner) = %v", err)
	}
	if err := f.sync.DeleteRow(context.Background(), "1"); !errors.Is(err, ErrOwnerRow) {
		t.Errorf("DeleteRow(owner) = %v", err)
	}
	if err := f.sync.DeleteRow(context.Background(), "42"); !errors.Is(err, ErrRowNotFound) {
		t.Errorf("DeleteRow(unknown) = %v", err)
	}
	if len(f.api.mutations) != 0 {
		t.Errorf("service called: %v", f.api.mutations)
	}
}

func TestResetDropsInflightResponse(t *testing.T) {
	f := newFixture(t)
	errc := make(chan error, 1)
	go func() { errc <- f.sync.Fetch(context.Background()) }()
	c := f.nextCall(t)

	f.sync.Reset(8)
	c.reply <- listReply{page: protocol.UsersPage{Users: []protocol.RawUser{user(1, "Old", true, false)}, Total: 1}}
	if err := <-errc; err != nil {
		t.Fatal(err)
	}
	snap := f.sync.Snapshot()
	if snap.BotID != 8 || len(snap.Rows) != 0 {
		t.Errorf("response for the previous bot leaked: %+v", snap)
	}
}

func TestUnboundAndClosed(t *testing.T) {
	s := New(newFakeAPI(), Config{})
	if err := s.Fetch(context.Background()); !errors.Is(err, ErrNoBot) {
		t.Errorf("Fetch unbound = %v", err)
	}
	s.Reset(1)
	s.Close()
	if err := s.Fetch(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Fetch closed = %v", err)
	}
}
