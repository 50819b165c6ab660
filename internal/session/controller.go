// Package session owns the operator's bot session: which bots are linked,
// which one is selected, and the linking / verification / admin lifecycle.
//
// All state sits behind one mutex that is never held across a remote call.
// In-flight markers (linking, checking) keep at most one link or one-shot
// verification check outstanding, and a per-bot sequence tag discards
// verification results that a newer request for the same bot has superseded.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/nextlevelbuilder/botlink/internal/bus"
	"github.com/nextlevelbuilder/botlink/internal/pairing"
	"github.com/nextlevelbuilder/botlink/internal/remote"
	"github.com/nextlevelbuilder/botlink/internal/store"
	"github.com/nextlevelbuilder/botlink/pkg/protocol"
)

// API is the part of the remote service the controller calls.
type API interface {
	pairing.Checker
	Link(ctx context.Context, req protocol.LinkRequest) (protocol.Binding, error)
	OwnerBots(ctx context.Context, ownerRef string) ([]protocol.Binding, error)
	Invite(ctx context.Context, botID int64) (string, error)
	Refresh(ctx context.Context, botID int64, locale string) (string, error)
	Logout(ctx context.Context, botID int64) error
}

// Roster is told which bot's users to show. Reset(0) clears it.
type Roster interface {
	Reset(botID int64)
}

// DefaultUnloadTimeout bounds the fire-and-forget logout sent by Unload.
const DefaultUnloadTimeout = 3 * time.Second

// Config wires a Controller. Only Owner is required.
type Config struct {
	Owner         string
	Locale        string
	PollInterval  time.Duration
	Cache         store.BindingCache
	Bus           *bus.Bus
	Roster        Roster
	UnloadTimeout time.Duration
	PollerOptions []pairing.Option
}

type linkOrigin struct {
	mode     Mode
	selected *protocol.Binding
}

// Controller is the session state machine. Safe for concurrent use.
type Controller struct {
	api     API
	cfg     Config
	ctx     context.Context // parent of every poller, cancelled by Close/Unload
	cancel  context.CancelFunc
	flights singleflight.Group
	bg      sync.WaitGroup
	saveMu  sync.Mutex

	mu         sync.Mutex
	linked     []protocol.Binding
	selected   *protocol.Binding
	mode       Mode
	firstLink  bool // the pending verification belongs to a binding added by this link
	linking    bool
	linkToken  string
	before     linkOrigin
	checking   bool
	checkingID int64 // bot under SelectBot's one-shot check
	poller     *pairing.Poller
	seq        map[int64]uint64
	closed     bool
}

func New(api API, cfg Config) *Controller {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = pairing.DefaultInterval
	}
	if cfg.UnloadTimeout <= 0 {
		cfg.UnloadTimeout = DefaultUnloadTimeout
	}
	if cfg.Locale == "" {
		cfg.Locale = "en"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		api:    api,
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
		seq:    make(map[int64]uint64),
	}
}

// State returns a copy of the current session.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := State{Linked: slices.Clone(c.linked), Mode: c.mode}
	if st.Linked == nil {
		st.Linked = []protocol.Binding{}
	}
	if c.selected != nil {
		b := *c.selected
		st.Selected = &b
	}
	return st
}

// Mode returns the current mode.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// SetPollInterval changes the interval used by pollers started from now on.
func (c *Controller) SetPollInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	c.cfg.PollInterval = d
	c.mu.Unlock()
}

// Link submits a bot token. Concurrent calls with the same token share one
// remote request; a call with a different token while one is pending, or
// while a verification check is outstanding, fails with ErrBusy.
//
// On success the binding is added to (or replaced in) the linked set, becomes
// the selection, and verification polling starts. On failure the session
// returns to the mode it was in before the call.
func (c *Controller) Link(ctx context.Context, token string) (protocol.Binding, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return protocol.Binding{}, ErrEmptyToken
	}

	var e effects
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return protocol.Binding{}, ErrClosed
	case c.linking && c.linkToken == token:
		// joins the flight below
	case c.linking, c.checking, c.mode == ModeAwaitingVerification:
		c.mu.Unlock()
		return protocol.Binding{}, ErrBusy
	default:
		c.linking = true
		c.linkToken = token
		c.before = linkOrigin{mode: c.mode, selected: c.selected}
		c.selected = nil
		c.setModeLocked(ModeLinking, &e)
	}
	c.mu.Unlock()
	c.apply(ctx, &e)

	v, err, shared := c.flights.Do(token, func() (any, error) {
		return c.link(ctx, token)
	})
	if shared {
		slog.Debug("link request coalesced")
	}
	if err != nil {
		return protocol.Binding{}, err
	}
	return v.(protocol.Binding), nil
}

func (c *Controller) link(ctx context.Context, token string) (protocol.Binding, error) {
	c.mu.Lock()
	if !c.linking || c.linkToken != token {
		// A caller that arrived after an earlier flight for this token settled.
		c.mu.Unlock()
		return protocol.Binding{}, ErrBusy
	}
	owner, locale := c.cfg.Owner, c.cfg.Locale
	c.mu.Unlock()

	b, err := c.api.Link(ctx, protocol.LinkRequest{
		TelegramToken: token,
		OwnerUUID:     owner,
		Locale:        locale,
	})

	var e effects
	c.mu.Lock()
	c.linking = false
	c.linkToken = ""
	if c.closed {
		c.mu.Unlock()
		return protocol.Binding{}, ErrClosed
	}
	if err != nil {
		c.selected = c.before.selected
		c.setModeLocked(c.before.mode, &e)
		c.before = linkOrigin{}
		c.mu.Unlock()
		c.apply(ctx, &e)
		slog.Warn("bot link failed", "status", remote.StatusCode(err), "error", err)
		c.notifyError(err)
		return protocol.Binding{}, err
	}

	first := c.upsertLocked(b)
	sel := b
	c.selected = &sel
	c.firstLink = first
	c.before = linkOrigin{}
	c.setModeLocked(ModeAwaitingVerification, &e)
	c.startPollerLocked(b.BotID)
	e.save = true
	c.mu.Unlock()

	slog.Info("bot linked", "bot_id", b.BotID, "bot_name", b.BotName, "first_time", first)
	c.apply(ctx, &e)
	return b, nil
}

// SelectBot makes an already linked bot the selection after one
// verification check: straight to Admin when verified, otherwise
// AwaitingVerification with polling. The current mode and selection hold
// while the check runs. Unknown ids are ignored.
func (c *Controller) SelectBot(ctx context.Context, botID int64) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.indexLocked(botID) < 0 {
		c.mu.Unlock()
		return nil
	}
	if c.linking || c.checking {
		c.mu.Unlock()
		return ErrBusy
	}
	if c.mode == ModeAdmin && c.selected != nil && c.selected.BotID == botID {
		c.mu.Unlock()
		return nil
	}
	c.checking = true
	c.checkingID = botID
	seq := c.bumpLocked(botID)
	c.mu.Unlock()

	ok := pairing.Check(ctx, c.api, botID)

	var e effects
	c.mu.Lock()
	c.checking = false
	c.checkingID = 0
	idx := c.indexLocked(botID)
	if c.closed || c.seq[botID] != seq || idx < 0 {
		c.mu.Unlock()
		slog.Debug("verification check ignored", "bot_id", botID, "reason", errStaleResponse)
		return nil
	}
	e.stop = c.poller
	c.poller = nil
	c.firstLink = false
	if ok {
		c.switchLocked(c.linked[idx], ModeAdmin, &e)
	} else {
		c.switchLocked(c.linked[idx], ModeAwaitingVerification, &e)
		c.startPollerLocked(botID)
	}
	c.mu.Unlock()
	c.apply(ctx, &e)
	return nil
}

// CancelVerification abandons the pending verification. A binding added by
// the link that started it is dropped; a previously known binding is kept.
func (c *Controller) CancelVerification() {
	var e effects
	c.mu.Lock()
	if c.mode != ModeAwaitingVerification || c.selected == nil {
		c.mu.Unlock()
		return
	}
	id := c.selected.BotID
	c.bumpLocked(id)
	e.stop = c.poller
	c.poller = nil
	if c.firstLink {
		c.removeLocked(id)
		e.save = true
	}
	c.firstLink = false
	c.selected = nil
	c.setModeLocked(ModeDisconnected, &e)
	c.mu.Unlock()

	slog.Info("verification cancelled", "bot_id", id)
	c.apply(c.ctx, &e)
}

// Logout ends the selected bot's session. Local state is cleared first; the
// binding stays linked unless the service reports it revoked. Calling it with
// nothing selected is a no-op.
func (c *Controller) Logout(ctx context.Context) error {
	var e effects
	c.mu.Lock()
	if c.checking {
		c.bumpLocked(c.checkingID)
	}
	if c.closed || c.selected == nil {
		c.mu.Unlock()
		return nil
	}
	b := *c.selected
	c.bumpLocked(b.BotID)
	e.stop = c.poller
	c.poller = nil
	c.selected = nil
	c.firstLink = false
	c.setModeLocked(ModeDisconnected, &e)
	c.mu.Unlock()
	c.apply(ctx, &e)

	err := c.api.Logout(ctx, b.BotID)
	switch {
	case err == nil:
		slog.Info("bot logged out", "bot_id", b.BotID)
		return nil
	case remote.IsRevoked(err):
		c.mu.Lock()
		c.removeLocked(b.BotID)
		c.mu.Unlock()
		c.saveCache(ctx)
		slog.Info("bot binding revoked", "bot_id", b.BotID)
		c.cfg.Bus.Notify(bus.LevelInfo, remote.UserMessage(err))
		return nil
	default:
		c.notifyError(err)
		return fmt.Errorf("logout bot %d: %w", b.BotID, err)
	}
}

// Restore loads the cached bindings and the service's list for the owner at
// the same time and adds any unknown bot to the linked set. The service list
// wins when it is reachable; the cache is only a fallback. Restore never
// selects a bot or enters Admin.
func (c *Controller) Restore(ctx context.Context) (int, error) {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return 0, ErrClosed
	case c.linking, c.checking:
		c.mu.Unlock()
		return 0, ErrBusy
	}
	c.mu.Unlock()

	var (
		cached, listed []protocol.Binding
		cacheErr       error
		g              errgroup.Group
	)
	// A cache failure only downgrades the fallback; the group reports the
	// service's error.
	if c.cfg.Cache != nil {
		g.Go(func() error {
			cached, cacheErr = c.cfg.Cache.Load(ctx, c.cfg.Owner)
			return nil
		})
	}
	g.Go(func() error {
		var err error
		listed, err = c.api.OwnerBots(ctx, c.cfg.Owner)
		return err
	})
	remoteErr := g.Wait()

	if cacheErr != nil {
		slog.Warn("binding cache load failed", "error", cacheErr)
	}
	var found []protocol.Binding
	switch {
	case remoteErr == nil:
		found = listed
	case c.cfg.Cache != nil && cacheErr == nil:
		slog.Warn("owner bots unavailable, using cached bindings", "error", remoteErr)
		found = cached
	default:
		c.notifyError(remoteErr)
		return 0, fmt.Errorf("restore bindings: %w", remoteErr)
	}

	added := 0
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, ErrClosed
	}
	for _, b := range found {
		if c.indexLocked(b.BotID) < 0 {
			c.linked = append(c.linked, b)
			added++
		}
	}
	c.mu.Unlock()

	if remoteErr == nil {
		c.saveCache(ctx)
	}
	slog.Debug("bindings restored", "added", added, "from_cache", remoteErr != nil)
	return added, nil
}

// Invite asks the service for a new invitation for the selected bot.
func (c *Controller) Invite(ctx context.Context) (InviteLink, error) {
	b, err := c.adminBot()
	if err != nil {
		return InviteLink{}, err
	}
	pass, err := c.api.Invite(ctx, b.BotID)
	if err != nil {
		c.notifyError(err)
		return InviteLink{}, fmt.Errorf("invite: %w", err)
	}
	return InviteLink{PassUUID: pass, URL: protocol.TelegramDeepLink(b.BotName, pass)}, nil
}

// Refresh regenerates the selected bot's constructor URL.
func (c *Controller) Refresh(ctx context.Context) (string, error) {
	b, err := c.adminBot()
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	locale := c.cfg.Locale
	c.mu.Unlock()
	webURL, err := c.api.Refresh(ctx, b.BotID, locale)
	if err != nil {
		c.notifyError(err)
		return "", fmt.Errorf("refresh: %w", err)
	}
	return webURL, nil
}

// VerificationLink returns the deep link of the bot awaiting verification.
func (c *Controller) VerificationLink() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode != ModeAwaitingVerification || c.selected == nil {
		return "", false
	}
	return pairing.VerificationLink(*c.selected), true
}

// Unload tears the session down without waiting on the network: polling
// stops at once and the selected bot's logout is sent in the background.
// Close waits for that logout, bounded by the unload timeout.
func (c *Controller) Unload() {
	var e effects
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	var botID int64
	if c.selected != nil {
		botID = c.selected.BotID
	}
	e.stop = c.poller
	c.poller = nil
	c.selected = nil
	c.firstLink = false
	c.setModeLocked(ModeDisconnected, &e)
	c.closed = true
	timeout := c.cfg.UnloadTimeout
	c.mu.Unlock()

	c.cancel()
	c.apply(c.ctx, &e)
	if botID == 0 {
		return
	}
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := c.api.Logout(ctx, botID); err != nil {
			slog.Debug("unload logout failed", "bot_id", botID, "error", err)
		}
	}()
}

// Close stops polling, discards in-flight results, and waits for background
// work started by Unload. Safe to call more than once.
func (c *Controller) Close() {
	c.mu.Lock()
	p := c.poller
	c.poller = nil
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	if p != nil {
		p.Stop()
	}
	c.bg.Wait()
}

func (c *Controller) adminBot() (protocol.Binding, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return protocol.Binding{}, ErrClosed
	}
	if c.mode != ModeAdmin || c.selected == nil {
		return protocol.Binding{}, ErrNotAdmin
	}
	return *c.selected, nil
}

// verified is the poller's success callback for the request tagged seq.
func (c *Controller) verified(botID int64, seq uint64) {
	var e effects
	c.mu.Lock()
	if c.closed || c.seq[botID] != seq || c.selected == nil ||
		c.selected.BotID != botID || c.mode != ModeAwaitingVerification {
		c.mu.Unlock()
		slog.Debug("verification result ignored", "bot_id", botID, "reason", errStaleResponse)
		return
	}
	c.poller = nil
	c.firstLink = false
	c.setModeLocked(ModeAdmin, &e)
	c.mu.Unlock()
	c.apply(c.ctx, &e)
}

func (c *Controller) startPollerLocked(botID int64) {
	seq := c.bumpLocked(botID)
	opts := append([]pairing.Option{pairing.WithInterval(c.cfg.PollInterval)}, c.cfg.PollerOptions...)
	p := pairing.New(c.api, botID, func(id int64) { c.verified(id, seq) }, opts...)
	c.poller = p
	p.Start(c.ctx)
}

func (c *Controller) bumpLocked(botID int64) uint64 {
	c.seq[botID]++
	return c.seq[botID]
}

func (c *Controller) indexLocked(botID int64) int {
	return slices.IndexFunc(c.linked, func(b protocol.Binding) bool { return b.BotID == botID })
}

// upsertLocked adds b or replaces the entry with the same BotID in place.
// It reports whether b was new.
func (c *Controller) upsertLocked(b protocol.Binding) bool {
	if i := c.indexLocked(b.BotID); i >= 0 {
		c.linked[i] = b
		return false
	}
	c.linked = append(c.linked, b)
	return true
}

func (c *Controller) removeLocked(botID int64) {
	c.linked = slices.DeleteFunc(c.linked, func(b protocol.Binding) bool { return b.BotID == botID })
}

func (c *Controller) saveCache(ctx context.Context) {
	if c.cfg.Cache == nil {
		return
	}
	// Serialised so the snapshot written last is also the newest one.
	c.saveMu.Lock()
	defer c.saveMu.Unlock()
	c.mu.Lock()
	snap := slices.Clone(c.linked)
	c.mu.Unlock()
	if err := c.cfg.Cache.Save(context.WithoutCancel(ctx), c.cfg.Owner, snap); err != nil {
		slog.Warn("binding cache save failed", "error", err)
	}
}

func (c *Controller) notifyError(err error) {
	c.cfg.Bus.Notify(bus.LevelError, remote.UserMessage(err))
}
