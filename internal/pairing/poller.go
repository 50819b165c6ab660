// Package pairing drives the ownership verification of a freshly linked bot.
//
// After a bot is linked, the owner opens the bot's deep link in Telegram
// (t.me/<bot>?start=<passUuid>) and shares their contact. The service then
// flips the bot to verified. The Poller asks the service at a fixed interval
// until it observes that flip:
//  1. One check runs immediately, before the first interval elapses
//  2. A failed check counts as "not yet verified"
//  3. A tick that fires while a check is outstanding is skipped
//  4. The first positive answer is reported once and the loop exits
package pairing

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultInterval is the poll period when none is configured.
const DefaultInterval = 3 * time.Second

// Checker answers whether a bot's owner has completed verification.
type Checker interface {
	IsVerified(ctx context.Context, botID int64) (bool, error)
}

// TickerFunc creates a tick source and its stop function.
type TickerFunc func(d time.Duration) (<-chan time.Time, func())

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the poll period. Non-positive values keep the default.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithTicker replaces the tick source (tests drive ticks by hand).
func WithTicker(f TickerFunc) Option {
	return func(p *Poller) { p.newTicker = f }
}

// Poller polls one bot's verification status. It is single-use: once stopped
// or verified it cannot be restarted.
type Poller struct {
	checker    Checker
	botID      int64
	onVerified func(botID int64)
	interval   time.Duration
	newTicker  TickerFunc

	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool
	cancel    context.CancelFunc
	done      chan struct{}
	finished  chan struct{} // closed once onVerified has returned, or was skipped
	polls     atomic.Int64
}

// New creates a poller for botID. onVerified runs at most once, on the
// poller's goroutine, after Done is closed. It must not call Stop.
func New(checker Checker, botID int64, onVerified func(botID int64), opts ...Option) *Poller {
	p := &Poller{
		checker:    checker,
		botID:      botID,
		onVerified: onVerified,
		interval:   DefaultInterval,
		newTicker:  realTicker,
		done:       make(chan struct{}),
		finished:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// BotID returns the bot being polled.
func (p *Poller) BotID() int64 { return p.botID }

// Polls returns how many checks have been issued so far.
func (p *Poller) Polls() int64 { return p.polls.Load() }

// Done is closed when the poller has stopped for any reason.
func (p *Poller) Done() <-chan struct{} { return p.done }

// Start launches the poll loop. The loop also ends when ctx is cancelled.
func (p *Poller) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		ctx, p.cancel = context.WithCancel(ctx)
		p.started.Store(true)
		go p.loop(ctx)
	})
}

// Stop cancels the loop and any outstanding check, then waits for the loop
// and a callback already under way to return. A result arriving after Stop
// is discarded. Safe to call repeatedly and before Start.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		p.startOnce.Do(func() {}) // a later Start is a no-op
		if !p.started.Load() {
			close(p.done)
			close(p.finished)
			return
		}
		p.cancel()
	})
	<-p.finished
}

func (p *Poller) loop(ctx context.Context) {
	defer close(p.finished)
	results := make(chan bool, 1)
	inflight := false

	launch := func() {
		inflight = true
		p.polls.Add(1)
		go func() {
			ok, err := p.checker.IsVerified(ctx, p.botID)
			if err != nil {
				if ctx.Err() == nil {
					slog.Debug("verification check failed", "bot_id", p.botID, "error", err)
				}
				ok = false
			}
			select {
			case results <- ok:
			case <-ctx.Done():
			}
		}()
	}

	ticks, stopTicker := p.newTicker(p.interval)
	defer stopTicker()

	launch()
	for {
		select {
		case <-ctx.Done():
			close(p.done)
			return

		case <-ticks:
			if inflight {
				slog.Debug("verification check still pending, skipping tick", "bot_id", p.botID)
				continue
			}
			launch()

		case ok := <-results:
			inflight = false
			if ctx.Err() != nil {
				close(p.done)
				return
			}
			if !ok {
				continue
			}
			// Whoever wins stopOnce decides: a Stop that got there first
			// discards the result.
			won := false
			p.stopOnce.Do(func() {
				won = true
				p.cancel()
			})
			close(p.done)
			if !won {
				return
			}
			slog.Info("bot verified", "bot_id", p.botID, "polls", p.polls.Load())
			if p.onVerified != nil {
				p.onVerified(p.botID)
			}
			return
		}
	}
}

// Check performs a single verification query. Failures count as not verified.
func Check(ctx context.Context, checker Checker, botID int64) bool {
	ok, err := checker.IsVerified(ctx, botID)
	if err != nil {
		slog.Debug("one-shot verification check failed", "bot_id", botID, "error", err)
		return false
	}
	return ok
}
