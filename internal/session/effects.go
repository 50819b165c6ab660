package session

import (
	"context"

	"github.com/nextlevelbuilder/botlink/internal/bus"
	"github.com/nextlevelbuilder/botlink/internal/pairing"
	"github.com/nextlevelbuilder/botlink/pkg/protocol"
)

// effects collects the work a transition produces while the mutex is held,
// so it can run after the mutex is released.
type effects struct {
	stop   *pairing.Poller
	roster *int64
	events []bus.Event
	save   bool
}

func (e *effects) resetRoster(botID int64) { e.roster = &botID }

// setModeLocked records a mode transition and the admin hand-off events it implies.
func (c *Controller) setModeLocked(m Mode, e *effects) {
	from := c.mode
	if from == m {
		return
	}
	c.mode = m
	e.events = append(e.events, bus.Event{
		Name:    bus.EventModeChanged,
		Payload: bus.ModeChange{From: from.String(), To: m.String()},
	})
	if from == ModeAdmin {
		e.events = append(e.events, bus.Event{Name: bus.EventAdminLeft})
		e.resetRoster(0)
	}
	if m == ModeAdmin && c.selected != nil {
		e.events = append(e.events, bus.Event{
			Name:    bus.EventAdminEntered,
			Payload: bus.AdminEntered{Bot: *c.selected},
		})
		e.resetRoster(c.selected.BotID)
	}
}

// switchLocked makes b the selection in mode m as one transition. Moving
// Admin from one bot to another hands the roster over without a mode change.
func (c *Controller) switchLocked(b protocol.Binding, m Mode, e *effects) {
	if m == ModeAdmin && c.mode == ModeAdmin && c.selected != nil && c.selected.BotID != b.BotID {
		c.selected = &b
		e.events = append(e.events,
			bus.Event{Name: bus.EventAdminLeft},
			bus.Event{Name: bus.EventAdminEntered, Payload: bus.AdminEntered{Bot: b}},
		)
		e.resetRoster(b.BotID)
		return
	}
	c.selected = &b
	c.setModeLocked(m, e)
}

func (c *Controller) apply(ctx context.Context, e *effects) {
	if e.stop != nil {
		e.stop.Stop()
	}
	if e.roster != nil && c.cfg.Roster != nil {
		c.cfg.Roster.Reset(*e.roster)
	}
	for _, ev := range e.events {
		c.cfg.Bus.Publish(ev)
	}
	if e.save {
		c.saveCache(ctx)
	}
}
