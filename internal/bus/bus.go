// Package bus broadcasts session events and operator notices to whatever
// surface is attached (CLI printer, console, tests).
package bus

import (
	"sync"

	"github.com/nextlevelbuilder/botlink/pkg/protocol"
)

// Event names.
const (
	EventNotice        = "notice"
	EventModeChanged   = "session.mode"
	EventAdminEntered  = "session.admin.entered"
	EventAdminLeft     = "session.admin.left"
	EventRosterUpdated = "roster.updated"
)

// Level is the severity of a Notice.
type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Event is delivered to every subscriber.
type Event struct {
	Name    string
	Payload any
}

// Notice is the single human-readable message shown for one outcome.
type Notice struct {
	Level   Level
	Message string
}

// ModeChange is the payload of EventModeChanged.
type ModeChange struct {
	From string
	To   string
}

// AdminEntered is the payload of EventAdminEntered.
type AdminEntered struct {
	Bot protocol.Binding
}

// RosterUpdated is the payload of EventRosterUpdated.
type RosterUpdated struct {
	BotID int64
	Rows  int
	Total int
}

// Handler receives events. Handlers run on the publisher's goroutine and must not block.
type Handler func(Event)

// Bus fans events out to subscribers. The zero value is not usable; call New.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]Handler
}

func New() *Bus {
	return &Bus{subscribers: make(map[string]Handler)}
}

// Subscribe registers a handler under id, replacing any previous one.
func (b *Bus) Subscribe(id string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[id] = h
}

// Unsubscribe removes a handler.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers, id)
}

// Publish delivers ev to all subscribers. A nil bus drops the event.
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subscribers))
	for _, h := range b.subscribers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}

// Notify publishes a Notice.
func (b *Bus) Notify(level Level, message string) {
	b.Publish(Event{Name: EventNotice, Payload: Notice{Level: level, Message: message}})
}
