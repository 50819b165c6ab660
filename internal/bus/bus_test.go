package bus

import "testing"

func TestPublishFanOut(t *testing.T) {
	b := New()
	var a, c []Event
	b.Subscribe("a", func(ev Event) { a = append(a, ev) })
	b.Subscribe("c", func(ev Event) { c = append(c, ev) })

	b.Notify(LevelError, "boom")
	b.Unsubscribe("c")
	b.Publish(Event{Name: EventModeChanged, Payload: ModeChange{From: "disconnected", To: "linking"}})

	if len(a) != 2 || len(c) != 1 {
		t.Fatalf("got %d/%d events, want 2/1", len(a), len(c))
	}
	n, ok := a[0].Payload.(Notice)
	if !ok || n.Level != LevelError || n.Message != "boom" {
		t.Errorf("unexpected notice %+v", a[0])
	}
}

func TestNilBusDrops(t *testing.T) {
	var b *Bus
	b.Notify(LevelInfo, "ignored")
}

func TestHandlerMayUnsubscribe(t *testing.T) {
	b := New()
	calls := 0
	b.Subscribe("once", func(Event) {
		calls++
		b.Unsubscribe("once")
	})
	b.Notify(LevelInfo, "1")
	b.Notify(LevelInfo, "2")
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
