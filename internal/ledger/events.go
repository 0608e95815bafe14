package ledger

import (
	"github.com/medisched/scheduling-client/internal/model"
)

// EventKind identifies a mutation the ledger should react to.
type EventKind string

const (
	EventCreated     EventKind = "created"
	EventRescheduled EventKind = "rescheduled"
	EventCompleted   EventKind = "completed"
)

// Event announces a successful mutation.
type Event struct {
	Kind    EventKind
	Booking *model.Booking
}

// Bus fans mutation events out to subscribers. Dispatch is synchronous
// on the caller's goroutine; the UI event loop provides the sequencing.
type Bus struct {
	subscribers []func(Event)
}

func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) Subscribe(fn func(Event)) {
	b.subscribers = append(b.subscribers, fn)
}

func (b *Bus) Publish(ev Event) {
	for _, fn := range b.subscribers {
		fn(ev)
	}
}
