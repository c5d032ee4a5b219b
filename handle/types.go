package handle

import "github.com/wippyai/scriptbridge/host"

// Slot is a handle's position in the bookkeeping table.
// Slot 0 is reserved and always invalid.
type Slot uint32

// EventType enumerates handle lifecycle notifications.
type EventType uint8

const (
	EventWrapped EventType = iota
	EventReleased
	EventBufferAllocated
	EventBufferFreed
)

func (t EventType) String() string {
	switch t {
	case EventWrapped:
		return "wrapped"
	case EventReleased:
		return "released"
	case EventBufferAllocated:
		return "buffer_allocated"
	case EventBufferFreed:
		return "buffer_freed"
	}
	return "unknown"
}

// Event represents a handle lifecycle event.
type Event struct {
	Entity host.EntityID
	Slot   Slot
	Size   int
	Type   EventType
}

// Observer receives notifications about handle lifecycle events.
type Observer interface {
	OnHandleEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnHandleEvent(e Event) { f(e) }
