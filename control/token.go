package control

import (
	"github.com/wippyai/scriptbridge/handle"
	"github.com/wippyai/scriptbridge/host"
)

// State is a token's position in the acquisition lifecycle.
type State uint8

const (
	Idle State = iota
	Acquiring
	Controlled
	Releasing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Acquiring:
		return "Acquiring"
	case Controlled:
		return "Controlled"
	case Releasing:
		return "Releasing"
	}
	return "Unknown"
}

// Token is a claim on exclusive control of one entity by one owner.
type Token struct {
	handle *handle.EntityHandle
	owner  string
	id     host.TokenID
	entity host.EntityID
	state  State
}

func (t *Token) ID() host.TokenID { return t.id }

func (t *Token) Owner() string { return t.owner }

func (t *Token) Entity() host.EntityID { return t.entity }

func (t *Token) State() State {
	if t == nil {
		return Idle
	}
	return t.state
}

// Handle returns the token's entity handle. It is released once the token
// returns to Idle.
func (t *Token) Handle() *handle.EntityHandle { return t.handle }

// Controlled reports whether commands may be issued through t.
func (t *Token) Controlled() bool {
	return t != nil && t.state == Controlled
}

// EventType enumerates token lifecycle notifications.
type EventType uint8

const (
	EventRequested EventType = iota
	EventDenied
	EventGranted
	EventCancelled
	EventFailed
	EventReleased
)

func (t EventType) String() string {
	switch t {
	case EventRequested:
		return "requested"
	case EventDenied:
		return "denied"
	case EventGranted:
		return "granted"
	case EventCancelled:
		return "cancelled"
	case EventFailed:
		return "failed"
	case EventReleased:
		return "released"
	}
	return "unknown"
}

// Event represents a token lifecycle event.
type Event struct {
	Owner  string
	Token  host.TokenID
	Entity host.EntityID
	Type   EventType
}

// Observer receives token lifecycle notifications.
type Observer interface {
	OnTokenEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnTokenEvent(e Event) { f(e) }
