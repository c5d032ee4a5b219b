package host

import "fmt"

// EntityID identifies a host-managed entity. Zero is never a valid entity.
type EntityID uint64

// ThreadID identifies one logical script thread for cancellation queries.
type ThreadID uint64

// TokenID identifies a control token in grant/revoke calls.
type TokenID uint64

// Vec3 is a world position.
type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) String() string {
	return fmt.Sprintf("(%.2f, %.2f, %.2f)", v.X, v.Y, v.Z)
}

// Buffer is a host-owned allocation returned by Entries.Alloc.
// Addr is the host's own address for the block; Data aliases its contents.
type Buffer struct {
	Data []byte
	Addr uint64
}

// Capability names one optional command interface.
type Capability string

const (
	CapMove    Capability = "movable"
	CapAnimate Capability = "animator"
	CapSpeak   Capability = "speaker"
	CapFollow  Capability = "follower"
	CapCombat  Capability = "combatant"
	CapLook    Capability = "looker"
	CapWait    Capability = "waiter"
)

// Capabilities lists every known capability in a stable order.
func Capabilities() []Capability {
	return []Capability{CapMove, CapAnimate, CapSpeak, CapFollow, CapCombat, CapLook, CapWait}
}

// Commander is implemented by every command surface.
type Commander interface {
	// ClearQueuedAction drops whatever action the entity is currently running.
	ClearQueuedAction()

	// ActionInProgress reports whether an action is still running.
	ActionInProgress() bool
}

type Mover interface {
	MoveTo(pos Vec3, run bool)
}

type Animator interface {
	PlayAnimation(name string, loop bool)
}

// Speaker says a line to a listener. The line lives in a host buffer that
// is only valid for the duration of the call.
type Speaker interface {
	Speak(listener EntityID, line Buffer)
}

type Follower interface {
	Follow(target EntityID, distance float64)
	StopFollowing()
}

type Combatant interface {
	Attack(target EntityID)
}

type Looker interface {
	LookAt(target EntityID)
}

type Waiter interface {
	Wait(frames int)
}

// Provider is implemented by surfaces whose capabilities vary with the
// entity's current state.
type Provider interface {
	Capability(c Capability) (any, bool)
}

// Lookup resolves capability c on a command surface.
func Lookup[T any](s Commander, c Capability) (T, bool) {
	var zero T
	if s == nil {
		return zero, false
	}
	if p, ok := s.(Provider); ok {
		v, ok := p.Capability(c)
		if !ok {
			return zero, false
		}
		t, ok := v.(T)
		return t, ok
	}
	t, ok := s.(T)
	return t, ok
}

// Supports reports whether the surface exposes capability c.
func Supports(s Commander, c Capability) bool {
	switch c {
	case CapMove:
		_, ok := Lookup[Mover](s, c)
		return ok
	case CapAnimate:
		_, ok := Lookup[Animator](s, c)
		return ok
	case CapSpeak:
		_, ok := Lookup[Speaker](s, c)
		return ok
	case CapFollow:
		_, ok := Lookup[Follower](s, c)
		return ok
	case CapCombat:
		_, ok := Lookup[Combatant](s, c)
		return ok
	case CapLook:
		_, ok := Lookup[Looker](s, c)
		return ok
	case CapWait:
		_, ok := Lookup[Waiter](s, c)
		return ok
	}
	return false
}
