package action

import (
	"strconv"

	"github.com/wippyai/scriptbridge/errors"
	"github.com/wippyai/scriptbridge/handle"
	"github.com/wippyai/scriptbridge/host"
)

// Kind identifies a request type.
type Kind uint8

const (
	KindMoveTo Kind = iota
	KindPlayAnimation
	KindSpeak
	KindFollow
	KindStopFollowing
	KindAttack
	KindLookAt
	KindWait
)

var kindNames = [...]string{
	KindMoveTo:        "move_to",
	KindPlayAnimation: "play_animation",
	KindSpeak:         "speak",
	KindFollow:        "follow",
	KindStopFollowing: "stop_following",
	KindAttack:        "attack",
	KindLookAt:        "look_at",
	KindWait:          "wait",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Kinds lists every request kind.
func Kinds() []Kind {
	return []Kind{KindMoveTo, KindPlayAnimation, KindSpeak, KindFollow, KindStopFollowing, KindAttack, KindLookAt, KindWait}
}

// Request is one command for an entity.
type Request interface {
	Kind() Kind
	Capability() host.Capability
	bind(s host.Commander, handles *handle.Table, entity host.EntityID) (invocation, error)
}

// targeted requests name a second entity that must be present.
type targeted interface {
	target() host.EntityID
}

// invocation is a resolved command. done runs after invoke.
type invocation struct {
	invoke func()
	done   func()
}

func unsupported(entity host.EntityID, c host.Capability) error {
	return errors.Unsupported(errors.PhaseDispatch, uint64(entity), string(c))
}

type MoveTo struct {
	Pos host.Vec3
	Run bool
}

func (MoveTo) Kind() Kind                  { return KindMoveTo }
func (MoveTo) Capability() host.Capability { return host.CapMove }

func (r MoveTo) bind(s host.Commander, _ *handle.Table, entity host.EntityID) (invocation, error) {
	m, ok := host.Lookup[host.Mover](s, host.CapMove)
	if !ok {
		return invocation{}, unsupported(entity, host.CapMove)
	}
	return invocation{invoke: func() { m.MoveTo(r.Pos, r.Run) }}, nil
}

type PlayAnimation struct {
	Name string
	Loop bool
}

func (PlayAnimation) Kind() Kind                  { return KindPlayAnimation }
func (PlayAnimation) Capability() host.Capability { return host.CapAnimate }

func (r PlayAnimation) bind(s host.Commander, _ *handle.Table, entity host.EntityID) (invocation, error) {
	if r.Name == "" {
		return invocation{}, errors.InvalidInput(errors.PhaseDispatch, "empty animation name")
	}
	a, ok := host.Lookup[host.Animator](s, host.CapAnimate)
	if !ok {
		return invocation{}, unsupported(entity, host.CapAnimate)
	}
	return invocation{invoke: func() { a.PlayAnimation(r.Name, r.Loop) }}, nil
}

// Speak says Line to Target. The line is copied into a host buffer that is
// freed as soon as the host call returns.
type Speak struct {
	Line   string
	Target host.EntityID
}

func (Speak) Kind() Kind                  { return KindSpeak }
func (Speak) Capability() host.Capability { return host.CapSpeak }
func (r Speak) target() host.EntityID     { return r.Target }

func (r Speak) bind(s host.Commander, handles *handle.Table, entity host.EntityID) (invocation, error) {
	sp, ok := host.Lookup[host.Speaker](s, host.CapSpeak)
	if !ok {
		return invocation{}, unsupported(entity, host.CapSpeak)
	}
	buf, err := handles.AllocString(r.Line)
	if err != nil {
		return invocation{}, err
	}
	return invocation{
		invoke: func() { sp.Speak(r.Target, buf.Host()) },
		done:   func() { buf.Free() },
	}, nil
}

type Follow struct {
	Target   host.EntityID
	Distance float64
}

func (Follow) Kind() Kind                  { return KindFollow }
func (Follow) Capability() host.Capability { return host.CapFollow }
func (r Follow) target() host.EntityID     { return r.Target }

func (r Follow) bind(s host.Commander, _ *handle.Table, entity host.EntityID) (invocation, error) {
	f, ok := host.Lookup[host.Follower](s, host.CapFollow)
	if !ok {
		return invocation{}, unsupported(entity, host.CapFollow)
	}
	return invocation{invoke: func() { f.Follow(r.Target, r.Distance) }}, nil
}

type StopFollowing struct{}

func (StopFollowing) Kind() Kind                  { return KindStopFollowing }
func (StopFollowing) Capability() host.Capability { return host.CapFollow }

func (StopFollowing) bind(s host.Commander, _ *handle.Table, entity host.EntityID) (invocation, error) {
	f, ok := host.Lookup[host.Follower](s, host.CapFollow)
	if !ok {
		return invocation{}, unsupported(entity, host.CapFollow)
	}
	return invocation{invoke: f.StopFollowing}, nil
}

type Attack struct {
	Target host.EntityID
}

func (Attack) Kind() Kind                  { return KindAttack }
func (Attack) Capability() host.Capability { return host.CapCombat }
func (r Attack) target() host.EntityID     { return r.Target }

func (r Attack) bind(s host.Commander, _ *handle.Table, entity host.EntityID) (invocation, error) {
	c, ok := host.Lookup[host.Combatant](s, host.CapCombat)
	if !ok {
		return invocation{}, unsupported(entity, host.CapCombat)
	}
	return invocation{invoke: func() { c.Attack(r.Target) }}, nil
}

type LookAt struct {
	Target host.EntityID
}

func (LookAt) Kind() Kind                  { return KindLookAt }
func (LookAt) Capability() host.Capability { return host.CapLook }
func (r LookAt) target() host.EntityID     { return r.Target }

func (r LookAt) bind(s host.Commander, _ *handle.Table, entity host.EntityID) (invocation, error) {
	l, ok := host.Lookup[host.Looker](s, host.CapLook)
	if !ok {
		return invocation{}, unsupported(entity, host.CapLook)
	}
	return invocation{invoke: func() { l.LookAt(r.Target) }}, nil
}

// Wait keeps the entity busy for Frames frames.
type Wait struct {
	Frames int
}

func (Wait) Kind() Kind                  { return KindWait }
func (Wait) Capability() host.Capability { return host.CapWait }

func (r Wait) bind(s host.Commander, _ *handle.Table, entity host.EntityID) (invocation, error) {
	if r.Frames < 0 {
		return invocation{}, errors.InvalidInput(errors.PhaseDispatch, "negative wait")
	}
	w, ok := host.Lookup[host.Waiter](s, host.CapWait)
	if !ok {
		return invocation{}, unsupported(entity, host.CapWait)
	}
	return invocation{invoke: func() { w.Wait(r.Frames) }}, nil
}
