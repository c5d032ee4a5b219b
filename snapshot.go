package scriptbridge

import (
	"github.com/wippyai/scriptbridge/control"
	"github.com/wippyai/scriptbridge/globals"
	"github.com/wippyai/scriptbridge/handle"
	"github.com/wippyai/scriptbridge/host"
	"github.com/wippyai/scriptbridge/script"
)

// TokenInfo describes one live control token.
type TokenInfo struct {
	Owner  string
	State  control.State
	ID     host.TokenID
	Entity host.EntityID
}

// HandleInfo describes one live entity handle.
type HandleInfo struct {
	Slot    handle.Slot
	Entity  host.EntityID
	Present bool
}

// Snapshot is a diagnostic view of the whole bridge.
type Snapshot struct {
	Globals      map[string]globals.Value
	Environments []script.Info
	Tokens       []TokenInfo
	Handles      []HandleInfo
	Missing      []string
	Frame        uint64
}

// Snapshot collects the current bridge state.
func (b *Bridge) Snapshot() Snapshot {
	s := Snapshot{
		Frame:   b.clock.Frame(),
		Globals: b.globals.Snapshot(),
		Missing: b.host.Missing(),
	}
	for _, o := range b.envs.Owners() {
		if e, ok := b.envs.Lookup(o); ok {
			s.Environments = append(s.Environments, e.Info())
		}
	}
	for _, t := range b.ctrl.Tokens("") {
		s.Tokens = append(s.Tokens, TokenInfo{
			ID:     t.ID(),
			Owner:  t.Owner(),
			Entity: t.Entity(),
			State:  t.State(),
		})
	}
	b.handles.Each(func(h *handle.EntityHandle) bool {
		s.Handles = append(s.Handles, HandleInfo{
			Slot:    h.Slot(),
			Entity:  h.ID(),
			Present: h.Present(),
		})
		return true
	})
	return s
}
