package handle

import (
	"sync/atomic"

	"github.com/wippyai/scriptbridge/host"
)

// EntityHandle holds one host reference to an entity.
type EntityHandle struct {
	table    *Table
	id       host.EntityID
	slot     Slot
	released atomic.Bool
}

// ID returns the wrapped entity id.
func (h *EntityHandle) ID() host.EntityID {
	if h == nil {
		return 0
	}
	return h.id
}

// Slot returns the handle's bookkeeping slot.
func (h *EntityHandle) Slot() Slot {
	if h == nil {
		return 0
	}
	return h.slot
}

// Released reports whether the reference has been given back.
func (h *EntityHandle) Released() bool {
	return h == nil || h.released.Load()
}

// Present reports whether the handle is held and its entity is still valid.
func (h *EntityHandle) Present() bool {
	if h.Released() {
		return false
	}
	return h.table.host.Valid(h.id)
}

// Release gives the reference back to the host. Only the first call has any
// effect; it returns true for that call.
func (h *EntityHandle) Release() bool {
	if h == nil || !h.released.CompareAndSwap(false, true) {
		return false
	}
	h.table.release(h)
	return true
}
