package handle

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/scriptbridge/errors"
	"github.com/wippyai/scriptbridge/host"
)

// Table tracks every live EntityHandle and owns the host reference each one
// holds.
type Table struct {
	host      *host.Table
	entries   []*EntityHandle
	freeList  []Slot
	observers []Observer
	mu        sync.RWMutex
	obsMu     sync.RWMutex
	closed    bool
}

// NewTable creates a handle table backed by the host entry table.
func NewTable(h *host.Table) *Table {
	return &Table{
		host:     h,
		entries:  make([]*EntityHandle, 0, 64),
		freeList: make([]Slot, 0, 16),
	}
}

// Wrap takes a host reference on id and returns its handle.
func (t *Table) Wrap(id host.EntityID) (*EntityHandle, error) {
	if id == 0 {
		return nil, errors.EntityAbsent(errors.PhaseHandle, 0)
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, errors.Closed(errors.PhaseHandle, "handle table")
	}
	if err := t.host.AddRef(id); err != nil {
		t.mu.Unlock()
		return nil, err
	}

	h := &EntityHandle{table: t, id: id}
	if len(t.freeList) > 0 {
		h.slot = t.freeList[len(t.freeList)-1]
		t.freeList = t.freeList[:len(t.freeList)-1]
		t.entries[h.slot-1] = h
	} else {
		t.entries = append(t.entries, h)
		h.slot = Slot(len(t.entries))
	}
	t.mu.Unlock()

	t.notify(Event{Type: EventWrapped, Entity: id, Slot: h.slot})
	return h, nil
}

// Get returns the live handle in slot s.
func (t *Table) Get(s Slot) (*EntityHandle, bool) {
	if s == 0 {
		return nil, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	idx := int(s) - 1
	if idx >= len(t.entries) || t.entries[idx] == nil {
		return nil, false
	}
	return t.entries[idx], true
}

// release is called exactly once per handle by EntityHandle.Release.
func (t *Table) release(h *EntityHandle) {
	t.mu.Lock()
	idx := int(h.slot) - 1
	if idx >= 0 && idx < len(t.entries) && t.entries[idx] == h {
		t.entries[idx] = nil
		t.freeList = append(t.freeList, h.slot)
	}
	t.mu.Unlock()

	if err := t.host.ReleaseRef(h.id); err != nil {
		Logger().Warn("release entity reference",
			zap.Uint64("entity", uint64(h.id)),
			zap.Error(err))
	}
	t.notify(Event{Type: EventReleased, Entity: h.id, Slot: h.slot})
}

// Len returns the number of live handles.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, h := range t.entries {
		if h != nil {
			n++
		}
	}
	return n
}

// Each iterates over live handles in slot order.
func (t *Table) Each(fn func(*EntityHandle) bool) {
	for _, h := range t.snapshot() {
		if !fn(h) {
			return
		}
	}
}

// Reset releases every live handle and keeps the table usable.
func (t *Table) Reset() int {
	n := 0
	for _, h := range t.snapshot() {
		if h.Release() {
			n++
		}
	}
	return n
}

// Close releases every live handle and refuses further wraps.
func (t *Table) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	t.Reset()
	return nil
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer.
func (t *Table) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

// Collect handles first so Release never runs under the table lock.
func (t *Table) snapshot() []*EntityHandle {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*EntityHandle, 0, len(t.entries))
	for _, h := range t.entries {
		if h != nil {
			out = append(out, h)
		}
	}
	return out
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnHandleEvent(e)
	}
}
