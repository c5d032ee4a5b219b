package simhost

import (
	"github.com/wippyai/scriptbridge/host"
)

// Entries returns the world's host entry points.
func (w *World) Entries() host.Entries {
	return host.Entries{
		AddRef:        w.addRef,
		ReleaseRef:    w.releaseRef,
		Valid:         w.isValid,
		GrantControl:  w.grant,
		RevokeControl: w.revoke,
		Surface:       w.surface,
		Cancelled:     w.isCancelled,
		ActiveRegion:  w.activeRegion,
		Alloc:         w.alloc,
		Free:          w.free,
		Alive:         w.alive,
		Position:      w.position,
		Following:     w.following,
	}
}

func (w *World) addRef(id host.EntityID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.valid(id); !ok {
		return false
	}
	w.refs[id]++
	return true
}

func (w *World) releaseRef(id host.EntityID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.refs[id]--
	if w.refs[id] < 0 {
		panic("simhost: negative reference count")
	}
}

func (w *World) isValid(id host.EntityID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.valid(id)
	return ok
}

func (w *World) grant(id host.EntityID, tok host.TokenID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.valid(id); !ok {
		return false
	}
	if w.denials[id] > 0 {
		w.denials[id]--
		w.record(id, "deny", "")
		return false
	}
	if cur, ok := w.controller[id]; ok && cur != tok {
		return false
	}
	w.controller[id] = tok
	w.record(id, "grant", "")
	return true
}

func (w *World) revoke(id host.EntityID, tok host.TokenID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.controller[id] == tok {
		delete(w.controller, id)
	}
	w.record(id, "revoke", "")
}

func (w *World) surface(id host.EntityID) (host.Commander, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.valid(id)
	if !ok {
		return nil, false
	}
	return &surface{w: w, e: e}, true
}

func (w *World) isCancelled(th host.ThreadID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cancelled[th]
}

func (w *World) activeRegion() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.region
}

func (w *World) alloc(size int) (host.Buffer, bool) {
	if size < 0 {
		return host.Buffer{}, false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextAddr += 0x10
	w.buffers[w.nextAddr] = size
	return host.Buffer{Data: make([]byte, size), Addr: w.nextAddr}, true
}

func (w *World) free(b host.Buffer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.buffers[b.Addr]; !ok {
		panic("simhost: free of unknown buffer")
	}
	delete(w.buffers, b.Addr)
}

func (w *World) alive(id host.EntityID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.valid(id)
	return ok && !e.Dead
}

func (w *World) position(id host.EntityID) (host.Vec3, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.valid(id)
	if !ok {
		return host.Vec3{}, false
	}
	return e.Pos, true
}

func (w *World) following(id host.EntityID) (host.EntityID, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.valid(id)
	if !ok || e.Following == 0 {
		return 0, false
	}
	return e.Following, true
}
