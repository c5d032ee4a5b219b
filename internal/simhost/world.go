// Package simhost is an in-memory host used by tests and the simulator CLI.
//
// A World tracks entities, their reference counts, which token controls each
// one and a frame-stepped action per entity. Every command a surface receives
// is appended to an ordered call log.
package simhost

import (
	"fmt"
	"sort"
	"sync"

	"github.com/wippyai/scriptbridge/host"
)

// Call is one command observed by the world.
type Call struct {
	Op     string
	Arg    string
	Entity host.EntityID
	Frame  uint64
}

func (c Call) String() string {
	if c.Arg == "" {
		return fmt.Sprintf("%d:%s", c.Entity, c.Op)
	}
	return fmt.Sprintf("%d:%s(%s)", c.Entity, c.Op, c.Arg)
}

// Entity is a simulated host object.
type Entity struct {
	Caps         map[host.Capability]bool
	action       *action
	Kind         string
	Pos          host.Vec3
	ID           host.EntityID
	Following    host.EntityID
	ActionFrames int
	Dead         bool
	despawned    bool
}

// complete runs with the world lock held.
type action struct {
	complete  func()
	name      string
	remaining int
}

// World is a simulated host.
type World struct {
	entities   map[host.EntityID]*Entity
	refs       map[host.EntityID]int
	controller map[host.EntityID]host.TokenID
	denials    map[host.EntityID]int
	cancelled  map[host.ThreadID]bool
	buffers    map[uint64]int
	region     string
	calls      []Call
	frame      uint64
	nextAddr   uint64
	mu         sync.Mutex
}

// New creates an empty world.
func New() *World {
	return &World{
		entities:   make(map[host.EntityID]*Entity),
		refs:       make(map[host.EntityID]int),
		controller: make(map[host.EntityID]host.TokenID),
		denials:    make(map[host.EntityID]int),
		cancelled:  make(map[host.ThreadID]bool),
		buffers:    make(map[uint64]int),
	}
}

// Spawn adds an entity with the given capabilities. Actions take one frame
// unless SetActionFrames says otherwise.
func (w *World) Spawn(id host.EntityID, kind string, caps ...host.Capability) *Entity {
	w.mu.Lock()
	defer w.mu.Unlock()
	e := &Entity{
		ID:           id,
		Kind:         kind,
		Caps:         make(map[host.Capability]bool),
		ActionFrames: 1,
	}
	for _, c := range caps {
		e.Caps[c] = true
	}
	w.entities[id] = e
	return e
}

// Despawn makes the entity invalid. Outstanding references stay counted.
func (w *World) Despawn(id host.EntityID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if e, ok := w.entities[id]; ok {
		e.despawned = true
		e.action = nil
	}
	delete(w.controller, id)
}

// Kill marks the entity dead but keeps it valid.
func (w *World) Kill(id host.EntityID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if e, ok := w.entities[id]; ok {
		e.Dead = true
	}
}

// SetActionFrames sets how many frames each action of id runs.
func (w *World) SetActionFrames(id host.EntityID, n int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if e, ok := w.entities[id]; ok {
		e.ActionFrames = n
	}
}

// SetCapability toggles one capability at runtime.
func (w *World) SetCapability(id host.EntityID, c host.Capability, on bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if e, ok := w.entities[id]; ok {
		e.Caps[c] = on
	}
}

// DenyGrants makes the next n grant requests for id fail.
func (w *World) DenyGrants(id host.EntityID, n int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.denials[id] = n
}

// Cancel marks a logical thread as being torn down.
func (w *World) Cancel(th host.ThreadID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cancelled[th] = true
}

// SetRegion sets the region the host is simulating.
func (w *World) SetRegion(r string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.region = r
}

// Step advances one frame, ticking down every running action.
func (w *World) Step() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.frame++
	for _, id := range w.sortedIDs() {
		e := w.entities[id]
		if e.action == nil {
			continue
		}
		e.action.remaining--
		if e.action.remaining <= 0 {
			if e.action.complete != nil {
				e.action.complete()
			}
			e.action = nil
		}
	}
	return w.frame
}

// Frame returns the current frame number.
func (w *World) Frame() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.frame
}

// Entity returns a copy of the entity's state.
func (w *World) Entity(id host.EntityID) (Entity, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.entities[id]
	if !ok {
		return Entity{}, false
	}
	return *e, true
}

// IDs returns the ids of every valid entity in ascending order.
func (w *World) IDs() []host.EntityID {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []host.EntityID
	for _, id := range w.sortedIDs() {
		if !w.entities[id].despawned {
			out = append(out, id)
		}
	}
	return out
}

// Refs returns the host reference count for id.
func (w *World) Refs(id host.EntityID) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.refs[id]
}

// Controller returns the token currently granted control of id.
func (w *World) Controller(id host.EntityID) host.TokenID {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.controller[id]
}

// Busy reports whether id has an action running and names it.
func (w *World) Busy(id host.EntityID) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.entities[id]
	if !ok || e.action == nil {
		return "", false
	}
	return e.action.name, true
}

// Buffers returns the number of host buffers not yet freed.
func (w *World) Buffers() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.buffers)
}

// Calls returns a copy of the call log.
func (w *World) Calls() []Call {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Call(nil), w.calls...)
}

// CallsFor returns the ops recorded for one entity.
func (w *World) CallsFor(id host.EntityID) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	var ops []string
	for _, c := range w.calls {
		if c.Entity == id {
			ops = append(ops, c.Op)
		}
	}
	return ops
}

// ResetCalls clears the call log.
func (w *World) ResetCalls() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = nil
}

// Table returns a host table bound to this world.
func (w *World) Table() *host.Table {
	return host.NewTable(w.Entries())
}

func (w *World) sortedIDs() []host.EntityID {
	ids := make([]host.EntityID, 0, len(w.entities))
	for id := range w.entities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (w *World) record(id host.EntityID, op, arg string) {
	w.calls = append(w.calls, Call{Entity: id, Op: op, Arg: arg, Frame: w.frame})
}

func (w *World) valid(id host.EntityID) (*Entity, bool) {
	e, ok := w.entities[id]
	if !ok || e.despawned {
		return nil, false
	}
	return e, true
}
