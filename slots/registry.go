package slots

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/scriptbridge/errors"
	"github.com/wippyai/scriptbridge/host"
	"github.com/wippyai/scriptbridge/task"
)

// DefaultCapacity is the slot count used when none is configured.
const DefaultCapacity = 20

// Slot is one registered continuation. It is never mutated after Register.
type Slot struct {
	Args   []any
	Name   string
	Region string
	Index  int
	Thread host.ThreadID
	Active bool
}

// Invoker runs the continuation a slot names.
type Invoker interface {
	InvokeContinuation(s Slot) error
}

// InvokerFunc adapts a function to Invoker.
type InvokerFunc func(Slot) error

func (f InvokerFunc) InvokeContinuation(s Slot) error { return f(s) }

// EventType enumerates slot notifications.
type EventType uint8

const (
	EventRegistered EventType = iota
	EventInvoked
	EventSkipped
	EventFault
	EventCleared
)

func (t EventType) String() string {
	switch t {
	case EventRegistered:
		return "registered"
	case EventInvoked:
		return "invoked"
	case EventSkipped:
		return "skipped"
	case EventFault:
		return "fault"
	case EventCleared:
		return "cleared"
	}
	return "unknown"
}

// Event represents a slot notification.
type Event struct {
	Err   error
	Name  string
	Index int
	Type  EventType
}

// Observer receives slot notifications.
type Observer interface {
	OnSlotEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnSlotEvent(e Event) { f(e) }

// Option configures a Registry.
type Option func(*Registry)

// WithHost lets trampolines consult the host's per-thread cancellation and
// active region.
func WithHost(h *host.Table) Option {
	return func(r *Registry) { r.host = h }
}

// WithSignal sets the registry-wide cancellation signal.
func WithSignal(sig task.Signal) Option {
	return func(r *Registry) { r.sig = sig }
}

// WithThreadIDs sets the allocator for each slot's logical thread id.
func WithThreadIDs(next func() host.ThreadID) Option {
	return func(r *Registry) { r.nextThread = next }
}

// WithOwner tags log lines with the owning environment.
func WithOwner(owner string) Option {
	return func(r *Registry) { r.owner = owner }
}

// WithObserver adds an observer.
func WithObserver(o Observer) Option {
	return func(r *Registry) { r.observers = append(r.observers, o) }
}

// Registry holds up to Cap slots and one trampoline per slot index.
type Registry struct {
	invoker     Invoker
	host        *host.Table
	sig         task.Signal
	nextThread  func() host.ThreadID
	owner       string
	slots       []Slot
	trampolines []func()
	observers   []Observer
	n           int
	closed      bool
}

// New creates a registry with capacity slots. A capacity below 1 uses
// DefaultCapacity.
func New(capacity int, invoker Invoker, opts ...Option) *Registry {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	r := &Registry{
		invoker:     invoker,
		host:        host.NewTable(host.Entries{}),
		sig:         task.Never,
		slots:       make([]Slot, capacity),
		trampolines: make([]func(), capacity),
	}
	for _, opt := range opts {
		opt(r)
	}
	for i := range r.trampolines {
		i := i
		r.trampolines[i] = func() { r.invoke(i) }
	}
	return r
}

// Register fills the next free slot and returns its index.
func (r *Registry) Register(name string, args []any, region string) (int, error) {
	if r.closed {
		return -1, errors.Closed(errors.PhaseSchedule, "slot registry")
	}
	if name == "" {
		return -1, errors.InvalidInput(errors.PhaseSchedule, "empty continuation name")
	}
	if r.n >= len(r.slots) {
		return -1, errors.New(errors.PhaseSchedule, errors.KindCapacityExhausted).
			Owner(r.owner).
			Detail("all %d slots in use, cannot register %q", len(r.slots), name).
			Build()
	}

	s := Slot{
		Index:  r.n,
		Name:   name,
		Args:   append([]any(nil), args...),
		Region: region,
		Active: true,
	}
	if r.nextThread != nil {
		s.Thread = r.nextThread()
	}
	r.slots[r.n] = s
	r.n++

	Logger().Debug("slot registered",
		zap.String("owner", r.owner),
		zap.Int("index", s.Index),
		zap.String("name", name),
		zap.String("region", region))
	r.notify(Event{Type: EventRegistered, Index: s.Index, Name: name})
	return s.Index, nil
}

// Trampoline returns the entry point for slot i. It is nil when i is out of
// range.
func (r *Registry) Trampoline(i int) func() {
	if i < 0 || i >= len(r.trampolines) {
		return nil
	}
	return r.trampolines[i]
}

// RunFrame invokes every registered slot's trampoline in index order.
func (r *Registry) RunFrame() {
	for i := 0; i < r.n; i++ {
		r.trampolines[i]()
	}
}

// Slot returns a copy of slot i.
func (r *Registry) Slot(i int) (Slot, bool) {
	if i < 0 || i >= r.n {
		return Slot{}, false
	}
	return r.slots[i], true
}

// Slots returns copies of the registered slots in index order.
func (r *Registry) Slots() []Slot {
	return append([]Slot(nil), r.slots[:r.n]...)
}

// Len returns the number of registered slots.
func (r *Registry) Len() int { return r.n }

// Cap returns the registry capacity.
func (r *Registry) Cap() int { return len(r.slots) }

// Clear discards every slot. Trampolines stay valid and do nothing until
// their index is registered again.
func (r *Registry) Clear() {
	if r.n == 0 {
		return
	}
	for i := range r.slots {
		r.slots[i] = Slot{}
	}
	r.n = 0
	r.notify(Event{Type: EventCleared, Index: -1})
}

// Close clears the registry and refuses further registrations.
func (r *Registry) Close() {
	r.Clear()
	r.closed = true
}

func (r *Registry) invoke(i int) {
	if r.sig.Cancelled() || i >= r.n {
		return
	}
	s := r.slots[i]
	if !s.Active {
		return
	}
	if r.host.Cancelled(s.Thread) {
		return
	}
	if s.Region != "" {
		if region, ok := r.host.ActiveRegion(); ok && region != s.Region {
			r.notify(Event{Type: EventSkipped, Index: i, Name: s.Name})
			return
		}
	}

	if err := r.call(s); err != nil {
		Logger().Warn("continuation failed",
			zap.String("owner", r.owner),
			zap.Int("index", i),
			zap.String("name", s.Name),
			zap.Error(err))
		r.notify(Event{Type: EventFault, Index: i, Name: s.Name, Err: err})
		return
	}
	r.notify(Event{Type: EventInvoked, Index: i, Name: s.Name})
}

func (r *Registry) call(s Slot) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.ScriptFault(errors.PhaseSchedule, r.owner, s.Name, fmt.Errorf("panic: %v", p))
		}
	}()
	return r.invoker.InvokeContinuation(s)
}

func (r *Registry) notify(e Event) {
	for _, o := range r.observers {
		o.OnSlotEvent(e)
	}
}
