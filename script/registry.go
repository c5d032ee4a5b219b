package script

import (
	"context"
	"io/fs"
	"os"
	"path"
	"sort"

	"go.uber.org/zap"

	"github.com/wippyai/scriptbridge/action"
	"github.com/wippyai/scriptbridge/control"
	"github.com/wippyai/scriptbridge/errors"
	"github.com/wippyai/scriptbridge/globals"
	"github.com/wippyai/scriptbridge/host"
	"github.com/wippyai/scriptbridge/slots"
	"github.com/wippyai/scriptbridge/task"
)

// Services are the shared bridge services environments call into.
type Services struct {
	Host       *host.Table
	Controller *control.Controller
	Dispatcher *action.Dispatcher
	Globals    *globals.Store
	Clock      *task.Clock
}

// EventType enumerates environment notifications.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDestroyed
	EventFault
)

func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "created"
	case EventDestroyed:
		return "destroyed"
	case EventFault:
		return "fault"
	}
	return "unknown"
}

// Event represents an environment notification.
type Event struct {
	Err   error
	Entry string
	Owner Owner
	Type  EventType
}

// Observer receives environment notifications.
type Observer interface {
	OnEnvironmentEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnEnvironmentEvent(e Event) { f(e) }

// Option configures a Registry.
type Option func(*Registry)

// WithScriptDir loads scripts from dir on disk.
func WithScriptDir(dir string) Option {
	return func(r *Registry) { r.fsys = os.DirFS(dir) }
}

// WithFS loads scripts from fsys.
func WithFS(fsys fs.FS) Option {
	return func(r *Registry) { r.fsys = fsys }
}

// WithSlotCapacity sets the per-environment slot capacity.
func WithSlotCapacity(n int) Option {
	return func(r *Registry) { r.slotCapacity = n }
}

// WithSlotObserver attaches o to every environment's slot registry.
func WithSlotObserver(o slots.Observer) Option {
	return func(r *Registry) { r.slotObservers = append(r.slotObservers, o) }
}

// WithObserver adds an environment observer.
func WithObserver(o Observer) Option {
	return func(r *Registry) { r.observers = append(r.observers, o) }
}

// Registry maps owners to their environments.
type Registry struct {
	svc           Services
	fsys          fs.FS
	envs          map[Owner]*Environment
	slotObservers []slots.Observer
	observers     []Observer
	slotCapacity  int
	threadSeq     host.ThreadID
	closed        bool
}

// NewRegistry creates an empty registry. Scripts are read from the working
// directory unless WithScriptDir or WithFS says otherwise.
func NewRegistry(svc Services, opts ...Option) *Registry {
	if svc.Clock == nil {
		svc.Clock = &task.Clock{}
	}
	if svc.Globals == nil {
		svc.Globals = globals.New()
	}
	r := &Registry{
		svc:          svc,
		fsys:         os.DirFS("."),
		envs:         make(map[Owner]*Environment),
		slotCapacity: slots.DefaultCapacity,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Services returns the shared services.
func (r *Registry) Services() Services { return r.svc }

// Create loads script for owner. An existing environment for owner is
// destroyed once the new script has loaded; if loading fails it keeps
// running.
func (r *Registry) Create(owner Owner, script string) (*Environment, error) {
	if r.closed {
		return nil, errors.Closed(errors.PhaseEnvironment, "environment registry")
	}
	if owner.Kind != OwnerEntity && owner.Kind != OwnerQuest {
		return nil, errors.InvalidInput(errors.PhaseEnvironment, "owner kind must be entity or quest")
	}
	name := scriptFile(script)
	if !fs.ValidPath(name) {
		return nil, errors.New(errors.PhaseEnvironment, errors.KindInvalidInput).
			Owner(owner.String()).
			Detail("invalid script name %q", script).
			Build()
	}
	src, err := fs.ReadFile(r.fsys, name)
	if err != nil {
		return nil, errors.New(errors.PhaseEnvironment, errors.KindLoad).
			Owner(owner.String()).
			Detail("read %s", name).
			Cause(err).
			Build()
	}

	e, err := newEnvironment(r, owner, script, name, src)
	if err != nil {
		return nil, err
	}
	if _, ok := r.envs[owner]; ok {
		r.Destroy(owner)
	}
	r.envs[owner] = e
	r.notify(Event{Type: EventCreated, Owner: owner})

	Logger().Info("environment created",
		zap.Stringer("owner", owner),
		zap.String("script", name),
		zap.Stringer("id", e.id))

	e.start()
	return e, nil
}

// Destroy cancels owner's threads, clears its slots, releases its tokens and
// closes its Lua state.
func (r *Registry) Destroy(owner Owner) error {
	e, ok := r.envs[owner]
	if !ok {
		return errors.NotFound(errors.PhaseEnvironment, "environment", owner.String())
	}
	delete(r.envs, owner)
	e.close()
	r.notify(Event{Type: EventDestroyed, Owner: owner})
	Logger().Info("environment destroyed", zap.Stringer("owner", owner))
	return nil
}

// Lookup returns owner's environment.
func (r *Registry) Lookup(owner Owner) (*Environment, bool) {
	e, ok := r.envs[owner]
	return e, ok
}

// Reload recreates owner's environment from the same script. On a load
// error the current environment is left in place.
func (r *Registry) Reload(owner Owner) (*Environment, error) {
	e, ok := r.envs[owner]
	if !ok {
		return nil, errors.NotFound(errors.PhaseEnvironment, "environment", owner.String())
	}
	return r.Create(owner, e.script)
}

// Persist hands ctx to owner's OnPersist(self, ctx). A script fault is
// logged and not returned.
func (r *Registry) Persist(owner Owner, ctx any) error {
	e, ok := r.envs[owner]
	if !ok {
		return errors.NotFound(errors.PhaseEnvironment, "environment", owner.String())
	}
	if err := e.persist(ctx); err != nil {
		r.fault(owner, "OnPersist", err)
	}
	return nil
}

// PersistAll calls Persist for every environment in owner order with the
// context ctxFor returns.
func (r *Registry) PersistAll(ctxFor func(Owner) any) {
	for _, o := range r.Owners() {
		r.Persist(o, ctxFor(o))
	}
}

// Tick advances the frame clock and steps every environment in owner order.
func (r *Registry) Tick(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.svc.Clock.Advance()
	for _, o := range r.Owners() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e, ok := r.envs[o]; ok {
			e.step()
		}
	}
	return nil
}

// Owners returns every owner in deterministic order.
func (r *Registry) Owners() []Owner {
	out := make([]Owner, 0, len(r.envs))
	for o := range r.envs {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// Len returns the number of live environments.
func (r *Registry) Len() int { return len(r.envs) }

// DestroyAll destroys every environment and keeps the registry usable.
func (r *Registry) DestroyAll() {
	for _, o := range r.Owners() {
		r.Destroy(o)
	}
}

// Close destroys every environment and refuses further creates.
func (r *Registry) Close() {
	r.DestroyAll()
	r.closed = true
}

func (r *Registry) nextThread() host.ThreadID {
	r.threadSeq++
	return r.threadSeq
}

func (r *Registry) fault(owner Owner, entry string, err error) {
	Logger().Warn("script fault",
		zap.Stringer("owner", owner),
		zap.String("entry", entry),
		zap.Error(err))
	r.notify(Event{Type: EventFault, Owner: owner, Entry: entry, Err: err})
}

func (r *Registry) notify(e Event) {
	for _, o := range r.observers {
		o.OnEnvironmentEvent(e)
	}
}

func scriptFile(name string) string {
	if path.Ext(name) == "" {
		return name + ".lua"
	}
	return name
}
