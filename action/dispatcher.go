package action

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/wippyai/scriptbridge/control"
	"github.com/wippyai/scriptbridge/errors"
	"github.com/wippyai/scriptbridge/handle"
	"github.com/wippyai/scriptbridge/host"
)

// DefaultDiagnosticInterval is the minimum gap between two identical
// dispatch diagnostics.
const DefaultDiagnosticInterval = 5 * time.Second

// Event reports the outcome of one Issue call. Err is nil when the command
// reached the host.
type Event struct {
	Err    error
	Owner  string
	Entity host.EntityID
	Kind   Kind
}

// Observer receives dispatch outcomes.
type Observer interface {
	OnDispatch(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnDispatch(e Event) { f(e) }

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithDiagnosticInterval sets the rate limit for repeated diagnostics.
func WithDiagnosticInterval(d time.Duration) Option {
	return func(disp *Dispatcher) {
		disp.interval = d
	}
}

// Dispatcher issues requests through controlled tokens.
type Dispatcher struct {
	host      *host.Table
	handles   *handle.Table
	ctrl      *control.Controller
	limits    map[string]*rate.Sometimes
	observers []Observer
	interval  time.Duration
	mu        sync.Mutex
}

// New creates a dispatcher.
func New(h *host.Table, handles *handle.Table, ctrl *control.Controller, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		host:     h,
		handles:  handles,
		ctrl:     ctrl,
		limits:   make(map[string]*rate.Sometimes),
		interval: DefaultDiagnosticInterval,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Controller returns the controller scoped calls acquire through.
func (d *Dispatcher) Controller() *control.Controller {
	return d.ctrl
}

// Subscribe adds a dispatch observer.
func (d *Dispatcher) Subscribe(o Observer) {
	d.observers = append(d.observers, o)
}

// Issue sends req to the entity controlled by tok. The entity's queued
// action is always cleared before the new command is sent. Any returned
// error means no command was sent.
func (d *Dispatcher) Issue(tok *control.Token, req Request) error {
	err := d.issue(tok, req)
	e := Event{Kind: req.Kind(), Err: err}
	if tok != nil {
		e.Owner = tok.Owner()
		e.Entity = tok.Entity()
	}
	if err != nil {
		d.diagnose(e)
	}
	for _, o := range d.observers {
		o.OnDispatch(e)
	}
	return err
}

func (d *Dispatcher) issue(tok *control.Token, req Request) error {
	if !tok.Controlled() {
		var entity uint64
		if tok != nil {
			entity = uint64(tok.Entity())
		}
		return errors.InvalidState(errors.PhaseDispatch, entity, tok.State().String())
	}

	s, err := d.host.Surface(tok.Entity())
	if err != nil {
		return err
	}

	if t, ok := req.(targeted); ok {
		target := t.target()
		if target == 0 || !d.host.Valid(target) {
			return errors.New(errors.PhaseDispatch, errors.KindEntityAbsent).
				Entity(uint64(target)).
				Owner(tok.Owner()).
				Detail("%s target is not present", req.Kind()).
				Build()
		}
	}

	call, err := req.bind(s, d.handles, tok.Entity())
	if err != nil {
		return err
	}

	s.ClearQueuedAction()
	call.invoke()
	if call.done != nil {
		call.done()
	}
	return nil
}

// InProgress reports whether the entity behind tok is still running an
// action. An absent entity is never busy.
func (d *Dispatcher) InProgress(tok *control.Token) bool {
	if tok == nil {
		return false
	}
	s, err := d.host.Surface(tok.Entity())
	if err != nil {
		return false
	}
	return s.ActionInProgress()
}

// diagnose logs e at most once per interval for each (kind, error kind) pair.
func (d *Dispatcher) diagnose(e Event) {
	key := e.Kind.String()
	if be, ok := e.Err.(*errors.Error); ok {
		key += "/" + string(be.Kind)
	}

	d.mu.Lock()
	s, ok := d.limits[key]
	if !ok {
		s = &rate.Sometimes{First: 1, Interval: d.interval}
		d.limits[key] = s
	}
	d.mu.Unlock()

	s.Do(func() {
		Logger().Warn("action not issued",
			zap.String("owner", e.Owner),
			zap.Uint64("entity", uint64(e.Entity)),
			zap.Stringer("action", e.Kind),
			zap.Error(e.Err))
	})
}
