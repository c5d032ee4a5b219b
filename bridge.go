package scriptbridge

import (
	"context"
	"io/fs"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/wippyai/scriptbridge/action"
	"github.com/wippyai/scriptbridge/config"
	"github.com/wippyai/scriptbridge/control"
	"github.com/wippyai/scriptbridge/errors"
	"github.com/wippyai/scriptbridge/globals"
	"github.com/wippyai/scriptbridge/handle"
	"github.com/wippyai/scriptbridge/host"
	"github.com/wippyai/scriptbridge/metrics"
	"github.com/wippyai/scriptbridge/script"
	"github.com/wippyai/scriptbridge/task"
)

// Options configures a Bridge.
type Options struct {
	// Config defaults to config.Default().
	Config *config.Config

	// FS overrides Config.ScriptDir as the script source.
	FS fs.FS

	// Registerer receives the bridge's Prometheus collectors. Metrics are
	// disabled when nil.
	Registerer prometheus.Registerer

	// Logger, when set, is installed in every package with SetLogger.
	Logger *zap.Logger

	// Required names host entries that must resolve for New to succeed.
	Required []string

	Host host.Entries
}

// Bridge owns the bridge services and drives them once per host frame.
type Bridge struct {
	cfg     *config.Config
	host    *host.Table
	handles *handle.Table
	ctrl    *control.Controller
	disp    *action.Dispatcher
	globals *globals.Store
	clock   *task.Clock
	envs    *script.Registry
	metrics *metrics.Collector
	closed  bool
}

// New builds the bridge services over the host entries in opts.
func New(opts Options) (*Bridge, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Logger != nil {
		SetLogger(opts.Logger)
	}

	h := host.NewTable(opts.Host)
	if err := h.Require(opts.Required...); err != nil {
		return nil, err
	}
	if missing := h.Missing(); len(missing) > 0 {
		Logger().Warn("host entries unresolved, calls through them are no-ops",
			zap.Strings("entries", missing))
	}

	b := &Bridge{
		cfg:     cfg,
		host:    h,
		handles: handle.NewTable(h),
		globals: globals.New(),
		clock:   &task.Clock{},
	}
	b.ctrl = control.NewController(h, b.handles)
	b.disp = action.New(h, b.handles, b.ctrl,
		action.WithDiagnosticInterval(cfg.Log.DiagnosticInterval))

	ropts := []script.Option{script.WithSlotCapacity(cfg.Slots.Capacity)}
	if opts.FS != nil {
		ropts = append(ropts, script.WithFS(opts.FS))
	} else {
		ropts = append(ropts, script.WithScriptDir(cfg.ScriptDir))
	}

	if opts.Registerer != nil {
		b.metrics = metrics.New(cfg.Metrics.Namespace)
		if err := b.metrics.Register(opts.Registerer); err != nil {
			return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "register metrics")
		}
		b.handles.Subscribe(b.metrics)
		b.ctrl.Subscribe(b.metrics)
		b.disp.Subscribe(b.metrics)
		ropts = append(ropts, script.WithObserver(b.metrics), script.WithSlotObserver(b.metrics))
	}

	b.envs = script.NewRegistry(script.Services{
		Host:       h,
		Controller: b.ctrl,
		Dispatcher: b.disp,
		Globals:    b.globals,
		Clock:      b.clock,
	}, ropts...)

	Logger().Info("bridge ready",
		zap.Int("slot_capacity", cfg.Slots.Capacity),
		zap.Bool("metrics", b.metrics != nil))
	return b, nil
}

// Tick runs one frame: every environment's Main thread, then its slot
// trampolines, in owner order.
func (b *Bridge) Tick(ctx context.Context) error {
	if b.closed {
		return errors.Closed(errors.PhaseEnvironment, "bridge")
	}
	start := time.Now()
	err := b.envs.Tick(ctx)
	if b.metrics != nil {
		b.metrics.ObserveFrame(time.Since(start))
	}
	return err
}

// CreateEnvironment loads script for owner, replacing any environment the
// owner already has.
func (b *Bridge) CreateEnvironment(owner script.Owner, name string) (*script.Environment, error) {
	return b.envs.Create(owner, name)
}

// DestroyEnvironment cancels owner's threads, clears its slots and releases
// its tokens.
func (b *Bridge) DestroyEnvironment(owner script.Owner) error {
	return b.envs.Destroy(owner)
}

// Lookup returns owner's environment.
func (b *Bridge) Lookup(owner script.Owner) (*script.Environment, bool) {
	return b.envs.Lookup(owner)
}

// Reload recreates owner's environment from its script.
func (b *Bridge) Reload(owner script.Owner) (*script.Environment, error) {
	return b.envs.Reload(owner)
}

// Persist routes ctx to owner's OnPersist hook.
func (b *Bridge) Persist(owner script.Owner, ctx any) error {
	return b.envs.Persist(owner, ctx)
}

// Reinitialize destroys every environment, releases every token and handle,
// clears the global store and rewinds the frame clock. Configuration and
// host entries are kept.
func (b *Bridge) Reinitialize() {
	envs := b.envs.Len()
	b.envs.DestroyAll()
	b.ctrl.Close()
	handles := b.handles.Reset()
	b.globals.Clear()
	b.clock.Reset()
	Logger().Info("bridge reinitialized",
		zap.Int("environments", envs),
		zap.Int("handles", handles))
}

// Close destroys every environment and releases everything the bridge holds.
func (b *Bridge) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	b.envs.Close()
	b.ctrl.Close()
	return b.handles.Close()
}

func (b *Bridge) Config() *config.Config          { return b.cfg }
func (b *Bridge) Host() *host.Table               { return b.host }
func (b *Bridge) Handles() *handle.Table          { return b.handles }
func (b *Bridge) Controller() *control.Controller { return b.ctrl }
func (b *Bridge) Dispatcher() *action.Dispatcher  { return b.disp }
func (b *Bridge) Globals() *globals.Store         { return b.globals }
func (b *Bridge) Clock() *task.Clock              { return b.clock }
func (b *Bridge) Environments() *script.Registry  { return b.envs }

// Metrics returns the collectors, or nil when metrics are disabled.
func (b *Bridge) Metrics() *metrics.Collector { return b.metrics }
