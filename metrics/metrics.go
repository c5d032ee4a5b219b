// Package metrics exposes bridge activity as Prometheus collectors.
//
// A Collector implements the observer interface of every bridge package, so
// wiring it is a matter of subscribing it:
//
//	m := metrics.New("scriptbridge")
//	m.MustRegister(prometheus.DefaultRegisterer)
//	handles.Subscribe(m)
//	controller.Subscribe(m)
//	dispatcher.Subscribe(m)
//	script.NewRegistry(svc, script.WithObserver(m), script.WithSlotObserver(m))
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wippyai/scriptbridge/action"
	"github.com/wippyai/scriptbridge/control"
	"github.com/wippyai/scriptbridge/errors"
	"github.com/wippyai/scriptbridge/handle"
	"github.com/wippyai/scriptbridge/script"
	"github.com/wippyai/scriptbridge/slots"
)

// Collector holds the bridge's Prometheus metrics.
type Collector struct {
	handleEvents  *prometheus.CounterVec
	liveHandles   prometheus.Gauge
	liveBuffers   prometheus.Gauge
	tokenEvents   *prometheus.CounterVec
	actions       *prometheus.CounterVec
	slotEvents    *prometheus.CounterVec
	envEvents     *prometheus.CounterVec
	environments  prometheus.Gauge
	frames        prometheus.Counter
	frameDuration prometheus.Histogram
}

var (
	_ handle.Observer  = (*Collector)(nil)
	_ control.Observer = (*Collector)(nil)
	_ action.Observer  = (*Collector)(nil)
	_ slots.Observer   = (*Collector)(nil)
	_ script.Observer  = (*Collector)(nil)
)

// New creates the collectors under namespace. Nothing is registered until
// Register or MustRegister.
func New(namespace string) *Collector {
	return &Collector{
		handleEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handle_events_total",
			Help:      "Entity handle and host buffer lifecycle events by type.",
		}, []string{"event"}),
		liveHandles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "handles_live",
			Help:      "Entity handles currently holding a host reference.",
		}),
		liveBuffers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "buffers_live",
			Help:      "Host buffers allocated and not yet freed.",
		}),
		tokenEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_events_total",
			Help:      "Control token transitions by type.",
		}, []string{"event"}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Action issues by kind and result. Result is issued or the error kind.",
		}, []string{"action", "result"}),
		slotEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_events_total",
			Help:      "Scheduler slot events by type.",
		}, []string{"event"}),
		envEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "environment_events_total",
			Help:      "Script environment events by type.",
		}, []string{"event"}),
		environments: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "environments_live",
			Help:      "Script environments currently loaded.",
		}),
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Frames ticked.",
		}),
		frameDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "frame_duration_seconds",
			Help:      "Time spent in one bridge tick.",
			Buckets:   []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01, .025},
		}),
	}
}

func (c *Collector) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.handleEvents, c.liveHandles, c.liveBuffers,
		c.tokenEvents, c.actions, c.slotEvents,
		c.envEvents, c.environments, c.frames, c.frameDuration,
	}
}

// Register registers every collector on reg.
func (c *Collector) Register(reg prometheus.Registerer) error {
	for _, col := range c.collectors() {
		if err := reg.Register(col); err != nil {
			return err
		}
	}
	return nil
}

// MustRegister is Register that panics on error.
func (c *Collector) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(c.collectors()...)
}

func (c *Collector) OnHandleEvent(e handle.Event) {
	c.handleEvents.WithLabelValues(e.Type.String()).Inc()
	switch e.Type {
	case handle.EventWrapped:
		c.liveHandles.Inc()
	case handle.EventReleased:
		c.liveHandles.Dec()
	case handle.EventBufferAllocated:
		c.liveBuffers.Inc()
	case handle.EventBufferFreed:
		c.liveBuffers.Dec()
	}
}

func (c *Collector) OnTokenEvent(e control.Event) {
	c.tokenEvents.WithLabelValues(e.Type.String()).Inc()
}

func (c *Collector) OnDispatch(e action.Event) {
	result := "issued"
	if e.Err != nil {
		result = string(errors.KindOf(e.Err))
		if result == "" {
			result = "error"
		}
	}
	c.actions.WithLabelValues(e.Kind.String(), result).Inc()
}

func (c *Collector) OnSlotEvent(e slots.Event) {
	c.slotEvents.WithLabelValues(e.Type.String()).Inc()
}

func (c *Collector) OnEnvironmentEvent(e script.Event) {
	c.envEvents.WithLabelValues(e.Type.String()).Inc()
	switch e.Type {
	case script.EventCreated:
		c.environments.Inc()
	case script.EventDestroyed:
		c.environments.Dec()
	}
}

// ObserveFrame records one tick that took d.
func (c *Collector) ObserveFrame(d time.Duration) {
	c.frames.Inc()
	c.frameDuration.Observe(d.Seconds())
}
