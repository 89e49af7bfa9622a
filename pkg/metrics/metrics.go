// Package metrics exposes Prometheus counters for the session coordinator.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the reconciler, loader and HTTP module report to.
type Recorder interface {
	RecordEvent(kind, outcome string)
	RecordResolution(role string, created bool)
	RecordWatchdogAttempt(attempt int)
	RecordLoad(ok bool)
	RecordSwitch(ok bool)
	RecordSafetyReload()
	SetActiveTabs(n int)
}

// Collector is the Prometheus-backed Recorder.
type Collector struct {
	events      *prometheus.CounterVec
	resolutions *prometheus.CounterVec
	watchdog    *prometheus.CounterVec
	loads       *prometheus.CounterVec
	switches    *prometheus.CounterVec
	reloads     prometheus.Counter
	tabs        prometheus.Gauge
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "raisekit_auth_events_total",
			Help: "Auth events handled by tab reconcilers, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "raisekit_profile_resolutions_total",
			Help: "Profile resolutions, by role and whether a default profile was created.",
		}, []string{"role", "created"}),
		watchdog: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "raisekit_watchdog_attempts_total",
			Help: "Forced data-load attempts made by the watchdog, by attempt number.",
		}, []string{"attempt"}),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "raisekit_data_loads_total",
			Help: "Data load completions, by result.",
		}, []string{"result"}),
		switches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "raisekit_profile_switches_total",
			Help: "Profile switch requests, by result.",
		}, []string{"result"}),
		reloads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "raisekit_safety_reloads_total",
			Help: "One-shot reloads triggered by the mobile safety net.",
		}),
		tabs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "raisekit_active_tabs",
			Help: "Tabs currently registered with the coordinator.",
		}),
	}

	reg.MustRegister(c.events, c.resolutions, c.watchdog, c.loads, c.switches, c.reloads, c.tabs)
	return c
}

func (c *Collector) RecordEvent(kind, outcome string) {
	c.events.WithLabelValues(kind, outcome).Inc()
}

func (c *Collector) RecordResolution(role string, created bool) {
	c.resolutions.WithLabelValues(role, boolLabel(created)).Inc()
}

func (c *Collector) RecordWatchdogAttempt(attempt int) {
	c.watchdog.WithLabelValues(attemptLabel(attempt)).Inc()
}

func (c *Collector) RecordLoad(ok bool) {
	c.loads.WithLabelValues(result(ok)).Inc()
}

func (c *Collector) RecordSwitch(ok bool) {
	c.switches.WithLabelValues(result(ok)).Inc()
}

func (c *Collector) RecordSafetyReload() {
	c.reloads.Inc()
}

func (c *Collector) SetActiveTabs(n int) {
	c.tabs.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything. Services use it when no recorder is configured.
type Nop struct{}

func (Nop) RecordEvent(string, string) {}
func (Nop) RecordResolution(string, bool) {}
func (Nop) RecordWatchdogAttempt(int) {}
func (Nop) RecordLoad(bool) {}
func (Nop) RecordSwitch(bool) {}
func (Nop) RecordSafetyReload() {}
func (Nop) SetActiveTabs(int) {}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

// attemptLabel keeps the label set bounded; the watchdog never exceeds six.
func attemptLabel(n int) string {
	if n < 1 || n > 6 {
		return "other"
	}
	return string(rune('0' + n))
}
