package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/NavarchProject/timerstub/pkg/timerqueue"
)

const (
	kindTimeout  = "timeout"
	kindInterval = "interval"
)

// Metrics provides Prometheus metrics for a Scheduler. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	scheduledTotal *prometheus.CounterVec
	firedTotal     *prometheus.CounterVec
	cancelledTotal prometheus.Counter
	stepsTotal     prometheus.Counter

	pendingCommands prometheus.Gauge
	virtualNow      prometheus.Gauge
}

// NewMetrics creates a new Metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{
		scheduledTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "timerstub_commands_scheduled_total",
				Help: "Total number of commands scheduled by kind",
			},
			[]string{"kind"},
		),
		firedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "timerstub_commands_fired_total",
				Help: "Total number of commands fired by kind",
			},
			[]string{"kind"},
		),
		cancelledTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "timerstub_commands_cancelled_total",
				Help: "Total number of queued commands cancelled by id",
			},
		),
		stepsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "timerstub_drain_steps_total",
				Help: "Total number of drain steps run",
			},
		),
		pendingCommands: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "timerstub_pending_commands",
				Help: "Number of commands currently queued",
			},
		),
		virtualNow: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "timerstub_virtual_now_milliseconds",
				Help: "Current virtual time in milliseconds",
			},
		),
	}
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.scheduledTotal.Describe(ch)
	m.firedTotal.Describe(ch)
	m.cancelledTotal.Describe(ch)
	m.stepsTotal.Describe(ch)
	m.pendingCommands.Describe(ch)
	m.virtualNow.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.scheduledTotal.Collect(ch)
	m.firedTotal.Collect(ch)
	m.cancelledTotal.Collect(ch)
	m.stepsTotal.Collect(ch)
	m.pendingCommands.Collect(ch)
	m.virtualNow.Collect(ch)
}

func (m *Metrics) observeSchedule(kind string, s *Scheduler) {
	if m == nil {
		return
	}
	m.scheduledTotal.WithLabelValues(kind).Inc()
	m.observeQueue(s)
}

func (m *Metrics) observeFire(cmd timerqueue.Command, s *Scheduler) {
	if m == nil {
		return
	}
	kind := kindTimeout
	if cmd.Repeat > 0 {
		kind = kindInterval
	}
	m.firedTotal.WithLabelValues(kind).Inc()
	m.observeQueue(s)
}

func (m *Metrics) observeCancel(s *Scheduler) {
	if m == nil {
		return
	}
	m.cancelledTotal.Inc()
	m.observeQueue(s)
}

func (m *Metrics) observeStep() {
	if m == nil {
		return
	}
	m.stepsTotal.Inc()
}

func (m *Metrics) observeQueue(s *Scheduler) {
	if m == nil {
		return
	}
	m.pendingCommands.Set(float64(s.queue.Len()))
	m.virtualNow.Set(float64(s.clock.Now()))
}
