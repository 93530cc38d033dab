package observability

import (
	"time"

	"github.com/aretw0/colloquy/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors updated by executions and registries.
// A nil *Metrics is a valid no-op receiver, so components never need to nil-check.
type Metrics struct {
	executionsActive   prometheus.Gauge
	executionsTotal    *prometheus.CounterVec
	steps              *prometheus.CounterVec
	timeouts           *prometheus.CounterVec
	deliveryFailures   prometheus.Counter
	exchangeDuration   prometheus.Histogram
	sessionsActive     prometheus.Gauge
	sessionsExpired    prometheus.Counter
	leaseReleaseErrors prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
// Pass prometheus.DefaultRegisterer to expose them on the default /metrics handler.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		executionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "colloquy_executions_active",
			Help: "Number of dialogue executions whose goroutine is running",
		}),
		executionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "colloquy_executions_finished_total",
			Help: "Finished dialogue executions by outcome",
		}, []string{"outcome"}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "colloquy_steps_total",
			Help: "Steps delivered to controllers by kind",
		}, []string{"kind"}),
		timeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "colloquy_turn_timeouts_total",
			Help: "Turn exchanges that timed out by waiting side and operation",
		}, []string{"side", "op"}),
		deliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "colloquy_result_delivery_failures_total",
			Help: "Terminal steps that could not be delivered within the send timeout",
		}),
		exchangeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "colloquy_exchange_duration_seconds",
			Help:    "Controller-side duration of a turn exchange",
			Buckets: prometheus.DefBuckets,
		}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "colloquy_sessions_active",
			Help: "Sessions tracked by the registry",
		}),
		sessionsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "colloquy_sessions_expired_total",
			Help: "Sessions stopped by the idle sweep",
		}),
		leaseReleaseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "colloquy_lease_release_errors_total",
			Help: "External session handles that failed to release",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.executionsActive, m.executionsTotal, m.steps, m.timeouts, m.deliveryFailures,
			m.exchangeDuration, m.sessionsActive, m.sessionsExpired, m.leaseReleaseErrors,
		)
	}
	return m
}

// ExecutionStarted marks a dialogue goroutine as running.
func (m *Metrics) ExecutionStarted() {
	if m == nil {
		return
	}
	m.executionsActive.Inc()
}

// ExecutionFinished records the end of a dialogue goroutine. Outcome is "last", "error",
// "stopped" or "undelivered".
func (m *Metrics) ExecutionFinished(outcome string) {
	if m == nil {
		return
	}
	m.executionsActive.Dec()
	m.executionsTotal.WithLabelValues(outcome).Inc()
}

// StepObserved counts a step handed to a controller.
func (m *Metrics) StepObserved(kind domain.Kind) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(kind.String()).Inc()
}

// TurnTimedOut counts a timed-out exchange.
func (m *Metrics) TurnTimedOut(side domain.Side, op domain.Op) {
	if m == nil {
		return
	}
	m.timeouts.WithLabelValues(string(side), string(op)).Inc()
}

// ResultDeliveryFailed counts an undeliverable terminal step.
func (m *Metrics) ResultDeliveryFailed() {
	if m == nil {
		return
	}
	m.deliveryFailures.Inc()
}

// ObserveExchange records how long a controller exchange took.
func (m *Metrics) ObserveExchange(d time.Duration) {
	if m == nil {
		return
	}
	m.exchangeDuration.Observe(d.Seconds())
}

// SessionAdded increments the session gauge.
func (m *Metrics) SessionAdded() {
	if m == nil {
		return
	}
	m.sessionsActive.Inc()
}

// SessionRemoved decrements the session gauge.
func (m *Metrics) SessionRemoved() {
	if m == nil {
		return
	}
	m.sessionsActive.Dec()
}

// SessionExpired counts a session stopped by the sweep.
func (m *Metrics) SessionExpired() {
	if m == nil {
		return
	}
	m.sessionsExpired.Inc()
}

// LeaseReleaseFailed counts a failed external handle release.
func (m *Metrics) LeaseReleaseFailed() {
	if m == nil {
		return
	}
	m.leaseReleaseErrors.Inc()
}
