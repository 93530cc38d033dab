package observability_test

import (
	"testing"
	"time"

	"github.com/aretw0/colloquy/pkg/domain"
	"github.com/aretw0/colloquy/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *observability.Metrics
	assert.NotPanics(t, func() {
		m.ExecutionStarted()
		m.ExecutionFinished("last")
		m.StepObserved(domain.KindOutput)
		m.TurnTimedOut(domain.SideController, domain.OpReceive)
		m.ResultDeliveryFailed()
		m.ObserveExchange(time.Millisecond)
		m.SessionAdded()
		m.SessionRemoved()
		m.SessionExpired()
		m.LeaseReleaseFailed()
	})
}

func TestMetrics_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)

	m.ExecutionStarted()
	m.StepObserved(domain.KindOutput)
	m.StepObserved(domain.KindOutput)
	m.StepObserved(domain.KindLast)
	m.TurnTimedOut(domain.SideDialogue, domain.OpReceive)
	m.ExecutionFinished("last")
	m.SessionAdded()
	m.SessionExpired()

	count, err := testutil.GatherAndCount(reg, "colloquy_steps_total")
	assert.NoError(t, err)
	assert.Equal(t, 2, count, "one series per kind")

	mfs, err := reg.Gather()
	assert.NoError(t, err)
	values := map[string]float64{}
	for _, mf := range mfs {
		for _, metric := range mf.GetMetric() {
			switch {
			case metric.GetGauge() != nil:
				values[mf.GetName()] += metric.GetGauge().GetValue()
			case metric.GetCounter() != nil:
				values[mf.GetName()] += metric.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, 0.0, values["colloquy_executions_active"])
	assert.Equal(t, 1.0, values["colloquy_executions_finished_total"])
	assert.Equal(t, 3.0, values["colloquy_steps_total"])
	assert.Equal(t, 1.0, values["colloquy_turn_timeouts_total"])
	assert.Equal(t, 1.0, values["colloquy_sessions_active"])
	assert.Equal(t, 1.0, values["colloquy_sessions_expired_total"])
}
