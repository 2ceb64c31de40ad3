package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sample returns the counter value, or the histogram sample count, of the
// series matching name and labels in the default registry.
func sample(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			matched := 0
			for _, lp := range m.GetLabel() {
				if v, ok := labels[lp.GetName()]; ok && v == lp.GetValue() {
					matched++
				}
			}
			if matched != len(labels) {
				continue
			}
			if h := m.GetHistogram(); h != nil {
				return float64(h.GetSampleCount())
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestCollectorsAreRegistered(t *testing.T) {
	before := sample(t, "ledger_transitions_total", map[string]string{"type": "deposit", "status": "approved"})
	LedgerTransitions.WithLabelValues("deposit", "approved").Inc()
	assert.Equal(t, before+1, sample(t, "ledger_transitions_total", map[string]string{"type": "deposit", "status": "approved"}))

	before = sample(t, "ledger_balance_applied_total", map[string]string{"type": "earning"})
	BalanceApplied.WithLabelValues("earning").Add(12.5)
	assert.Equal(t, before+12.5, sample(t, "ledger_balance_applied_total", map[string]string{"type": "earning"}))

	before = sample(t, "investment_positions_opened_total", nil)
	PositionsOpened.Inc()
	assert.Equal(t, before+1, sample(t, "investment_positions_opened_total", nil))

	before = sample(t, "investment_accrual_sweep_duration_seconds", nil)
	AccrualSweepDuration.Observe(0.2)
	assert.Equal(t, before+1, sample(t, "investment_accrual_sweep_duration_seconds", nil))

	labels := map[string]string{"method": "POST", "route": "/api/v1/investments", "code": "201"}
	before = sample(t, "http_requests_total", labels)
	HTTPRequests.WithLabelValues("POST", "/api/v1/investments", "201").Inc()
	assert.Equal(t, before+1, sample(t, "http_requests_total", labels))
}

func TestCounterRejectsNegativeAdd(t *testing.T) {
	assert.Panics(t, func() { EarningsCredited.Add(-1) })
}
