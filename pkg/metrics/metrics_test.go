package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gatherCounters(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	families, err := reg.Gather()
	require.NoError(t, err)

	out := map[string]float64{}
	for _, f := range families {
		for _, m := range f.GetMetric() {
			if c := m.GetCounter(); c != nil {
				out[f.GetName()] += c.GetValue()
			}
		}
	}
	return out
}

func TestNewMetricsWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.SignRequestsTotal.WithLabelValues("personal-message", Outcome_Approved).Inc()
	m.SignRequestsTotal.WithLabelValues("transaction", Outcome_Rejected).Inc()
	m.SignerBusyTotal.Inc()

	counters := gatherCounters(t, reg)
	assert.Equal(t, float64(2), counters["secora_sign_requests_total"])
	assert.Equal(t, float64(1), counters["secora_signer_busy_total"])
}

func TestNewMetricsWithRegistry_Isolated(t *testing.T) {
	// separate registries must not collide
	assert.NotPanics(t, func() {
		NewMetricsWithRegistry(prometheus.NewRegistry())
		NewMetricsWithRegistry(prometheus.NewRegistry())
	})
}
