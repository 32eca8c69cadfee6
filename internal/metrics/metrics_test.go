package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New("test", reg)

	m.ObserveEvaluation("")
	m.ObserveEvaluation("first_order_only")
	m.ObserveLine(true)
	m.ObserveLine(true)
	m.ObserveCache(false)

	require.Equal(t, 1.0, testutil.ToFloat64(m.Evaluations.WithLabelValues("applied")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Evaluations.WithLabelValues("first_order_only")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.Lines.WithLabelValues("split")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookup.WithLabelValues("miss")))

	again := New("test", reg)
	require.Same(t, m.Evaluations, again.Evaluations)
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *RebateMetrics
	m.ObserveEvaluation("x")
	m.ObserveLine(false)
	m.ObserveCache(true)
}
