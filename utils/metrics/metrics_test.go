package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestReadMetricsRegisterAndServe(t *testing.T) {
	Initialize(zaptest.NewLogger(t))

	m := NewReadMetrics("test_read")
	m.SnapshotReads.Inc()
	m.ReadLatency.Observe(0.01)
	m.PoolReserve.WithLabelValues("0xabc", "base").Set(950000000)

	recorder := httptest.NewRecorder()
	Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, recorder.Code)
	body := recorder.Body.String()
	assert.Contains(t, body, "test_read_snapshot_reads_total 1")
	assert.Contains(t, body, "test_read_pool_reserve")
}

func TestDecisionMetrics(t *testing.T) {
	Initialize(zaptest.NewLogger(t))

	m := NewDecisionMetrics("test_decision")
	m.PairsEvaluated.Inc()
	m.SpreadPercent.Observe(2.0166)
	m.BelowThreshold.Inc()

	recorder := httptest.NewRecorder()
	Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := recorder.Body.String()
	assert.Contains(t, body, "test_decision_pairs_evaluated_total 1")
	assert.Contains(t, body, "test_decision_below_threshold_total 1")
}

func TestRegisterExternalCollector(t *testing.T) {
	Initialize(zaptest.NewLogger(t))

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_external_total",
		Help: "externally built collector",
	})
	Register(counter)
	counter.Add(3)

	recorder := httptest.NewRecorder()
	Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, recorder.Body.String(), "test_external_total 3")
}
