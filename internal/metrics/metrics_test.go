package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersAndGauges(t *testing.T) {
	m := New()
	m.EventApplied("pool", "MemberRequested")
	m.EventApplied("pool", "MemberRequested")
	m.Anomaly("missing_row")
	m.BlockApplied(42)
	m.SetHead(50, 42)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.eventsApplied.WithLabelValues("pool", "MemberRequested")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.anomalies.WithLabelValues("missing_row")))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.checkpointBlock))
	assert.Equal(t, 8.0, testutil.ToFloat64(m.headLag))

	m.SetHead(40, 42)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.headLag))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.EventApplied("pool", "x")
		m.Anomaly("x")
		m.BlockApplied(1)
		m.RPCRetry("eth_getLogs")
		m.QueryServed("pools", "store")
		m.QueryFallback("pools")
		m.QueryFailed("pools")
		m.SetHead(1, 0)
		m.ObserveSync(0.1)
	})
}

func TestHandlerExposesNamespace(t *testing.T) {
	m := New()
	m.QueryServed("pool_detail", "ledger")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `arisan_query_requests_total{query="pool_detail",source="ledger"} 1`))
}
