package router_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/Howters/ArisanOnChain-sub000/internal/handler"
	"github.com/Howters/ArisanOnChain-sub000/internal/metrics"
	"github.com/Howters/ArisanOnChain-sub000/internal/monitor"
	"github.com/Howters/ArisanOnChain-sub000/internal/query"
	"github.com/Howters/ArisanOnChain-sub000/internal/reconcile"
	"github.com/Howters/ArisanOnChain-sub000/internal/router"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bb = "0x00000000000000000000000000000000000000bb"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// stubReads records the arguments it was called with.
type stubReads struct {
	err     error
	user    string
	address string
	poolId  uint64
}

func (s *stubReads) GetPools(ctx context.Context, user string) ([]query.PoolSummary, error) {
	s.user = user
	return []query.PoolSummary{{PoolId: 7}}, s.err
}

func (s *stubReads) GetPoolDetail(ctx context.Context, poolId uint64, user string) (*query.PoolDetail, error) {
	s.poolId, s.user = poolId, user
	if s.err != nil {
		return nil, s.err
	}
	return &query.PoolDetail{PoolSummary: query.PoolSummary{PoolId: poolId, MemberCount: 2}}, nil
}

func (s *stubReads) GetUserDebts(ctx context.Context, address string) ([]query.DebtView, error) {
	s.address = address
	return []query.DebtView{{TokenId: "9"}}, s.err
}

func (s *stubReads) GetTransactions(ctx context.Context, address string) ([]query.TxRecord, error) {
	s.address = address
	return []query.TxRecord{{Kind: query.TxTopUp}}, s.err
}

func (s *stubReads) GetReputation(ctx context.Context, address string) (*query.ReputationView, error) {
	s.address = address
	return &query.ReputationView{Address: address, CompletedPools: 3}, s.err
}

type stubStatus struct{ err error }

func (s stubStatus) Status(ctx context.Context) (*monitor.Status, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &monitor.Status{ChainId: 31337, Initialized: true, CheckpointBlock: 90, HeadBlock: 100, HeadLag: 10}, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func get(t *testing.T, r http.Handler, path string) (int, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

	var body envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return w.Code, body
}

type stubChain struct{}

func (stubChain) GetHealthStatus(ctx context.Context) map[string]interface{} {
	return map[string]interface{}{"chain_id": 31337, "client_status": "connected"}
}

func TestHealth(t *testing.T) {
	r := router.Setup(router.Dependencies{Reads: &stubReads{}})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.NotContains(t, w.Body.String(), `"chain"`)

	r = router.Setup(router.Dependencies{Reads: &stubReads{}, Chain: stubChain{}})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status string                 `json:"status"`
		Chain  map[string]interface{} `json:"chain"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "connected", body.Chain["client_status"])
	assert.Equal(t, float64(31337), body.Chain["chain_id"])
}

func TestPools(t *testing.T) {
	reads := &stubReads{}
	r := router.Setup(router.Dependencies{Reads: reads})

	code, body := get(t, r, "/api/v1/pools?user=0x00000000000000000000000000000000000000BB")
	require.Equal(t, http.StatusOK, code)
	assert.True(t, body.Success)
	assert.Equal(t, bb, reads.user)

	var pools []query.PoolSummary
	require.NoError(t, json.Unmarshal(body.Data, &pools))
	require.Len(t, pools, 1)
	assert.Equal(t, uint64(7), pools[0].PoolId)

	code, body = get(t, r, "/api/v1/pools?user=alice")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, body.Success)
}

func TestPoolDetail(t *testing.T) {
	reads := &stubReads{}
	r := router.Setup(router.Dependencies{Reads: reads})

	code, body := get(t, r, "/api/v1/pools/7")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, uint64(7), reads.poolId)
	assert.Equal(t, "", reads.user)

	var detail query.PoolDetail
	require.NoError(t, json.Unmarshal(body.Data, &detail))
	assert.Equal(t, 2, detail.MemberCount)

	code, _ = get(t, r, "/api/v1/pools/seven")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestQueryErrors(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{query.ErrPoolNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: pool_detail: %w", reconcile.ErrUnavailable, errors.New("rpc timeout")), http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			r := router.Setup(router.Dependencies{Reads: &stubReads{err: tc.err}})

			code, body := get(t, r, "/api/v1/pools/9")
			assert.Equal(t, tc.code, code)
			assert.False(t, body.Success)
		})
	}
}

func TestUserRoutes(t *testing.T) {
	reads := &stubReads{}
	r := router.Setup(router.Dependencies{Reads: reads})
	mixed := "0x00000000000000000000000000000000000000Bb"

	for _, path := range []string{"debts", "transactions", "reputation"} {
		reads.address = ""
		code, body := get(t, r, "/api/v1/users/"+mixed+"/"+path)
		require.Equal(t, http.StatusOK, code, path)
		assert.True(t, body.Success)
		assert.Equal(t, bb, reads.address, path)
	}

	code, _ := get(t, r, "/api/v1/users/0x123/debts")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, bb, reads.address)

	r = router.Setup(router.Dependencies{Reads: &stubReads{err: reconcile.ErrUnavailable}})
	code, _ = get(t, r, "/api/v1/users/"+bb+"/transactions")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestIndexerStatus(t *testing.T) {
	r := router.Setup(router.Dependencies{Reads: &stubReads{}, Status: stubStatus{}})
	code, body := get(t, r, "/api/v1/indexer/status")
	require.Equal(t, http.StatusOK, code)

	var status monitor.Status
	require.NoError(t, json.Unmarshal(body.Data, &status))
	assert.Equal(t, uint64(10), status.HeadLag)

	r = router.Setup(router.Dependencies{Reads: &stubReads{}, Status: stubStatus{err: errors.New("db closed")}})
	code, _ = get(t, r, "/api/v1/indexer/status")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	r = router.Setup(router.Dependencies{Reads: &stubReads{}})
	code, body = get(t, r, "/api/v1/indexer/status")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "indexer disabled", body.Message)
}

func TestMetricsRoute(t *testing.T) {
	m := metrics.New()
	m.SetHead(100, 90)
	r := router.Setup(router.Dependencies{Reads: &stubReads{}, Metrics: m.Handler()})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "arisan_head_lag_blocks 10")

	w = httptest.NewRecorder()
	router.Setup(router.Dependencies{Reads: &stubReads{}}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

var _ handler.StatusProvider = stubStatus{}
