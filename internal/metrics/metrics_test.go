package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basecamp/stockstatus/internal/store"
)

var info = store.FetchInfo{Backend: store.BackendREST, Table: "stock"}

func TestCollector_OnFetchEnd(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	ctx := c.OnFetchStart(context.Background(), info)

	c.OnFetchEnd(ctx, info, store.FetchResult{Found: true, Available: true, Duration: 20 * time.Millisecond})
	assert.Equal(t, 1.0, testutil.ToFloat64(c.available))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.fetches.WithLabelValues("rest", ResultAvailable)))

	c.OnFetchEnd(ctx, info, store.FetchResult{})
	assert.Equal(t, 0.0, testutil.ToFloat64(c.available))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.fetches.WithLabelValues("rest", ResultEmpty)))

	c.OnFetchEnd(ctx, info, store.FetchResult{Found: true, Available: true})
	c.OnFetchEnd(ctx, info, store.FetchResult{Error: errors.New("network error")})
	assert.Equal(t, 1.0, testutil.ToFloat64(c.available), "errors keep the last known availability")
	assert.Equal(t, 1.0, testutil.ToFloat64(c.fetches.WithLabelValues("rest", ResultError)))
	assert.Equal(t, 4, testutil.CollectAndCount(c.latency))
}

func TestSetupMetricsRoute_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.OnFetchEnd(context.Background(), info, store.FetchResult{Found: true})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	SetupMetricsRoute(reg).ServeHTTP(w, req)

	resp := w.Result()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `stockstatus_fetch_total{backend="rest",result="unavailable"} 1`)
}

func TestServer_ServeUntilCancelled(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg)

	srv, err := Listen("127.0.0.1:0", reg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
