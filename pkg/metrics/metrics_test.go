package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)
	m.FilterQueriesTotal.WithLabelValues("ok").Inc()
	m.CatalogJobs.Set(3)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.FilterQueriesTotal.WithLabelValues("ok")))
	n, err := testutil.GatherAndCount(reg, "jobfilter_filter_queries_total", "jobfilter_catalog_jobs")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Panics(t, func() { NewWithRegistry(reg) }, "collectors register once per registry")
}

func TestServerRoutes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)
	m.FilterCacheTotal.WithLabelValues("hit").Add(2)
	h := NewServer(0, reg).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `jobfilter_filter_cache_requests_total{result="hit"} 2`)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/metrics", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/other", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
