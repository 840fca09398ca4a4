package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckoutMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCheckout(reg)

	m.Orders.WithLabelValues("placed").Inc()
	m.Orders.WithLabelValues("placed").Inc()
	m.LockRetries.Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Orders.WithLabelValues("placed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LockRetries))

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "freshmart_checkout_orders_total")
}

func TestHTTPMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTP(reg, "gateway")

	m.Requests.WithLabelValues("/api/v1/orders", "201").Inc()
	m.LatencyMS.WithLabelValues("/api/v1/orders").Observe(12)

	assert.Equal(t, 1, testutil.CollectAndCount(m.Requests))
	assert.Equal(t, 1, testutil.CollectAndCount(m.LatencyMS))
}
