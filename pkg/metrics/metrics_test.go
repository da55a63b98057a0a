package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestInc_CountsByLabel(t *testing.T) {
	Inc(PromoRedemptions, "test_outcome")
	Inc(PromoRedemptions, "test_outcome")

	vec, ok := PromoRedemptions.MetricCollector.(*prometheus.CounterVec)
	require.True(t, ok)
	require.Equal(t, float64(2), testutil.ToFloat64(vec.WithLabelValues("test_outcome")))
}

func TestAdd_PlainCounter(t *testing.T) {
	Add(SubscriptionsSwept, 3)
	c, ok := SubscriptionsSwept.MetricCollector.(prometheus.Counter)
	require.True(t, ok)
	require.GreaterOrEqual(t, testutil.ToFloat64(c), float64(3))
}

func TestNewMetric_UnknownTypeIsNil(t *testing.T) {
	require.Nil(t, NewMetric(&Metric{Name: "x", Type: "nope"}, "s"))
}

func TestHandlerFunc_RecordsMatchedRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	p := NewPrometheus(NewPrometheusOptions{Subsystem: "test", Registerer: reg})

	r := gin.New()
	r.Use(p.HandlerFunc())
	r.GET("/items/:id", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/items/42", nil))
	require.Equal(t, http.StatusOK, w.Code)

	require.Equal(t, float64(1), testutil.ToFloat64(p.reqCnt.WithLabelValues("200", "GET", "/items/:id", "")))
}

func TestComputeApproximateRequestSize(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/a", nil)
	req.Header.Set("X", "yz")
	req.ContentLength = 10
	// path(2) + method(4) + proto(8) + header(1+2) + host(11) + body(10)
	require.Equal(t, 2+4+8+3+len(req.Host)+10, computeApproximateRequestSize(req))
}
