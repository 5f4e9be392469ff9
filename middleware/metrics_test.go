package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"campustrade_go/metrics"
	"campustrade_go/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := metrics.New()

	r := gin.New()
	r.Use(Metrics(registry))
	r.GET("/api/orders/:id", func(c *gin.Context) {
		utils.Fail(c, utils.NotFound("order %s not found", c.Param("id")))
	})
	r.GET("/metrics", gin.WrapH(registry.Handler()))

	for _, id := range []string{"a", "b"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/orders/"+id, nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(registry.HTTPRequests.WithLabelValues(http.MethodGet, "/api/orders/:id", "404")))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "campustrade_http_requests_total")
	assert.Contains(t, w.Body.String(), "campustrade_orders_created_total")
}
