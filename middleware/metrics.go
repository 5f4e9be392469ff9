package middleware

import (
	"strconv"
	"time"

	"campustrade_go/metrics"

	"github.com/gin-gonic/gin"
)

// Metrics 记录HTTP请求数与延迟，route 使用路由模板避免标签爆炸
func Metrics(m *metrics.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestLatency.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
