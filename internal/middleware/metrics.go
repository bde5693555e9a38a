package middleware

import (
	"strconv"
	"time"

	"hearth/internal/metrics"

	"github.com/gin-gonic/gin"
)

// Metrics 按路由模板统计请求数和耗时，未匹配的路由归到 "unmatched"
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		metrics.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPDuration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
	}
}
