package server

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// requestsTotal counts handled requests by route and status code.
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "biotree_http_requests_total",
		Help: "Total HTTP requests handled",
	}, []string{"route", "status"})

	// requestDuration tracks request latency by route.
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "biotree_http_request_duration_seconds",
		Help:    "HTTP request duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
)

func instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		requestsTotal.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
		requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}
