// Package metrics 暴露 Prometheus 指标
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	chainCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crowdchain_chain_calls_total",
		Help: "Contract reads and writes by method and result.",
	}, []string{"kind", "method", "result"})

	chainCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crowdchain_chain_call_duration_seconds",
		Help:    "Latency of contract reads and writes.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind", "method"})

	transactions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crowdchain_transactions_total",
		Help: "Journaled transactions by status transition.",
	}, []string{"status"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crowdchain_http_requests_total",
		Help: "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "code"})
)

// ObserveChainCall 记录一次链上调用
func ObserveChainCall(kind, method string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	chainCalls.WithLabelValues(kind, method, result).Inc()
	chainCallDuration.WithLabelValues(kind, method).Observe(time.Since(start).Seconds())
}

// TransactionStatus 记录交易状态变化
func TransactionStatus(status string) {
	transactions.WithLabelValues(status).Inc()
}

// Middleware gin 请求计数中间件
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

// Handler /metrics 处理器
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
