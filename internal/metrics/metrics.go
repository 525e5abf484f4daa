package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// once 保证指标只注册一次，重复注册同名指标会 panic
	once sync.Once

	// ReservationAttempts 短码预留尝试次数
	// result: reserved / collision / duplicate / error
	ReservationAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortcode_reservation_attempts_total",
			Help: "Short code reservation attempts by result.",
		},
		[]string{"result"},
	)

	// ReservationExhausted 重试次数用尽的次数，持续增长说明需要调大重试上限或短码长度
	ReservationExhausted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shortcode_reservation_exhausted_total",
			Help: "Reservations that gave up after the retry ceiling.",
		},
	)

	// CacheOperations 解析缓存命中情况
	CacheOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortlink_cache_operations_total",
			Help: "Resolve cache operations by layer and result.",
		},
		[]string{"layer", "result"},
	)

	// HTTPRequestsTotal 请求总数
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDurationSeconds 请求耗时分布，route 使用路由模板避免高基数
	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency distributions.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Register 注册到默认 registry
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			ReservationAttempts,
			ReservationExhausted,
			CacheOperations,
			HTTPRequestsTotal,
			HTTPRequestDurationSeconds,
		)
	})
}
