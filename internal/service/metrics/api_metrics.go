package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	APILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "weathercast",
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "Latency of forecasting endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	APIErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "weathercast",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Errors by forecasting endpoint",
		},
		[]string{"endpoint", "code"},
	)

	APIRateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "weathercast",
			Subsystem: "api",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-client rate limiter",
		},
		[]string{"endpoint"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(APILatency, APIErrors, APIRateLimited)
	})
}
