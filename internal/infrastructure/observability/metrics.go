package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Счётчик вызовов методов репозитория
	RepositoryCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repository_calls_total",
			Help: "Total number of repository method calls",
		},
		[]string{"method", "status"},
	)

	RepositoryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "repository_duration_seconds",
			Help:    "Duration of repository method calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	TokenOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_operations_total",
			Help: "Token lifecycle operations by outcome",
		},
		[]string{"operation", "result"},
	)

	CollaboratorDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "collaborator_request_duration_seconds",
			Help:    "Duration of calls to identity and notification services",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
)

func init() {
	prometheus.MustRegister(RepositoryCalls, RepositoryDuration, TokenOperations, CollaboratorDuration)
}

// ObserveRepository starts a duration measurement; call the result when done.
func ObserveRepository(method string) func() {
	start := time.Now()
	return func() {
		RepositoryDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}
}
