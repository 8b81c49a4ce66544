package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "expertmesh",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "expertmesh",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	queries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "expertmesh",
			Subsystem: "router",
			Name:      "queries_total",
			Help:      "Queries handled by outcome.",
		},
		[]string{"success"},
	)
	queryCost = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "expertmesh",
			Subsystem: "router",
			Name:      "query_cost",
			Help:      "Total cost of successful queries.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)
	queryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "expertmesh",
			Subsystem: "router",
			Name:      "query_duration_seconds",
			Help:      "Query execution duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	providerCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "expertmesh",
			Subsystem: "router",
			Name:      "provider_calls_total",
			Help:      "Simulated provider invocations.",
		},
		[]string{"provider"},
	)
	creditsIssued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "expertmesh",
			Subsystem: "ledger",
			Name:      "credits_issued_total",
			Help:      "Credits issued to provider addresses.",
		},
	)
	votes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "expertmesh",
			Subsystem: "governance",
			Name:      "votes_total",
			Help:      "Accepted governance votes.",
		},
		[]string{"support"},
	)
	proposalsResolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "expertmesh",
			Subsystem: "governance",
			Name:      "proposals_resolved_total",
			Help:      "Proposals that reached a terminal status.",
		},
		[]string{"status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			queries,
			queryCost,
			queryDuration,
			providerCalls,
			creditsIssued,
			votes,
			proposalsResolved,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordQuery(success bool, cost float64, duration time.Duration) {
	RegisterMetrics()
	queries.WithLabelValues(strconv.FormatBool(success)).Inc()
	queryDuration.Observe(duration.Seconds())
	if success {
		queryCost.Observe(cost)
	}
}

func RecordProviderCall(providerID string, credited float64) {
	RegisterMetrics()
	providerCalls.WithLabelValues(providerID).Inc()
	if credited > 0 {
		creditsIssued.Add(credited)
	}
}

func RecordVote(support bool) {
	RegisterMetrics()
	votes.WithLabelValues(strconv.FormatBool(support)).Inc()
}

func RecordProposalResolved(status string) {
	RegisterMetrics()
	proposalsResolved.WithLabelValues(status).Inc()
}
