// Package metrics holds the prometheus collectors shared by the AFS services.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "afs"

// HTTP surface of every service
var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests served, by service, route and status",
	}, []string{"service", "method", "route", "status"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by service and route",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 20, 45, 60},
	}, []string{"service", "method", "route"})
)

// Resilience patterns
var (
	// CircuitBreakerState is 0 when closed, 1 when open and 2 when half-open.
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "breaker",
		Name:      "state",
		Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service", "circuit"})

	CircuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "breaker",
		Name:      "failures_total",
		Help:      "Calls that failed through a circuit breaker, including rejections while open",
	}, []string{"service", "circuit"})

	BulkheadActiveRequests = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "bulkhead",
		Name:      "active",
		Help:      "Terminal calls currently holding a bulkhead slot",
	}, []string{"service", "bulkhead"})

	BulkheadRejectedRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "bulkhead",
		Name:      "rejected_total",
		Help:      "Terminal calls turned away because no slot freed up in time",
	}, []string{"service", "bulkhead"})
)

// Payment flow
var (
	// TransactionsTotal counts settled coordinator transactions. outcome is
	// the lower-cased error kind, or "succeeded".
	TransactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transactions_total",
		Help:      "Settled terminal transactions by outcome",
	}, []string{"outcome"})

	PollAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "poll_attempts_total",
		Help:      "Timed payment status polls issued by coordinators",
	})

	GatewayCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gateway_calls_total",
		Help:      "Coordinator calls to the transaction gateway by operation and reply status",
	}, []string{"operation", "result"})

	TerminalCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "terminal_calls_total",
		Help:      "SOAP calls from the gateway backend to the ECR service",
	}, []string{"operation", "result"})

	PaymentAmount = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "payment_amount_omr",
		Help:      "Amounts sent to the terminal, in OMR",
		Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000},
	})
)

// Terminal simulator
var (
	ChaosFailureRate = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "chaos",
		Name:      "failure_enabled",
		Help:      "1 while random failure injection is on",
	}, []string{"service"})

	ChaosSlowMode = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "chaos",
		Name:      "slow_mode_enabled",
		Help:      "1 while slow responses are injected",
	}, []string{"service"})
)

// PrometheusMiddleware records count and latency of every request served by
// serviceName. Requests that match no route share the "unmatched" label.
func PrometheusMiddleware(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method

		RequestsTotal.WithLabelValues(serviceName, method, route, strconv.Itoa(c.Writer.Status())).Inc()
		RequestDuration.WithLabelValues(serviceName, method, route).Observe(time.Since(start).Seconds())
	}
}
