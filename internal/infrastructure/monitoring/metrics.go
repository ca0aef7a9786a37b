package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type HTTPMetrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

type DBMetrics struct {
	QueryDuration *prometheus.HistogramVec
}

type GatewayMetrics struct {
	AttemptsTotal  *prometheus.CounterVec
	FallbacksTotal *prometheus.CounterVec
	CallDuration   *prometheus.HistogramVec
}

type BusinessMetrics struct {
	CustomersSubscribedTotal prometheus.Counter
	LoanApplicationsTotal    prometheus.Counter
	LoanDecisionsTotal       *prometheus.CounterVec
	ScoreCallbacksTotal      *prometheus.CounterVec
	OutstandingScoreTokens   prometheus.Gauge
}

var (
	HTTP = HTTPMetrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loan_origination_http_requests_total",
				Help: "Total number of HTTP requests received.",
			},
			[]string{"method", "path", "code"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "loan_origination_http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "code"},
		),
	}

	DB = DBMetrics{
		QueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "loan_origination_db_query_duration_seconds",
				Help:    "Histogram of database query latencies.",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"query_name", "status"},
		),
	}

	Gateway = GatewayMetrics{
		AttemptsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loan_origination_gateway_attempts_total",
				Help: "Outbound calls to external systems, one per attempt.",
			},
			[]string{"system", "operation", "outcome"},
		),
		FallbacksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loan_origination_gateway_fallbacks_total",
				Help: "Operations answered with synthesized fallback data after exhausting retries.",
			},
			[]string{"operation"},
		),
		CallDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "loan_origination_gateway_call_duration_seconds",
				Help:    "End-to-end latency of gateway operations including retries.",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"system", "operation"},
		),
	}

	Business = BusinessMetrics{
		CustomersSubscribedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "loan_origination_customers_subscribed_total",
				Help: "Total number of customers successfully subscribed.",
			},
		),
		LoanApplicationsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "loan_origination_loan_applications_total",
				Help: "Total number of loan applications created.",
			},
		),
		LoanDecisionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loan_origination_loan_decisions_total",
				Help: "Loan decisions applied, by resulting status.",
			},
			[]string{"status"},
		),
		ScoreCallbacksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loan_origination_score_callbacks_total",
				Help: "Score callbacks processed, by outcome.",
			},
			[]string{"outcome"},
		),
		OutstandingScoreTokens: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "loan_origination_outstanding_score_tokens",
				Help: "Score tokens issued and not yet consumed or discarded.",
			},
		),
	}
)

func RecordHTTPRequest(method, path, code string, duration time.Duration) {
	HTTP.RequestsTotal.WithLabelValues(method, path, code).Inc()
	HTTP.RequestDuration.WithLabelValues(method, path, code).Observe(duration.Seconds())
}

func RecordDBQuery(queryName, status string, duration time.Duration) {
	DB.QueryDuration.WithLabelValues(queryName, status).Observe(duration.Seconds())
}

func RecordGatewayAttempt(system, operation, outcome string) {
	Gateway.AttemptsTotal.WithLabelValues(system, operation, outcome).Inc()
}

func RecordGatewayCall(system, operation string, duration time.Duration) {
	Gateway.CallDuration.WithLabelValues(system, operation).Observe(duration.Seconds())
}

func RecordFallback(operation string) {
	Gateway.FallbacksTotal.WithLabelValues(operation).Inc()
}

func RecordCustomerSubscribed() {
	Business.CustomersSubscribedTotal.Inc()
}

func RecordLoanApplication() {
	Business.LoanApplicationsTotal.Inc()
}

func RecordLoanDecision(status string) {
	Business.LoanDecisionsTotal.WithLabelValues(status).Inc()
}

func RecordScoreCallback(outcome string) {
	Business.ScoreCallbacksTotal.WithLabelValues(outcome).Inc()
}

func SetOutstandingScoreTokens(n int) {
	Business.OutstandingScoreTokens.Set(float64(n))
}
