package observability

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"route", "method"},
	)

	AIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_requests_total",
			Help: "Total number of completion requests by model and classified outcome",
		},
		[]string{"model", "outcome"},
	)
	AIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_request_duration_seconds",
			Help:    "Completion request duration in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		},
		[]string{"model"},
	)
	AITokenCeiling = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ai_token_ceiling",
			Help:    "Distribution of requested max_tokens per attempt",
			Buckets: []float64{800, 1200, 1600, 2000, 2500, 3000, 4000, 5000},
		},
	)
	AIRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_retries_total",
			Help: "Automatic re-invocations of the completion call by reason",
		},
		[]string{"reason"},
	)
	AIThrottledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ai_throttled_total",
			Help: "Completion calls denied locally by the shared token bucket",
		},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ai_circuit_breaker_state",
			Help: "Circuit breaker state per model (0 closed, 1 open, 2 half-open)",
		},
		[]string{"model"},
	)

	JSONRepairTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "json_repair_total",
			Help: "Model responses by the parsing stage that accepted them",
		},
		[]string{"stage"},
	)

	AnalysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analyses_total",
			Help: "Total number of analyses by document type and outcome",
		},
		[]string{"document_type", "outcome"},
	)
	VerdictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evaluation_verdicts_total",
			Help: "Evaluation verdicts by go/no-go label and whether the judge failed closed",
		},
		[]string{"go_nogo", "fail_closed"},
	)
	TextExtractionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "text_extractions_total",
			Help: "Document text extractions by source and outcome",
		},
		[]string{"source", "outcome"},
	)
	HeuristicCompleteness = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "heuristic_completeness",
			Help:    "Distribution of heuristic completeness scores [0,100]",
			Buckets: []float64{0, 15, 29, 43, 58, 72, 86, 100},
		},
	)
)

func InitMetrics() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(AIRequestsTotal)
	prometheus.MustRegister(AIRequestDuration)
	prometheus.MustRegister(AITokenCeiling)
	prometheus.MustRegister(AIRetriesTotal)
	prometheus.MustRegister(AIThrottledTotal)
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(JSONRepairTotal)
	prometheus.MustRegister(AnalysesTotal)
	prometheus.MustRegister(VerdictsTotal)
	prometheus.MustRegister(HeuristicCompleteness)
	prometheus.MustRegister(TextExtractionsTotal)
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		// Route pattern may be unavailable outside chi router; guard nil
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = r.URL.Path
		}
		method := r.Method
		status := ww.Status()
		HTTPRequestsTotal.WithLabelValues(route, method, http.StatusText(status)).Inc()
		HTTPRequestDuration.WithLabelValues(route, method).Observe(dur)
	})
}

// ObserveCompletion records one completion attempt.
func ObserveCompletion(model, outcome string, ceiling int, d time.Duration) {
	AIRequestsTotal.WithLabelValues(model, outcome).Inc()
	AIRequestDuration.WithLabelValues(model).Observe(d.Seconds())
	if ceiling > 0 {
		AITokenCeiling.Observe(float64(ceiling))
	}
}

// ObserveRetry records an automatic re-invocation.
func ObserveRetry(reason string) { AIRetriesTotal.WithLabelValues(reason).Inc() }

// ObserveThrottled records a call denied by the shared token bucket.
func ObserveThrottled() { AIThrottledTotal.Inc() }

// RecordCircuitBreakerStatus exports the state of a model's breaker.
func RecordCircuitBreakerStatus(model string, state int) {
	CircuitBreakerState.WithLabelValues(model).Set(float64(state))
}

// ObserveJSONRepair records which parsing stage accepted a response:
// "clean", "repaired" or "failed".
func ObserveJSONRepair(stage string) { JSONRepairTotal.WithLabelValues(stage).Inc() }

// ObserveAnalysis records the outcome of one analysis.
func ObserveAnalysis(documentType, outcome string) {
	AnalysesTotal.WithLabelValues(documentType, outcome).Inc()
}

// ObserveVerdict records an evaluation verdict.
func ObserveVerdict(goNoGo string, failClosed bool) {
	fc := "false"
	if failClosed {
		fc = "true"
	}
	VerdictsTotal.WithLabelValues(goNoGo, fc).Inc()
}

// ObserveHeuristics records a heuristic completeness score.
func ObserveHeuristics(completeness int) {
	if completeness >= 0 && completeness <= 100 {
		HeuristicCompleteness.Observe(float64(completeness))
	}
}

// ObserveExtraction records one document text extraction. Source is "plain"
// or "tika".
func ObserveExtraction(source, outcome string) {
	TextExtractionsTotal.WithLabelValues(source, outcome).Inc()
}
