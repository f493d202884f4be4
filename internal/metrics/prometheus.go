package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Prediction metrics
	PredictionRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refuge_prediction_requests_total",
			Help: "Total number of prediction requests",
		},
		[]string{"status"}, // status: success|invalid_input|unknown_category|not_ready|error
	)

	PredictionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "refuge_prediction_duration_seconds",
			Help:    "Prediction request duration in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)

	PredictedRate = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "refuge_predicted_rate",
			Help:    "Distribution of predicted acceptance rates (0-1 scale)",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	// Encoder reconciliation metrics
	ReconciliationMatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refuge_reconciliation_matches_total",
			Help: "Categorical value reconciliations by matching strategy",
		},
		[]string{"feature", "strategy"}, // strategy: exact|case_insensitive|alias|substring|none
	)

	// Confidence metrics
	ConfidenceSource = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refuge_confidence_source_total",
			Help: "Confidence interval computations by evidence source",
		},
		[]string{"source"}, // source: quantile|residuals|rmse
	)

	// Registry metrics
	ModelsLoaded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "refuge_models_loaded",
			Help: "Whether the model artifact registry is ready (1) or degraded (0)",
		},
	)

	// Audit log metrics
	AuditWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refuge_audit_writes_total",
			Help: "Prediction audit log writes",
		},
		[]string{"status"}, // status: success|error
	)
)

// Init registers all metrics with Prometheus
func Init() {
	prometheus.MustRegister(PredictionRequests)
	prometheus.MustRegister(PredictionDuration)
	prometheus.MustRegister(PredictedRate)
	prometheus.MustRegister(ReconciliationMatches)
	prometheus.MustRegister(ConfidenceSource)
	prometheus.MustRegister(ModelsLoaded)
	prometheus.MustRegister(AuditWrites)
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordPrediction records the outcome of a prediction request
func RecordPrediction(status string, duration time.Duration) {
	PredictionRequests.WithLabelValues(status).Inc()
	PredictionDuration.Observe(duration.Seconds())
}

// RecordAuditWrite records an audit log write attempt
func RecordAuditWrite(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	AuditWrites.WithLabelValues(status).Inc()
}
