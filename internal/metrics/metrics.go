// Package metrics provides Prometheus metrics collection for the flight delay
// prediction service. It defines the inference, model and HTTP metrics that are
// exposed via the /metrics endpoint for monitoring and alerting.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the prediction service.
type Metrics struct {
	// Inference metrics
	Predictions        prometheus.Counter     // Total number of successful predictions
	PredictionErrors   *prometheus.CounterVec // Failed predictions by kind
	PredictionLatency  prometheus.Histogram   // End-to-end predictor latency
	DelayProbabilities prometheus.Histogram   // Distribution of served delay probabilities
	Anomalies          prometheus.Counter     // Hard labels disagreeing with the probability

	// Model metrics
	ModelLoaded prometheus.Gauge // 1 when a predictor is loaded
	ModelAge    prometheus.Gauge // Age of the model artifact in seconds

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec // Served requests by route and status code

	gatherer prometheus.Gatherer
}

// New creates and registers all Prometheus metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)

	gatherer := prometheus.DefaultGatherer
	if g, ok := registerer.(prometheus.Gatherer); ok {
		gatherer = g
	}

	return &Metrics{
		Predictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "flight_predictions_total",
			Help: "Total number of successful flight delay predictions",
		}),
		PredictionErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flight_prediction_errors_total",
			Help: "Total number of failed predictions by kind",
		}, []string{"kind"}),
		PredictionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "flight_prediction_latency_seconds",
			Help:    "Prediction latency in seconds (end-to-end)",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		DelayProbabilities: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "flight_delay_probability",
			Help:    "Distribution of served delay probabilities",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		Anomalies: factory.NewCounter(prometheus.CounterOpts{
			Name: "flight_prediction_anomalies_total",
			Help: "Total number of predictions whose label disagrees with the probability",
		}),
		ModelLoaded: factory.NewGauge(prometheus.GaugeOpts{
			Name: "flight_model_loaded",
			Help: "Whether a prediction model is loaded (1) or not (0)",
		}),
		ModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "flight_model_age_seconds",
			Help: "Age of the loaded model artifact in seconds",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests by route and status code",
		}, []string{"route", "code"}),
		gatherer: gatherer,
	}
}

// Handler serves the registry the metrics were created in.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// GetErrorRate returns the ratio of failed to attempted predictions, or 0 if
// nothing has been served yet.
func (m *Metrics) GetErrorRate() float64 {
	var served, failed float64

	metricFamilies, err := m.gatherer.Gather()
	if err != nil {
		return 0
	}

	for _, mf := range metricFamilies {
		switch mf.GetName() {
		case "flight_predictions_total":
			for _, metric := range mf.GetMetric() {
				served += metric.GetCounter().GetValue()
			}
		case "flight_prediction_errors_total":
			for _, metric := range mf.GetMetric() {
				failed += metric.GetCounter().GetValue()
			}
		}
	}

	if served+failed == 0 {
		return 0
	}
	return failed / (served + failed)
}
