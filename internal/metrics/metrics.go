// Package metrics holds the Prometheus collectors of the risk server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Predictions counts successful assessments by risk label.
	Predictions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardiocare_predictions_total",
			Help: "Successful risk assessments by predicted risk label",
		},
		[]string{"risk"},
	)

	// PredictionErrors counts failed assessments by error code.
	PredictionErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardiocare_prediction_errors_total",
			Help: "Failed risk assessments by error code",
		},
		[]string{"code"},
	)

	// RecordsAppended counts saved patient records per store backend.
	RecordsAppended = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardiocare_records_appended_total",
			Help: "Patient records appended to the record store",
		},
		[]string{"backend"},
	)

	// VerificationAttempts counts challenge and verify outcomes.
	VerificationAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardiocare_verification_attempts_total",
			Help: "Record access verification events by outcome",
		},
		[]string{"outcome"},
	)

	// ModelAvailable is 1 while a classifier is loaded.
	ModelAvailable = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cardiocare_model_available",
			Help: "Whether a classifier is loaded (1) or prediction is unavailable (0)",
		},
	)
)

// Verification outcomes
const (
	OutcomeChallenged = "challenged"
	OutcomeNotFound   = "not_found"
	OutcomeVerified   = "verified"
	OutcomeMismatch   = "mismatch"
)

func init() {
	_ = prometheus.Register(Predictions)
	_ = prometheus.Register(PredictionErrors)
	_ = prometheus.Register(RecordsAppended)
	_ = prometheus.Register(VerificationAttempts)
	_ = prometheus.Register(ModelAvailable)
}
