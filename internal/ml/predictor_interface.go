// Package ml serves flight delay predictions from a pre-trained pipeline.
// It includes the pipeline artifact loader with its classifier backends,
// the inference service with its model state machine, model introspection
// and the JSON HTTP API.
//
// The loaded pipeline is immutable and shared by all requests without locking.
package ml

import "flight-delay/internal/features"

// Predictor is a trained binary classifier over flight records.
// Implementations must be safe for concurrent use.
type Predictor interface {
	// Predict returns the hard label: 0 for on-time, 1 for delayed.
	Predict(rec features.Record) (int, error)

	// PredictProbabilities returns [P(on-time), P(delayed)].
	PredictProbabilities(rec features.Record) ([]float64, error)
}

// FeatureDescriber is implemented by predictors that can report their
// classifier stage and expanded input features.
type FeatureDescriber interface {
	// ClassifierType returns the name of the classifier stage.
	ClassifierType() string

	// DescribeFeatures returns the expanded feature names and, when the
	// classifier supports it, one importance per name. Importances is nil
	// when the classifier has no importance facility.
	DescribeFeatures() (*FeatureReport, error)
}

// FeatureReport is the raw outcome of pipeline introspection.
type FeatureReport struct {
	FeatureNames []string
	Importances  []float64
}
