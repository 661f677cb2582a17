package ml

import (
	"errors"
	"sync"

	"flight-delay/internal/features"
)

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu               sync.Mutex
	predictions      int
	failures         map[string]int
	latencySum       float64
	latencyCount     int
	anomalies        int
	modelLoaded      bool
	modelAge         float64
	predictionScores []float64
}

func (m *MockMetrics) MLPredictionsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions++
}

func (m *MockMetrics) MLFailuresInc(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures == nil {
		m.failures = make(map[string]int)
	}
	m.failures[kind]++
}

func (m *MockMetrics) MLLatencyObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencySum += v
	m.latencyCount++
}

func (m *MockMetrics) MLPredictionScoresObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictionScores = append(m.predictionScores, v)
}

func (m *MockMetrics) MLAnomaliesInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.anomalies++
}

func (m *MockMetrics) MLModelLoadedSet(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modelLoaded = v
}

func (m *MockMetrics) MLModelAgeSet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modelAge = v
}

// StubPredictor is a fixed-answer Predictor for tests of the serving layer.
type StubPredictor struct {
	Label       int
	Probs       []float64
	Err         error
	PanicOnCall bool
}

func (s *StubPredictor) Predict(rec features.Record) (int, error) {
	if s.PanicOnCall {
		panic("stub predictor exploded")
	}
	if s.Err != nil {
		return 0, s.Err
	}
	return s.Label, nil
}

func (s *StubPredictor) PredictProbabilities(rec features.Record) ([]float64, error) {
	if s.PanicOnCall {
		panic("stub predictor exploded")
	}
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Probs, nil
}

// StubDescriber is a StubPredictor that also reports features.
type StubDescriber struct {
	StubPredictor
	Type        string
	Report      *FeatureReport
	DescribeErr error
}

func (s *StubDescriber) ClassifierType() string {
	return s.Type
}

func (s *StubDescriber) DescribeFeatures() (*FeatureReport, error) {
	if s.DescribeErr != nil {
		return nil, s.DescribeErr
	}
	if s.Report == nil {
		return nil, errors.New("no report configured")
	}
	return s.Report, nil
}
