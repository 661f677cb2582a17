package ml

import (
	"errors"
	"fmt"
	"os"
	"time"

	"flight-delay/internal/common"
	"flight-delay/internal/features"

	"github.com/rs/zerolog/log"
)

// MetricsInterface defines metrics methods needed by the inference service
type MetricsInterface interface {
	MLPredictionsInc()
	MLFailuresInc(kind string)
	MLLatencyObserve(float64)
	MLPredictionScoresObserve(float64)
	MLAnomaliesInc()
	MLModelLoadedSet(bool)
	MLModelAgeSet(float64)
}

// ModelState is the lifecycle state of the predictor handle.
type ModelState int

const (
	StateUninitialized ModelState = iota
	StateLoaded
	StateUnavailable
)

func (s ModelState) String() string {
	switch s {
	case StateLoaded:
		return "loaded"
	case StateUnavailable:
		return "unavailable"
	}
	return "uninitialized"
}

// ErrModelUnavailable is returned for every request while no predictor is loaded.
var ErrModelUnavailable = errors.New("model not available")

// PredictionError wraps a failure raised by the predictor itself.
type PredictionError struct {
	Err error
}

func (e *PredictionError) Error() string {
	return fmt.Sprintf("prediction failed: %v", e.Err)
}

func (e *PredictionError) Unwrap() error {
	return e.Err
}

// PredictionResult is the response contract of a single prediction.
type PredictionResult struct {
	Prediction  int     `json:"prediction"`
	Probability float64 `json:"probability"`
	DelayStatus string  `json:"delay_status"`
	Confidence  string  `json:"confidence"`
}

// InferenceService owns the process-wide predictor handle. The handle is
// set once at construction and only read afterwards. The zero value is an
// uninitialized service that rejects every prediction.
type InferenceService struct {
	predictor Predictor
	state     ModelState
	loadErr   error
	modelPath string
	loadedAt  time.Time
	metrics   MetricsInterface
}

// NewService wraps an already loaded predictor. A nil predictor yields an
// unavailable service.
func NewService(p Predictor, metrics MetricsInterface) *InferenceService {
	s := &InferenceService{
		predictor: p,
		state:     StateLoaded,
		loadedAt:  time.Now(),
		metrics:   metrics,
	}
	if p == nil {
		s.state = StateUnavailable
		s.loadErr = ErrModelUnavailable
	}
	if metrics != nil {
		metrics.MLModelLoadedSet(s.state == StateLoaded)
	}
	return s
}

// LoadService loads the pipeline artifact at path. A missing or undecodable
// artifact leaves the service permanently unavailable; it is not an error.
func LoadService(path string, metrics MetricsInterface) *InferenceService {
	var modelCreated time.Time
	if info, err := os.Stat(path); err == nil {
		modelCreated = info.ModTime()
	}

	pipeline, err := LoadPipeline(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Warn().Str("model_path", path).Msg("Model file not found. Please train the model first.")
		} else {
			log.Error().Err(err).Str("model_path", path).Msg("Failed to load model")
		}
		s := NewService(nil, metrics)
		s.modelPath = path
		s.loadErr = err
		return s
	}

	s := NewService(pipeline, metrics)
	s.modelPath = path

	log.Info().
		Str("model_path", path).
		Str("classifier", pipeline.ClassifierType()).
		Str("version", pipeline.Version).
		Msg("Model loaded successfully")

	if metrics != nil && !modelCreated.IsZero() {
		metrics.MLModelAgeSet(time.Since(modelCreated).Seconds())
	}
	return s
}

// State returns the lifecycle state of the predictor handle.
func (s *InferenceService) State() ModelState {
	return s.state
}

// ModelLoaded reports whether predictions can be served.
func (s *InferenceService) ModelLoaded() bool {
	return s.state == StateLoaded && s.predictor != nil
}

// LoadError returns why the model is unavailable, if it is.
func (s *InferenceService) LoadError() error {
	return s.loadErr
}

// ModelPath returns the artifact path the service was loaded from.
func (s *InferenceService) ModelPath() string {
	return s.modelPath
}

// Predict runs the predictor on one record.
func (s *InferenceService) Predict(rec features.Record) (*PredictionResult, error) {
	if !s.ModelLoaded() {
		s.recordFailure("unavailable")
		return nil, ErrModelUnavailable
	}

	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.MLLatencyObserve(time.Since(start).Seconds())
		}
	}()

	probs, err := s.safeProbabilities(rec)
	if err != nil {
		s.recordFailure("predictor")
		return nil, &PredictionError{Err: err}
	}
	if len(probs) != 2 {
		s.recordFailure("predictor")
		return nil, &PredictionError{Err: fmt.Errorf("expected 2 probabilities, got %d", len(probs))}
	}
	probability := probs[1]
	if probability != probability || probability < 0 || probability > 1 {
		s.recordFailure("predictor")
		return nil, &PredictionError{Err: fmt.Errorf("invalid probability %f", probability)}
	}

	label, err := s.safeLabel(rec)
	if err != nil {
		s.recordFailure("predictor")
		return nil, &PredictionError{Err: err}
	}
	if label != 0 && label != 1 {
		s.recordFailure("predictor")
		return nil, &PredictionError{Err: fmt.Errorf("unexpected class label %d", label)}
	}

	if !LabelAgrees(label, probability) {
		log.Warn().
			Int("prediction", label).
			Float64("probability", probability).
			Interface("record", rec).
			Msg("Hard label disagrees with delay probability at the default threshold")
		if s.metrics != nil {
			s.metrics.MLAnomaliesInc()
		}
	}

	if s.metrics != nil {
		s.metrics.MLPredictionsInc()
		s.metrics.MLPredictionScoresObserve(probability)
	}

	log.Debug().
		Interface("record", rec).
		Int("prediction", label).
		Float64("probability", probability).
		Msg("Prediction successful")

	return NewPredictionResult(label, probability), nil
}

// NewPredictionResult derives the status and confidence fields.
func NewPredictionResult(prediction int, probability float64) *PredictionResult {
	res := &PredictionResult{
		Prediction:  prediction,
		Probability: probability,
	}
	if prediction == 1 {
		res.DelayStatus = common.StatusDelayed
		res.Confidence = fmt.Sprintf("%.1f%%", probability*100)
	} else {
		res.DelayStatus = common.StatusOnTime
		res.Confidence = fmt.Sprintf("%.1f%%", (1-probability)*100)
	}
	return res
}

// LabelAgrees reports whether a hard label is the one implied by the delay
// probability at the default threshold. A probability exactly on the
// threshold agrees with either label.
func LabelAgrees(prediction int, probability float64) bool {
	switch {
	case probability > common.DelayThreshold:
		return prediction == 1
	case probability < common.DelayThreshold:
		return prediction == 0
	}
	return true
}

func (s *InferenceService) safeProbabilities(rec features.Record) (probs []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("predictor panicked: %v", r)
		}
	}()
	return s.predictor.PredictProbabilities(rec)
}

func (s *InferenceService) safeLabel(rec features.Record) (label int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("predictor panicked: %v", r)
		}
	}()
	return s.predictor.Predict(rec)
}

func (s *InferenceService) recordFailure(kind string) {
	if s.metrics != nil {
		s.metrics.MLFailuresInc(kind)
	}
}
