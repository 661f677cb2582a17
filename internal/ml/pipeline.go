package ml

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"flight-delay/internal/features"
)

type pipelineArtifact struct {
	Version      string             `json:"version"`
	TrainedAt    time.Time          `json:"trained_at"`
	Preprocessor PreprocessorSpec   `json:"preprocessor"`
	Classifier   classifierArtifact `json:"classifier"`
}

// Pipeline is the trained two-stage model: a preprocessor feeding a classifier.
// It is never mutated after construction.
type Pipeline struct {
	Version   string
	TrainedAt time.Time

	pre *Preprocessor
	clf Classifier
}

// NewPipeline assembles a pipeline from its stages.
func NewPipeline(pre *Preprocessor, clf Classifier) *Pipeline {
	return &Pipeline{pre: pre, clf: clf}
}

// LoadPipeline reads a pipeline artifact from disk. Files ending in .gz or
// .gzip are decompressed first.
func LoadPipeline(path string) (*Pipeline, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open model file: %w", err)
	}
	defer file.Close()

	var reader io.Reader = file
	if strings.HasSuffix(path, ".gz") || strings.HasSuffix(path, ".gzip") {
		gzReader, err := gzip.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gzReader.Close()
		reader = gzReader
	}

	return DecodePipeline(reader)
}

// DecodePipeline reads a JSON pipeline artifact.
func DecodePipeline(r io.Reader) (*Pipeline, error) {
	var artifact pipelineArtifact
	if err := json.NewDecoder(r).Decode(&artifact); err != nil {
		return nil, fmt.Errorf("failed to decode model artifact: %w", err)
	}

	pre, err := NewPreprocessor(artifact.Preprocessor)
	if err != nil {
		return nil, fmt.Errorf("invalid preprocessor: %w", err)
	}
	clf, err := decodeClassifier(artifact.Classifier)
	if err != nil {
		return nil, fmt.Errorf("invalid classifier: %w", err)
	}

	p := NewPipeline(pre, clf)
	p.Version = artifact.Version
	p.TrainedAt = artifact.TrainedAt
	return p, nil
}

// Encode writes the pipeline as a JSON artifact.
func (p *Pipeline) Encode(w io.Writer) error {
	clf, err := encodeClassifier(p.clf)
	if err != nil {
		return err
	}
	artifact := pipelineArtifact{
		Version:      p.Version,
		TrainedAt:    p.TrainedAt,
		Preprocessor: p.pre.Spec(),
		Classifier:   clf,
	}
	return json.NewEncoder(w).Encode(artifact)
}

// SaveToFile writes the pipeline artifact, gzip-compressed when the path
// ends in .gz.
func (p *Pipeline) SaveToFile(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to save model to a file: %w", err)
	}
	defer file.Close()

	if strings.HasSuffix(path, ".gz") || strings.HasSuffix(path, ".gzip") {
		gzWriter := gzip.NewWriter(file)
		if err := p.Encode(gzWriter); err != nil {
			return fmt.Errorf("failed to save model to a file: %w", err)
		}
		return gzWriter.Close()
	}

	if err := p.Encode(file); err != nil {
		return fmt.Errorf("failed to save model to a file: %w", err)
	}
	return nil
}

func (p *Pipeline) Predict(rec features.Record) (int, error) {
	x, err := p.pre.Transform(rec)
	if err != nil {
		return 0, err
	}
	return p.clf.PredictLabel(x)
}

func (p *Pipeline) PredictProbabilities(rec features.Record) ([]float64, error) {
	x, err := p.pre.Transform(rec)
	if err != nil {
		return nil, err
	}
	return p.clf.PredictProba(x)
}

func (p *Pipeline) ClassifierType() string {
	return p.clf.Name()
}

// DescribeFeatures reports the expanded feature names and, for classifiers
// that have them, the matching importances.
func (p *Pipeline) DescribeFeatures() (*FeatureReport, error) {
	report := &FeatureReport{FeatureNames: p.pre.FeatureNamesOut()}

	ip, ok := p.clf.(importanceProvider)
	if !ok {
		return report, nil
	}
	importances := ip.FeatureImportances()
	if importances == nil {
		return report, nil
	}
	if len(importances) != len(report.FeatureNames) {
		return nil, fmt.Errorf("classifier has %d importances for %d features",
			len(importances), len(report.FeatureNames))
	}
	report.Importances = importances
	return report, nil
}
