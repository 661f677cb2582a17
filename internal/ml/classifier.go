package ml

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/dmitryikh/leaves"
	randomforest "github.com/malaschitz/randomForest"
)

// Classifier type names, as reported by model-info.
const (
	TypeRandomForest = "RandomForestClassifier"
	TypeLogistic     = "LogisticRegression"
	TypeBoosted      = "LGBMClassifier"
)

// Classifier is the second stage of the pipeline, operating on encoded vectors.
// PredictLabel and PredictProba are computed independently of each other.
type Classifier interface {
	Name() string
	PredictLabel(x []float64) (int, error)
	PredictProba(x []float64) ([]float64, error)
}

// importanceProvider is implemented by classifiers exposing per-feature importances.
type importanceProvider interface {
	FeatureImportances() []float64
}

// forestJSONPrecision is enough decimal places to round-trip a float64 split
// value or leaf probability without change.
const forestJSONPrecision = 17

func init() {
	randomforest.JSONNumbersPrecisionDecPlaces = forestJSONPrecision
}

type classifierArtifact struct {
	Type      string          `json:"type"`
	Forest    json.RawMessage `json:"forest,omitempty"`
	Coef      []float64       `json:"coef,omitempty"`
	Intercept float64         `json:"intercept,omitempty"`
	Model     string          `json:"model,omitempty"`
}

func decodeClassifier(a classifierArtifact) (Classifier, error) {
	switch a.Type {
	case TypeRandomForest:
		forest, err := decodeForest(a.Forest)
		if err != nil {
			return nil, err
		}
		return NewForestClassifier(forest), nil
	case TypeLogistic:
		return NewLogisticClassifier(a.Coef, a.Intercept), nil
	case TypeBoosted:
		return NewBoostedClassifier([]byte(a.Model))
	}
	return nil, fmt.Errorf("unsupported classifier type %q", a.Type)
}

// decodeForest unmarshals a serialized forest. The library follows node
// references without checking them, so a malformed forest panics; that is
// reported as an ordinary decode error.
func decodeForest(data json.RawMessage) (forest *randomforest.Forest, err error) {
	defer func() {
		if r := recover(); r != nil {
			forest, err = nil, fmt.Errorf("decode random forest: malformed forest: %v", r)
		}
	}()

	forest = &randomforest.Forest{}
	if err := json.Unmarshal(data, forest); err != nil {
		return nil, fmt.Errorf("decode random forest: %w", err)
	}
	if len(forest.Trees) == 0 {
		return nil, fmt.Errorf("decode random forest: forest has no trees")
	}
	return forest, nil
}

func encodeClassifier(c Classifier) (classifierArtifact, error) {
	switch clf := c.(type) {
	case *ForestClassifier:
		data, err := json.Marshal(clf.forest)
		if err != nil {
			return classifierArtifact{}, fmt.Errorf("encode random forest: %w", err)
		}
		return classifierArtifact{Type: TypeRandomForest, Forest: data}, nil
	case *LogisticClassifier:
		return classifierArtifact{Type: TypeLogistic, Coef: clf.coef, Intercept: clf.intercept}, nil
	case *BoostedClassifier:
		return classifierArtifact{Type: TypeBoosted, Model: string(clf.text)}, nil
	}
	return classifierArtifact{}, fmt.Errorf("classifier %s cannot be serialized", c.Name())
}

// ForestClassifier wraps a trained random forest.
type ForestClassifier struct {
	forest *randomforest.Forest
}

func NewForestClassifier(forest *randomforest.Forest) *ForestClassifier {
	return &ForestClassifier{forest: forest}
}

func (c *ForestClassifier) Name() string {
	return TypeRandomForest
}

func (c *ForestClassifier) votes(x []float64) ([]float64, error) {
	if c.forest.Features > 0 && len(x) != c.forest.Features {
		return nil, fmt.Errorf("X has %d features, but the forest expects %d", len(x), c.forest.Features)
	}
	votes := c.forest.Vote(x)
	if len(votes) != 2 {
		return nil, fmt.Errorf("expected 2 classes, forest voted for %d", len(votes))
	}
	return votes, nil
}

// PredictLabel returns the majority class of the tree votes.
func (c *ForestClassifier) PredictLabel(x []float64) (int, error) {
	votes, err := c.votes(x)
	if err != nil {
		return 0, err
	}
	if votes[1] > votes[0] {
		return 1, nil
	}
	return 0, nil
}

// PredictProba returns the share of trees voting for each class.
func (c *ForestClassifier) PredictProba(x []float64) ([]float64, error) {
	votes, err := c.votes(x)
	if err != nil {
		return nil, err
	}
	total := votes[0] + votes[1]
	if total <= 0 {
		return nil, fmt.Errorf("forest returned no votes")
	}
	return []float64{votes[0] / total, votes[1] / total}, nil
}

// FeatureImportances returns the forest importances normalized to sum to one.
func (c *ForestClassifier) FeatureImportances() []float64 {
	raw := c.forest.FeatureImportance
	if len(raw) == 0 {
		return nil
	}
	var sum float64
	for _, v := range raw {
		sum += v
	}
	out := make([]float64, len(raw))
	for i, v := range raw {
		if sum > 0 {
			out[i] = v / sum
		}
	}
	return out
}

// LogisticClassifier is a linear model with a sigmoid link.
type LogisticClassifier struct {
	coef      []float64
	intercept float64
}

func NewLogisticClassifier(coef []float64, intercept float64) *LogisticClassifier {
	return &LogisticClassifier{coef: coef, intercept: intercept}
}

func (c *LogisticClassifier) Name() string {
	return TypeLogistic
}

func (c *LogisticClassifier) decision(x []float64) (float64, error) {
	if len(x) != len(c.coef) {
		return 0, fmt.Errorf("X has %d features, but LogisticRegression is expecting %d features as input", len(x), len(c.coef))
	}
	z := c.intercept
	for i, w := range c.coef {
		z += w * x[i]
	}
	return z, nil
}

func (c *LogisticClassifier) PredictLabel(x []float64) (int, error) {
	z, err := c.decision(x)
	if err != nil {
		return 0, err
	}
	if z > 0 {
		return 1, nil
	}
	return 0, nil
}

func (c *LogisticClassifier) PredictProba(x []float64) ([]float64, error) {
	z, err := c.decision(x)
	if err != nil {
		return nil, err
	}
	p := sigmoid(z)
	return []float64{1 - p, p}, nil
}

// BoostedClassifier serves a LightGBM binary model. The raw ensemble yields
// margins for the hard label, the transformed one yields probabilities.
type BoostedClassifier struct {
	raw   *leaves.Ensemble
	proba *leaves.Ensemble
	text  []byte
}

// NewBoostedClassifier parses a LightGBM text model.
func NewBoostedClassifier(text []byte) (*BoostedClassifier, error) {
	raw, err := loadEnsemble(text, false)
	if err != nil {
		return nil, err
	}
	proba, err := loadEnsemble(text, true)
	if err != nil {
		return nil, err
	}
	return &BoostedClassifier{raw: raw, proba: proba, text: text}, nil
}

func loadEnsemble(text []byte, loadTransformation bool) (ens *leaves.Ensemble, err error) {
	defer func() {
		if r := recover(); r != nil {
			ens, err = nil, fmt.Errorf("load LightGBM model: malformed model: %v", r)
		}
	}()

	ens, err = leaves.LGEnsembleFromReader(bufio.NewReader(bytes.NewReader(text)), loadTransformation)
	if err != nil {
		return nil, fmt.Errorf("load LightGBM model: %w", err)
	}
	return ens, nil
}

func (c *BoostedClassifier) Name() string {
	return TypeBoosted
}

func (c *BoostedClassifier) check(x []float64) error {
	if n := c.raw.NFeatures(); len(x) != n {
		return fmt.Errorf("X has %d features, but the booster expects %d", len(x), n)
	}
	return nil
}

func (c *BoostedClassifier) PredictLabel(x []float64) (int, error) {
	if err := c.check(x); err != nil {
		return 0, err
	}
	if c.raw.PredictSingle(x, 0) > 0 {
		return 1, nil
	}
	return 0, nil
}

func (c *BoostedClassifier) PredictProba(x []float64) ([]float64, error) {
	if err := c.check(x); err != nil {
		return nil, err
	}
	p := c.proba.PredictSingle(x, 0)
	if math.IsNaN(p) || p < 0 || p > 1 {
		return nil, fmt.Errorf("booster returned invalid probability %f", p)
	}
	return []float64{1 - p, p}, nil
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}
