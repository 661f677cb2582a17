package ml

import (
	"fmt"
	"math"
	"slices"

	"flight-delay/internal/features"
)

// Unknown category policies of the one-hot encoder.
const (
	HandleUnknownError  = "error"
	HandleUnknownIgnore = "ignore"
)

// NumericSpec describes the passthrough/scaling stage for numeric columns.
type NumericSpec struct {
	Features []string  `json:"features"`
	Scale    bool      `json:"scale"`
	Mean     []float64 `json:"mean,omitempty"`
	Std      []float64 `json:"std,omitempty"`
}

// CategoricalSpec describes the one-hot stage for categorical columns.
// Categories[i] holds the observed values of Features[i] in encoder order.
type CategoricalSpec struct {
	Features      []string   `json:"features"`
	Categories    [][]string `json:"categories"`
	HandleUnknown string     `json:"handle_unknown,omitempty"`
}

// PreprocessorSpec is the serialized form of the preprocessing stage.
type PreprocessorSpec struct {
	Numeric     NumericSpec     `json:"numeric"`
	Categorical CategoricalSpec `json:"categorical"`
}

// Preprocessor turns a record into the dense vector the classifier expects:
// numeric columns first, then one indicator block per categorical column.
type Preprocessor struct {
	spec  PreprocessorSpec
	index []map[string]int
	width int
}

// NewPreprocessor validates a spec and builds the category lookup tables.
func NewPreprocessor(spec PreprocessorSpec) (*Preprocessor, error) {
	probe := features.Record{}
	for _, name := range spec.Numeric.Features {
		if _, ok := probe.Numeric(name); !ok {
			return nil, fmt.Errorf("unknown numeric feature %q", name)
		}
	}
	if spec.Numeric.Scale {
		n := len(spec.Numeric.Features)
		if len(spec.Numeric.Mean) != n || len(spec.Numeric.Std) != n {
			return nil, fmt.Errorf("scaler expects %d means and stds, got %d and %d",
				n, len(spec.Numeric.Mean), len(spec.Numeric.Std))
		}
	}

	cat := spec.Categorical
	if len(cat.Categories) != len(cat.Features) {
		return nil, fmt.Errorf("encoder has %d category lists for %d features",
			len(cat.Categories), len(cat.Features))
	}
	switch cat.HandleUnknown {
	case "":
		spec.Categorical.HandleUnknown = HandleUnknownError
	case HandleUnknownError, HandleUnknownIgnore:
	default:
		return nil, fmt.Errorf("unsupported handle_unknown policy %q", cat.HandleUnknown)
	}

	p := &Preprocessor{
		spec:  spec,
		index: make([]map[string]int, len(cat.Features)),
		width: len(spec.Numeric.Features),
	}
	for i, name := range cat.Features {
		if _, ok := probe.Categorical(name); !ok {
			return nil, fmt.Errorf("unknown categorical feature %q", name)
		}
		p.index[i] = make(map[string]int, len(cat.Categories[i]))
		for j, value := range cat.Categories[i] {
			if _, dup := p.index[i][value]; dup {
				return nil, fmt.Errorf("duplicate category %q for feature %q", value, name)
			}
			p.index[i][value] = j
		}
		p.width += len(cat.Categories[i])
	}

	return p, nil
}

// Spec returns the serialized form of the preprocessor.
func (p *Preprocessor) Spec() PreprocessorSpec {
	return p.spec
}

// Width is the length of every transformed vector.
func (p *Preprocessor) Width() int {
	return p.width
}

// Transform encodes a single record.
func (p *Preprocessor) Transform(rec features.Record) ([]float64, error) {
	out := make([]float64, 0, p.width)

	num := p.spec.Numeric
	for i, name := range num.Features {
		v, _ := rec.Numeric(name)
		if num.Scale {
			std := num.Std[i]
			if std == 0 || math.IsNaN(std) {
				std = 1
			}
			v = (v - num.Mean[i]) / std
		}
		out = append(out, v)
	}

	cat := p.spec.Categorical
	for i, name := range cat.Features {
		value, _ := rec.Categorical(name)
		block := make([]float64, len(cat.Categories[i]))
		j, ok := p.index[i][value]
		if ok {
			block[j] = 1
		} else if cat.HandleUnknown == HandleUnknownError {
			return nil, fmt.Errorf("Found unknown categories ['%s'] in column %d during transform", value, i)
		}
		out = append(out, block...)
	}

	return out, nil
}

// FeatureNamesOut returns the numeric feature names followed by the one-hot
// expanded names, one per observed category in encoder order.
func (p *Preprocessor) FeatureNamesOut() []string {
	names := slices.Clone(p.spec.Numeric.Features)
	names = append(names, p.CategoricalNamesOut()...)
	return names
}

// CategoricalNamesOut returns only the expanded names of the one-hot block.
func (p *Preprocessor) CategoricalNamesOut() []string {
	cat := p.spec.Categorical
	var names []string
	for i, name := range cat.Features {
		for _, value := range cat.Categories[i] {
			names = append(names, name+"_"+value)
		}
	}
	return names
}
