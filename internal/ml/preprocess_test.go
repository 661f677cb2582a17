package ml

import (
	"testing"

	"flight-delay/internal/features"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreprocessor_TransformLayout(t *testing.T) {
	pre, err := NewPreprocessor(testSpec(HandleUnknownError))
	require.NoError(t, err)
	assert.Equal(t, 13, pre.Width())

	rec := sampleRecord()
	rec.Carrier = "DL"
	rec.Airport = "ORD"

	x, err := pre.Transform(rec)
	require.NoError(t, err)
	assert.Equal(t, []float64{
		8, 120, 30, 5, 2, 0, 10, // numeric passthrough
		0, 1, 0, // carrier one-hot
		0, 0, 1, // airport one-hot
	}, x)
}

func TestPreprocessor_Scaling(t *testing.T) {
	spec := testSpec(HandleUnknownError)
	spec.Numeric.Scale = true
	spec.Numeric.Mean = []float64{6, 100, 10, 0, 0, 0, 0}
	spec.Numeric.Std = []float64{2, 10, 10, 1, 1, 0, 5}

	pre, err := NewPreprocessor(spec)
	require.NoError(t, err)

	x, err := pre.Transform(sampleRecord())
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 2, 2, 5, 2, 0, 2}, x[:7], 1e-12)
}

func TestPreprocessor_FeatureNamesOut(t *testing.T) {
	pre, err := NewPreprocessor(testSpec(HandleUnknownError))
	require.NoError(t, err)

	names := pre.FeatureNamesOut()
	require.Len(t, names, 13)
	assert.Equal(t, features.NumericFeatures, names[:7])
	assert.Equal(t, []string{
		"carrier_AA", "carrier_DL", "carrier_UA",
		"airport_ATL", "airport_JFK", "airport_ORD",
	}, names[7:])
	assert.Equal(t, names[7:], pre.CategoricalNamesOut())
}

func TestPreprocessor_UnknownCategory(t *testing.T) {
	rec := sampleRecord()
	rec.Carrier = "ZZ"

	strict, err := NewPreprocessor(testSpec(""))
	require.NoError(t, err)
	_, err = strict.Transform(rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Found unknown categories ['ZZ'] in column 0")

	lenient, err := NewPreprocessor(testSpec(HandleUnknownIgnore))
	require.NoError(t, err)
	x, err := lenient.Transform(rec)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0}, x[7:10])
	assert.Equal(t, []float64{1, 0, 0}, x[10:13])
}

func TestNewPreprocessor_InvalidSpecs(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*PreprocessorSpec)
	}{
		{"unknown numeric", func(s *PreprocessorSpec) { s.Numeric.Features = []string{"distance"} }},
		{"categorical as numeric", func(s *PreprocessorSpec) { s.Numeric.Features = []string{"carrier"} }},
		{"scaler length", func(s *PreprocessorSpec) {
			s.Numeric.Scale = true
			s.Numeric.Mean = []float64{1}
		}},
		{"category lists", func(s *PreprocessorSpec) { s.Categorical.Categories = [][]string{{"AA"}} }},
		{"unknown categorical", func(s *PreprocessorSpec) { s.Categorical.Features = []string{"carrier", "origin"} }},
		{"duplicate category", func(s *PreprocessorSpec) { s.Categorical.Categories[0] = []string{"AA", "AA"} }},
		{"bad policy", func(s *PreprocessorSpec) { s.Categorical.HandleUnknown = "infrequent" }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			spec := testSpec(HandleUnknownError)
			spec.Categorical.Categories = [][]string{
				append([]string(nil), testCarriers...),
				append([]string(nil), testAirports...),
			}
			tc.mutate(&spec)

			_, err := NewPreprocessor(spec)
			assert.Error(t, err)
		})
	}
}
