package ml

import (
	"math/rand"
	"testing"

	"flight-delay/internal/features"

	randomforest "github.com/malaschitz/randomForest"
	"github.com/stretchr/testify/require"
)

var (
	testCarriers = []string{"AA", "DL", "UA"}
	testAirports = []string{"ATL", "JFK", "ORD"}
)

func testSpec(handleUnknown string) PreprocessorSpec {
	return PreprocessorSpec{
		Numeric: NumericSpec{Features: features.NumericFeatures},
		Categorical: CategoricalSpec{
			Features:      features.CategoricalFeatures,
			Categories:    [][]string{testCarriers, testAirports},
			HandleUnknown: handleUnknown,
		},
	}
}

func sampleRecord() features.Record {
	return features.Record{
		Month:             8,
		Carrier:           "AA",
		Airport:           "ATL",
		ArrFlights:        120,
		CarrierDelay:      30,
		WeatherDelay:      5,
		NASDelay:          2,
		SecurityDelay:     0,
		LateAircraftDelay: 10,
	}
}

// trainTestForest fits a small forest on synthetic flights where heavy
// carrier and late-aircraft delay minutes mean a delayed flight.
func trainTestForest(t *testing.T, pre *Preprocessor) *randomforest.Forest {
	t.Helper()

	rng := rand.New(rand.NewSource(42))
	var (
		xData [][]float64
		yData []int
	)
	for i := 0; i < 300; i++ {
		rec := features.Record{
			Month:             1 + rng.Intn(12),
			Carrier:           testCarriers[rng.Intn(len(testCarriers))],
			Airport:           testAirports[rng.Intn(len(testAirports))],
			ArrFlights:        float64(50 + rng.Intn(200)),
			CarrierDelay:      rng.Float64() * 60,
			WeatherDelay:      rng.Float64() * 20,
			NASDelay:          rng.Float64() * 20,
			SecurityDelay:     rng.Float64() * 2,
			LateAircraftDelay: rng.Float64() * 60,
		}
		x, err := pre.Transform(rec)
		require.NoError(t, err)

		label := 0
		if rec.CarrierDelay+rec.LateAircraftDelay > 60 {
			label = 1
		}
		xData = append(xData, x)
		yData = append(yData, label)
	}

	forest := &randomforest.Forest{}
	forest.Data = randomforest.ForestData{X: xData, Class: yData}
	forest.Train(25)
	return forest
}

func newForestPipeline(t *testing.T, handleUnknown string) *Pipeline {
	t.Helper()

	pre, err := NewPreprocessor(testSpec(handleUnknown))
	require.NoError(t, err)

	p := NewPipeline(pre, NewForestClassifier(trainTestForest(t, pre)))
	p.Version = "test"
	return p
}

func newLogisticPipeline(t *testing.T) *Pipeline {
	t.Helper()

	pre, err := NewPreprocessor(testSpec(HandleUnknownError))
	require.NoError(t, err)

	coef := make([]float64, pre.Width())
	coef[2] = 0.05 // carrier_delay
	coef[6] = 0.05 // late_aircraft_delay
	return NewPipeline(pre, NewLogisticClassifier(coef, -3))
}
