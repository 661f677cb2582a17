package client

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"flight-delay/internal/ml"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAPI(t *testing.T, p ml.Predictor) *Client {
	t.Helper()
	ms := ml.NewModelServer(ml.NewService(p, nil), ml.ServerOptions{})
	srv := httptest.NewServer(ms.Handler())
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", time.Second)
}

func flight() map[string]interface{} {
	return map[string]interface{}{
		"month": 8, "carrier": "AA", "airport": "ATL", "arr_flights": 120,
		"carrier_delay": 30, "weather_delay": 5, "nas_delay": 2,
		"security_delay": 0, "late_aircraft_delay": 10,
	}
}

func TestClient_Predict(t *testing.T) {
	c := newAPI(t, &ml.StubPredictor{Label: 1, Probs: []float64{0.265, 0.735}})

	res, err := c.Predict(flight())
	require.NoError(t, err)
	assert.Equal(t, &ml.PredictionResult{
		Prediction:  1,
		Probability: 0.735,
		DelayStatus: "Delayed",
		Confidence:  "73.5%",
	}, res)
}

func TestClient_PredictValidationError(t *testing.T) {
	c := newAPI(t, &ml.StubPredictor{Probs: []float64{1, 0}})

	input := flight()
	delete(input, "airport")
	_, err := c.Predict(input)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "expected APIError, got %v", err)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Missing required field: airport", apiErr.Message)
}

func TestClient_ModelUnavailable(t *testing.T) {
	c := newAPI(t, nil)

	_, err := c.Predict(flight())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "Model not available. Please train the model first.", apiErr.Message)

	_, err = c.ModelInfo()
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Model not available", apiErr.Message)

	health, err := c.Health()
	require.NoError(t, err)
	assert.False(t, health.ModelLoaded)
	assert.Equal(t, "healthy", health.Status)
}

func TestClient_ModelInfo(t *testing.T) {
	c := newAPI(t, &ml.StubDescriber{
		Type: ml.TypeLogistic,
		Report: &ml.FeatureReport{
			FeatureNames: []string{"month", "carrier_AA"},
		},
	})

	info, err := c.ModelInfo()
	require.NoError(t, err)
	assert.Equal(t, ml.TypeLogistic, info.ModelType)
	assert.Zero(t, info.FeatureCount)
	assert.Empty(t, info.TopFeatures)
	assert.Equal(t, "Model loaded and ready", info.Status)
}

func TestClient_Recent(t *testing.T) {
	limits := make(chan string, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/predictions", r.URL.Path)
		limits <- r.URL.Query().Get("limit")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]ml.PredictionEvent{
			{ID: "b", Source: ml.SourceForm},
			{ID: "a", Source: ml.SourceAPI},
		})
	}))
	defer srv.Close()

	events, err := New(srv.URL, 0).Recent(2)
	require.NoError(t, err)
	assert.Equal(t, "2", <-limits)
	require.Len(t, events, 2)
	assert.Equal(t, "b", events[0].ID)

	_, err = New(srv.URL, 0).Recent(0)
	require.NoError(t, err)
	assert.Empty(t, <-limits)
}

func TestClient_NonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL, 0).Health()
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "upstream unavailable", apiErr.Message)
}

func TestClient_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url, 200*time.Millisecond).Health()
	require.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}
