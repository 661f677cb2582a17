package ml

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"flight-delay/internal/common"
	"flight-delay/internal/features"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validBody = `{"month": 8, "carrier": "AA", "airport": "ATL", "arr_flights": 120,
	"carrier_delay": 30, "weather_delay": 5, "nas_delay": 2,
	"security_delay": 0, "late_aircraft_delay": 10}`

type stubJournal struct {
	events []PredictionEvent
	err    error
	limit  int
}

func (j *stubJournal) ObservePrediction(ev PredictionEvent) {
	j.events = append([]PredictionEvent{ev}, j.events...)
}

func (j *stubJournal) Recent(limit int) ([]PredictionEvent, error) {
	j.limit = limit
	if j.err != nil {
		return nil, j.err
	}
	if limit < len(j.events) {
		return j.events[:limit], nil
	}
	return j.events, nil
}

type recordingHTTPMetrics struct {
	routes []string
	codes  []int
}

func (m *recordingHTTPMetrics) HTTPRequestObserve(route string, code int) {
	m.routes = append(m.routes, route)
	m.codes = append(m.codes, code)
}

func newTestServer(t *testing.T, p Predictor, opts ServerOptions) *ModelServer {
	t.Helper()
	return NewModelServer(NewService(p, &MockMetrics{}), opts)
}

func do(t *testing.T, ms *ModelServer, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ms.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestHandlePredict_Success(t *testing.T) {
	journal := &stubJournal{}
	ms := newTestServer(t, &StubPredictor{Label: 1, Probs: []float64{0.265, 0.735}}, ServerOptions{})
	ms.AddObserver(journal)

	rec := do(t, ms, http.MethodPost, "/predict", validBody)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var res PredictionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 1, res.Prediction)
	assert.InDelta(t, 0.735, res.Probability, 1e-12)
	assert.Equal(t, "Delayed", res.DelayStatus)
	assert.Equal(t, "73.5%", res.Confidence)

	require.Len(t, journal.events, 1)
	ev := journal.events[0]
	assert.Equal(t, SourceAPI, ev.Source)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, "AA", ev.Input.Carrier)
	assert.Equal(t, res, ev.Result)
}

func TestHandlePredict_MissingFields(t *testing.T) {
	ms := newTestServer(t, &StubPredictor{Probs: []float64{1, 0}}, ServerOptions{})

	for _, field := range features.RequiredFields {
		t.Run(field, func(t *testing.T) {
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal([]byte(validBody), &body))
			delete(body, field)
			data, err := json.Marshal(body)
			require.NoError(t, err)

			rec := do(t, ms, http.MethodPost, "/predict", string(data))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "Missing required field: "+field, decodeError(t, rec))
		})
	}
}

func TestHandlePredict_InvalidNumeric(t *testing.T) {
	ms := newTestServer(t, &StubPredictor{Probs: []float64{1, 0}}, ServerOptions{})

	body := strings.Replace(validBody, `"arr_flights": 120`, `"arr_flights": "abc"`, 1)
	rec := do(t, ms, http.MethodPost, "/predict", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec), "arr_flights")
}

func TestHandlePredict_NoData(t *testing.T) {
	ms := newTestServer(t, &StubPredictor{Probs: []float64{1, 0}}, ServerOptions{})

	for _, body := range []string{"", "{}", "null", "[1, 2]", "not json"} {
		rec := do(t, ms, http.MethodPost, "/predict", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
		assert.Equal(t, common.ErrMsgNoData, decodeError(t, rec))
	}
}

func TestHandlePredict_BodyTooLarge(t *testing.T) {
	ms := newTestServer(t, &StubPredictor{Probs: []float64{0.9, 0.1}}, ServerOptions{})

	body := `{"carrier":"` + strings.Repeat("A", MaxRequestBodyBytes) + `"}`
	rec := do(t, ms, http.MethodPost, "/predict", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, common.ErrMsgBodyTooLarge, decodeError(t, rec))
}

func TestHandlePredict_ModelUnavailable(t *testing.T) {
	ms := NewModelServer(NewService(nil, nil), ServerOptions{})

	rec := do(t, ms, http.MethodPost, "/predict", validBody)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, common.ErrMsgModelUnavailable, decodeError(t, rec))

	// availability is checked before validation
	rec = do(t, ms, http.MethodPost, "/predict", `{"month": 1}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandlePredict_PredictorError(t *testing.T) {
	ms := NewModelServer(NewService(newForestPipeline(t, HandleUnknownError), nil), ServerOptions{})

	body := strings.Replace(validBody, `"carrier": "AA"`, `"carrier": "XX"`, 1)
	rec := do(t, ms, http.MethodPost, "/predict", body)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	msg := decodeError(t, rec)
	assert.True(t, strings.HasPrefix(msg, "Prediction error: "), msg)
	assert.Contains(t, msg, "XX")
}

func TestPredictErrorResponse(t *testing.T) {
	status, msg := PredictErrorResponse(&features.MissingFieldError{Field: "month"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Missing required field: month", msg)

	status, msg = PredictErrorResponse(ErrModelUnavailable)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, common.ErrMsgModelUnavailable, msg)

	status, msg = PredictErrorResponse(&PredictionError{Err: errors.New("boom")})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Prediction error: boom", msg)
}

func TestHandleModelInfo(t *testing.T) {
	model := &StubDescriber{
		StubPredictor: StubPredictor{Probs: []float64{1, 0}},
		Type:          TypeRandomForest,
		Report: &FeatureReport{
			FeatureNames: []string{"month", "carrier_delay"},
			Importances:  []float64{0.25, 0.75},
		},
	}
	ms := newTestServer(t, model, ServerOptions{})

	rec := do(t, ms, http.MethodGet, "/model-info", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var info ModelInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, TypeRandomForest, info.ModelType)
	assert.Equal(t, 2, info.FeatureCount)
	assert.Equal(t, common.MsgModelReady, info.Status)
	assert.Equal(t, []FeatureImportanceEntry{
		{Feature: "carrier_delay", Importance: 0.75},
		{Feature: "month", Importance: 0.25},
	}, info.TopFeatures)
}

func TestHandleModelInfo_EmptyTopFeaturesIsArray(t *testing.T) {
	ms := newTestServer(t, &StubPredictor{}, ServerOptions{})

	rec := do(t, ms, http.MethodGet, "/model-info", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"top_features":[]`)
}

func TestHandleModelInfo_Unavailable(t *testing.T) {
	ms := NewModelServer(NewService(nil, nil), ServerOptions{})

	rec := do(t, ms, http.MethodGet, "/model-info", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, common.ErrMsgModelInfo, decodeError(t, rec))
}

func TestHandleHealth(t *testing.T) {
	testCases := []struct {
		name   string
		loaded bool
		ms     *ModelServer
	}{
		{"loaded", true, newTestServer(t, &StubPredictor{}, ServerOptions{})},
		{"unavailable", false, NewModelServer(NewService(nil, nil), ServerOptions{})},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, tc.ms, http.MethodGet, "/health", "")
			require.Equal(t, http.StatusOK, rec.Code)

			var health HealthStatus
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
			assert.Equal(t, HealthStatus{
				Status:      "healthy",
				ModelLoaded: tc.loaded,
				Message:     common.MsgHealthy,
			}, health)
		})
	}
}

func TestCORS(t *testing.T) {
	ms := newTestServer(t, &StubPredictor{}, ServerOptions{EnableCORS: true})

	preflight := httptest.NewRequest(http.MethodOptions, "/predict", nil)
	preflight.Header.Set("Origin", "https://example.com")
	preflight.Header.Set("Access-Control-Request-Method", http.MethodPost)
	preflight.Header.Set("Access-Control-Request-Headers", "Content-Type")
	rec := httptest.NewRecorder()
	ms.Handler().ServeHTTP(rec, preflight)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Content-Type", rec.Header().Get("Access-Control-Allow-Headers"))

	rejected := httptest.NewRequest(http.MethodOptions, "/predict", nil)
	rejected.Header.Set("Origin", "https://example.com")
	rejected.Header.Set("Access-Control-Request-Method", http.MethodDelete)
	rec = httptest.NewRecorder()
	ms.Handler().ServeHTTP(rec, rejected)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	get := httptest.NewRequest(http.MethodGet, "/health", nil)
	get.Header.Set("Origin", "https://example.com")
	rec = httptest.NewRecorder()
	ms.Handler().ServeHTTP(rec, get)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	plain := newTestServer(t, &StubPredictor{}, ServerOptions{})
	get = httptest.NewRequest(http.MethodGet, "/health", nil)
	get.Header.Set("Origin", "https://example.com")
	rec = httptest.NewRecorder()
	plain.Handler().ServeHTTP(rec, get)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHandleRecent(t *testing.T) {
	journal := &stubJournal{}
	ms := newTestServer(t, &StubPredictor{Label: 0, Probs: []float64{0.9, 0.1}},
		ServerOptions{Journal: journal, JournalSize: 5})
	ms.AddObserver(journal)

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, do(t, ms, http.MethodPost, "/predict", validBody).Code)
	}

	rec := do(t, ms, http.MethodGet, "/api/predictions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, journal.limit)
	var events []PredictionEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	assert.Len(t, events, 3)

	rec = do(t, ms, http.MethodGet, "/api/predictions?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	assert.Len(t, events, 2)

	rec = do(t, ms, http.MethodGet, "/api/predictions?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	journal.err = errors.New("bucket missing")
	rec = do(t, ms, http.MethodGet, "/api/predictions", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleRecent_NoJournal(t *testing.T) {
	ms := newTestServer(t, &StubPredictor{}, ServerOptions{})

	rec := do(t, ms, http.MethodGet, "/api/predictions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestInstrumentMiddleware(t *testing.T) {
	metrics := &recordingHTTPMetrics{}
	ms := newTestServer(t, &StubPredictor{}, ServerOptions{HTTPMetrics: metrics})

	do(t, ms, http.MethodGet, "/health", "")
	do(t, ms, http.MethodPost, "/predict", "{}")

	assert.Equal(t, []string{"/health", "/predict"}, metrics.routes)
	assert.Equal(t, []int{http.StatusOK, http.StatusBadRequest}, metrics.codes)
}

func TestRequestIDIsEchoed(t *testing.T) {
	ms := newTestServer(t, &StubPredictor{}, ServerOptions{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	ms.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}
