package ml

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"flight-delay/internal/common"
	"flight-delay/internal/features"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// PredictionEvent is one served prediction, as journaled and streamed.
type PredictionEvent struct {
	ID        string           `json:"id"`
	Timestamp time.Time        `json:"timestamp"`
	Source    string           `json:"source"`
	Input     features.Record  `json:"input"`
	Result    PredictionResult `json:"result"`
}

// Prediction sources
const (
	SourceAPI  = "api"
	SourceForm = "form"
)

// PredictionObserver is notified after every successful prediction.
type PredictionObserver interface {
	ObservePrediction(ev PredictionEvent)
}

// JournalReader returns recently served predictions, newest first.
type JournalReader interface {
	Recent(limit int) ([]PredictionEvent, error)
}

// HTTPMetrics records served requests.
type HTTPMetrics interface {
	HTTPRequestObserve(route string, code int)
}

// HealthStatus is the health probe response.
type HealthStatus struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	Message     string `json:"message"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MaxRequestBodyBytes bounds the size of a prediction request body.
const MaxRequestBodyBytes = 1 << 20

// ServerOptions configures the model server.
type ServerOptions struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	EnableCORS     bool
	JournalSize    int
	Journal        JournalReader
	HTTPMetrics    HTTPMetrics
	MetricsHandler http.Handler
}

// ModelServer provides the HTTP API for flight delay predictions
type ModelServer struct {
	service   *InferenceService
	router    *mux.Router
	server    *http.Server
	opts      ServerOptions
	observers []PredictionObserver
}

// NewModelServer creates a new HTTP server for model serving
func NewModelServer(service *InferenceService, opts ServerOptions) *ModelServer {
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 10 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.JournalSize <= 0 {
		opts.JournalSize = common.DefaultJournalSize
	}

	ms := &ModelServer{
		service: service,
		router:  mux.NewRouter(),
		opts:    opts,
	}

	ms.router.Use(ms.requestIDMiddleware)
	if opts.HTTPMetrics != nil {
		ms.router.Use(ms.instrumentMiddleware)
	}
	if opts.EnableCORS {
		ms.router.Use(corsMiddleware())
	}

	ms.router.HandleFunc("/predict", ms.handlePredict).Methods(http.MethodPost, http.MethodOptions)
	ms.router.HandleFunc("/model-info", ms.handleModelInfo).Methods(http.MethodGet, http.MethodOptions)
	ms.router.HandleFunc("/health", ms.handleHealth).Methods(http.MethodGet, http.MethodOptions)
	ms.router.HandleFunc("/api/predictions", ms.handleRecent).Methods(http.MethodGet, http.MethodOptions)
	if opts.MetricsHandler != nil {
		ms.router.Handle("/metrics", opts.MetricsHandler).Methods(http.MethodGet)
	}

	ms.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		Handler:           ms.router,
		ReadHeaderTimeout: opts.ReadTimeout,
		ReadTimeout:       opts.ReadTimeout,
		WriteTimeout:      opts.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	return ms
}

// Router exposes the route table so presentation handlers can be mounted.
func (ms *ModelServer) Router() *mux.Router {
	return ms.router
}

// Handler returns the root HTTP handler.
func (ms *ModelServer) Handler() http.Handler {
	return ms.router
}

// Addr returns the listen address.
func (ms *ModelServer) Addr() string {
	return ms.server.Addr
}

// AddObserver registers a listener for served predictions. It must be
// called before Start.
func (ms *ModelServer) AddObserver(o PredictionObserver) {
	ms.observers = append(ms.observers, o)
}

// Start begins serving HTTP requests
func (ms *ModelServer) Start() error {
	log.Info().Str("addr", ms.server.Addr).Msg("starting model server")
	return ms.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (ms *ModelServer) Shutdown(ctx context.Context) error {
	return ms.server.Shutdown(ctx)
}

// Service returns the inference service behind the server.
func (ms *ModelServer) Service() *InferenceService {
	return ms.service
}

// PredictRecord serves one prediction and notifies observers on success.
func (ms *ModelServer) PredictRecord(rec features.Record, source string) (*PredictionResult, error) {
	res, err := ms.service.Predict(rec)
	if err != nil {
		return nil, err
	}

	ev := PredictionEvent{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    source,
		Input:     rec,
		Result:    *res,
	}
	for _, o := range ms.observers {
		o.ObservePrediction(ev)
	}
	return res, nil
}

func (ms *ModelServer) handlePredict(w http.ResponseWriter, r *http.Request) {
	if !ms.service.ModelLoaded() {
		writeError(w, http.StatusInternalServerError, common.ErrMsgModelUnavailable)
		return
	}

	var body interface{}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxRequestBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, common.ErrMsgBodyTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, common.ErrMsgNoData)
		return
	}
	raw, ok := body.(map[string]interface{})
	if !ok || len(raw) == 0 {
		writeError(w, http.StatusBadRequest, common.ErrMsgNoData)
		return
	}

	rec, err := features.Assemble(raw)
	if err != nil {
		log.Info().Err(err).Str("request_id", requestID(r)).Msg("rejected prediction request")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := ms.PredictRecord(rec, SourceAPI)
	if err != nil {
		status, msg := PredictErrorResponse(err)
		log.Error().Err(err).Str("request_id", requestID(r)).Msg("prediction failed")
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// PredictErrorResponse maps a prediction failure to its HTTP status and message.
func PredictErrorResponse(err error) (int, string) {
	var (
		missing  *features.MissingFieldError
		coercion *features.TypeCoercionError
		predErr  *PredictionError
	)
	switch {
	case errors.As(err, &missing), errors.As(err, &coercion):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, ErrModelUnavailable):
		return http.StatusInternalServerError, common.ErrMsgModelUnavailable
	case errors.As(err, &predErr):
		return http.StatusInternalServerError, fmt.Sprintf("Prediction error: %v", predErr.Err)
	}
	return http.StatusInternalServerError, fmt.Sprintf("Prediction error: %v", err)
}

func (ms *ModelServer) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	info, err := ms.service.Describe()
	if err != nil {
		if errors.Is(err, ErrModelUnavailable) {
			writeError(w, http.StatusInternalServerError, common.ErrMsgModelInfo)
			return
		}
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Error getting model info: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (ms *ModelServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthStatus{
		Status:      common.HealthStatusHealthy,
		ModelLoaded: ms.service.ModelLoaded(),
		Message:     common.MsgHealthy,
	})
}

func (ms *ModelServer) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := ms.opts.JournalSize
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", v))
			return
		}
		limit = n
	}

	events := []PredictionEvent{}
	if ms.opts.Journal != nil {
		recent, err := ms.opts.Journal.Recent(limit)
		if err != nil {
			log.Error().Err(err).Msg("failed to read prediction journal")
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("Error reading predictions: %v", err))
			return
		}
		events = append(events, recent...)
	}
	writeJSON(w, http.StatusOK, events)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

type requestIDKey struct{}

func requestID(r *http.Request) string {
	if id, ok := r.Context().Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

func (ms *ModelServer) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// corsMiddleware allows any origin to call the API, as browsers embedding
// the prediction widget do.
func corsMiddleware() mux.MiddlewareFunc {
	return handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "X-Request-ID"}),
		handlers.OptionStatusCode(http.StatusNoContent),
	)
}

func (ms *ModelServer) instrumentMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		ms.opts.HTTPMetrics.HTTPRequestObserve(route, rec.status)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// Hijack lets WebSocket upgrades pass through the recorder.
func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := sr.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	sr.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}
