// Package dashboard provides the interactive front end of the flight delay
// service: a prediction form rendered server side, the model summary, recent
// predictions and a WebSocket feed that streams new predictions live.
package dashboard

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"flight-delay/internal/common"
	"flight-delay/internal/features"
	"flight-delay/internal/ml"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// Result headlines shown after a form submission.
const (
	HeadlineDelayed = "Flight Likely to be Delayed"
	HeadlineOnTime  = "Flight Likely On-Time"
)

// ResultView is a prediction as shown on the page.
type ResultView struct {
	Delayed     bool
	Headline    string
	Probability string // probability of the predicted outcome, one decimal
	Label       string
}

// NewResultView renders a prediction for display.
func NewResultView(res *ml.PredictionResult) *ResultView {
	if res.Prediction == 1 {
		return &ResultView{
			Delayed:     true,
			Headline:    HeadlineDelayed,
			Label:       "Delay probability",
			Probability: fmt.Sprintf("%.1f%%", res.Probability*100),
		}
	}
	return &ResultView{
		Headline:    HeadlineOnTime,
		Label:       "On-time probability",
		Probability: fmt.Sprintf("%.1f%%", (1-res.Probability)*100),
	}
}

type pageData struct {
	Values      map[string]string
	Months      []int
	ModelLoaded bool
	ModelInfo   *ml.ModelInfo
	ErrorRate   *float64
	Result      *ResultView
	Error       string
	Recent      []ml.PredictionEvent
}

// Dashboard serves the interactive page.
type Dashboard struct {
	server      *ml.ModelServer
	journal     ml.JournalReader
	feed        *Feed
	recentLimit int
	errorRate   func() float64
	tmpl        *template.Template
}

// New creates a dashboard on top of the model server. journal and feed may
// be nil.
func New(server *ml.ModelServer, journal ml.JournalReader, feed *Feed, recentLimit int) (*Dashboard, error) {
	tmpl, err := template.New("dashboard").Funcs(template.FuncMap{
		"pct":      func(v float64) string { return fmt.Sprintf("%.1f%%", v*100) },
		"selected": selected,
	}).Parse(pageTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse dashboard template: %w", err)
	}
	if recentLimit <= 0 {
		recentLimit = 10
	}
	return &Dashboard{
		server:      server,
		journal:     journal,
		feed:        feed,
		recentLimit: recentLimit,
		tmpl:        tmpl,
	}, nil
}

// ShowErrorRate adds the prediction error rate reported by rate to the
// model card.
func (d *Dashboard) ShowErrorRate(rate func() float64) {
	d.errorRate = rate
}

// Register mounts the dashboard routes.
func (d *Dashboard) Register(r *mux.Router) {
	r.HandleFunc("/", d.handleDashboard).Methods(http.MethodGet)
	r.HandleFunc("/", d.handleSubmit).Methods(http.MethodPost)
	if d.feed != nil {
		r.HandleFunc("/ws", d.feed.handleWebSocket).Methods(http.MethodGet)
	}
}

func (d *Dashboard) handleDashboard(w http.ResponseWriter, r *http.Request) {
	data := d.basePage()
	for k, v := range features.FormDefaults {
		data.Values[k] = v
	}
	d.render(w, http.StatusOK, data)
}

func (d *Dashboard) handleSubmit(w http.ResponseWriter, r *http.Request) {
	data := d.basePage()

	if err := r.ParseForm(); err != nil {
		data.Error = "Invalid form submission"
		d.render(w, http.StatusBadRequest, data)
		return
	}

	raw := features.FromForm(r.PostForm)
	for k, v := range raw {
		data.Values[k] = fmt.Sprint(v)
	}

	if !data.ModelLoaded {
		data.Error = common.ErrMsgModelUnavailable
		d.render(w, http.StatusInternalServerError, data)
		return
	}

	rec, err := features.Assemble(raw)
	if err != nil {
		data.Error = err.Error()
		d.render(w, http.StatusBadRequest, data)
		return
	}

	res, err := d.server.PredictRecord(rec, ml.SourceForm)
	if err != nil {
		status, msg := ml.PredictErrorResponse(err)
		log.Error().Err(err).Msg("form prediction failed")
		data.Error = msg
		d.render(w, status, data)
		return
	}

	data.Result = NewResultView(res)
	data.Recent = d.recent()
	d.render(w, http.StatusOK, data)
}

func (d *Dashboard) basePage() *pageData {
	data := &pageData{
		Values:      make(map[string]string, len(features.RequiredFields)),
		Months:      []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
		ModelLoaded: d.server.Service().ModelLoaded(),
		Recent:      d.recent(),
	}
	if d.errorRate != nil {
		rate := d.errorRate()
		data.ErrorRate = &rate
	}
	if info, err := d.server.Service().Describe(); err == nil {
		data.ModelInfo = info
	} else if !errors.Is(err, ml.ErrModelUnavailable) {
		log.Warn().Err(err).Msg("Failed to describe model for dashboard")
	}
	return data
}

func (d *Dashboard) recent() []ml.PredictionEvent {
	if d.journal == nil {
		return nil
	}
	events, err := d.journal.Recent(d.recentLimit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read prediction journal")
		return nil
	}
	return events
}

func (d *Dashboard) render(w http.ResponseWriter, status int, data *pageData) {
	var buf bytes.Buffer
	if err := d.tmpl.Execute(&buf, data); err != nil {
		log.Error().Err(err).Msg("Failed to render dashboard")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		log.Debug().Err(err).Msg("Failed to write dashboard response")
	}
}

func selected(current string, month int) bool {
	return strings.TrimSpace(current) == fmt.Sprint(month)
}
