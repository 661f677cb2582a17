package dashboard

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"flight-delay/internal/ml"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Feed message types
const (
	MessageSnapshot   = "snapshot"
	MessagePrediction = "prediction"
)

// FeedMessage is one WebSocket frame sent to dashboard clients.
type FeedMessage struct {
	Type        string               `json:"type"`
	Prediction  *ml.PredictionEvent  `json:"prediction,omitempty"`
	Predictions []ml.PredictionEvent `json:"predictions,omitempty"`
}

// Feed streams served predictions to connected dashboard clients. It
// implements ml.PredictionObserver.
type Feed struct {
	journal          ml.JournalReader
	snapshotSize     int
	upgrader         websocket.Upgrader
	clients          map[*websocket.Conn]bool
	clientsMu        sync.Mutex
	broadcastChannel chan ml.PredictionEvent
	stopChannel      chan struct{}
	isRunning        bool
	mu               sync.Mutex
}

// NewFeed creates a feed. New clients first receive up to snapshotSize
// journaled predictions; journal may be nil.
func NewFeed(journal ml.JournalReader, snapshotSize int) *Feed {
	return &Feed{
		journal:          journal,
		snapshotSize:     snapshotSize,
		upgrader:         websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		clients:          make(map[*websocket.Conn]bool),
		broadcastChannel: make(chan ml.PredictionEvent, 100),
	}
}

// Start launches the broadcaster.
func (f *Feed) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.isRunning {
		return fmt.Errorf("prediction feed is already running")
	}
	// a stopped feed has a closed stop channel
	f.stopChannel = make(chan struct{})
	go f.clientBroadcaster(f.stopChannel)
	f.isRunning = true
	return nil
}

// Stop halts the broadcaster and disconnects every client.
func (f *Feed) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.isRunning {
		return
	}
	close(f.stopChannel)

	f.clientsMu.Lock()
	for client := range f.clients {
		client.Close()
	}
	f.clients = make(map[*websocket.Conn]bool)
	f.clientsMu.Unlock()

	f.isRunning = false
	log.Info().Msg("Prediction feed stopped")
}

// ObservePrediction queues a prediction for broadcast. It never blocks the
// request that produced it.
func (f *Feed) ObservePrediction(ev ml.PredictionEvent) {
	select {
	case f.broadcastChannel <- ev:
	default:
		log.Warn().Str("prediction_id", ev.ID).Msg("Prediction feed full, dropping update")
	}
}

// ClientCount returns the number of connected clients.
func (f *Feed) ClientCount() int {
	f.clientsMu.Lock()
	defer f.clientsMu.Unlock()
	return len(f.clients)
}

func (f *Feed) clientBroadcaster(stop <-chan struct{}) {
	for {
		select {
		case ev := <-f.broadcastChannel:
			f.broadcastToClients(FeedMessage{Type: MessagePrediction, Prediction: &ev})
		case <-stop:
			return
		}
	}
}

func (f *Feed) broadcastToClients(msg FeedMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal prediction for broadcast")
		return
	}

	f.clientsMu.Lock()
	defer f.clientsMu.Unlock()

	for client := range f.clients {
		if err := client.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Debug().Err(err).Msg("Dropping WebSocket client")
			client.Close()
			delete(f.clients, client)
		}
	}
}

func (f *Feed) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	snapshot := FeedMessage{Type: MessageSnapshot, Predictions: []ml.PredictionEvent{}}
	if f.journal != nil && f.snapshotSize > 0 {
		if recent, err := f.journal.Recent(f.snapshotSize); err == nil {
			snapshot.Predictions = recent
		} else {
			log.Error().Err(err).Msg("Failed to read prediction journal for snapshot")
		}
	}

	// The snapshot is written before registering so it cannot interleave
	// with a broadcast on the same connection.
	if data, err := json.Marshal(snapshot); err == nil {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}

	f.clientsMu.Lock()
	f.clients[conn] = true
	f.clientsMu.Unlock()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	f.clientsMu.Lock()
	delete(f.clients, conn)
	f.clientsMu.Unlock()
}
