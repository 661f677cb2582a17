// Package storage provides the persistent prediction journal of the flight
// delay service. It uses BoltDB as the underlying storage engine and keeps
// every served prediction keyed by time, so recent activity survives restarts.
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"flight-delay/internal/ml"

	"github.com/rs/zerolog/log"
	"go.etcd.io/bbolt"
)

const (
	predictionsBucket = "predictions" // Bucket name for served predictions
	dbFileName        = "flight-delay.db"
)

// Store is the prediction journal. It implements ml.PredictionObserver and
// ml.JournalReader.
type Store struct {
	db         *bbolt.DB
	maxEntries int
}

// New opens (or creates) the journal under dataPath. maxEntries bounds the
// number of predictions kept; zero or less keeps everything.
func New(dataPath string, maxEntries int) (*Store, error) {
	if err := os.MkdirAll(dataPath, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	dbPath := filepath.Join(dataPath, dbFileName)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(predictionsBucket)); err != nil {
			return fmt.Errorf("create predictions bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, maxEntries: maxEntries}, nil
}

// Close closes the database connection gracefully.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func predictionKey(ev ml.PredictionEvent) []byte {
	// zero padded so lexical order is time order
	return []byte(fmt.Sprintf("%020d_%s", ev.Timestamp.UnixNano(), ev.ID))
}

// StorePrediction appends a served prediction and trims the journal to its
// configured size.
func (s *Store) StorePrediction(ev ml.PredictionEvent) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(predictionsBucket))

		data, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshal prediction: %w", err)
		}
		if err := b.Put(predictionKey(ev), data); err != nil {
			return err
		}

		if s.maxEntries <= 0 {
			return nil
		}
		var keys [][]byte
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		for i := 0; i < len(keys)-s.maxEntries; i++ {
			if err := b.Delete(keys[i]); err != nil {
				return fmt.Errorf("trim journal: %w", err)
			}
		}
		return nil
	})
}

// ObservePrediction journals a prediction. Write failures are logged, never
// propagated to the request that produced the prediction.
func (s *Store) ObservePrediction(ev ml.PredictionEvent) {
	if err := s.StorePrediction(ev); err != nil {
		log.Error().Err(err).Str("prediction_id", ev.ID).Msg("Failed to journal prediction")
	}
}

// Recent returns up to limit predictions, newest first.
func (s *Store) Recent(limit int) ([]ml.PredictionEvent, error) {
	events := []ml.PredictionEvent{}

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(predictionsBucket)).Cursor()
		for k, v := c.Last(); k != nil && len(events) < limit; k, v = c.Prev() {
			var ev ml.PredictionEvent
			if err := json.Unmarshal(v, &ev); err != nil {
				continue // Skip malformed records
			}
			events = append(events, ev)
		}
		return nil
	})

	return events, err
}

// GetPredictions retrieves predictions served within a time range, oldest
// first. The range is inclusive of both start and end.
func (s *Store) GetPredictions(start, end time.Time) ([]ml.PredictionEvent, error) {
	var events []ml.PredictionEvent

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(predictionsBucket)).Cursor()

		startKey := []byte(fmt.Sprintf("%020d", start.UnixNano()))
		endKey := []byte(fmt.Sprintf("%020d_\xff", end.UnixNano()))

		for k, v := c.Seek(startKey); k != nil && bytes.Compare(k, endKey) <= 0; k, v = c.Next() {
			var ev ml.PredictionEvent
			if err := json.Unmarshal(v, &ev); err != nil {
				continue
			}
			events = append(events, ev)
		}
		return nil
	})

	return events, err
}

// Count returns the number of journaled predictions.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(predictionsBucket)).ForEach(func(_, _ []byte) error {
			n++
			return nil
		})
	})
	return n, err
}
