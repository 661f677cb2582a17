package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"flight-delay/internal/cfg"
	"flight-delay/internal/dashboard"
	"flight-delay/internal/metrics"
	"flight-delay/internal/ml"
	"flight-delay/internal/storage"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	setupLogging(c)

	// Initialize components
	m := metrics.New()
	mw := metrics.NewWrapper(m)

	store := initializeStorage(c)
	if store != nil {
		defer store.Close()
	}

	service := ml.LoadService(c.ModelPath, mw)

	opts := ml.ServerOptions{
		Host:           c.Host,
		Port:           c.Port,
		ReadTimeout:    c.ReadTimeout,
		WriteTimeout:   c.WriteTimeout,
		EnableCORS:     c.EnableCORS,
		JournalSize:    c.JournalSize,
		HTTPMetrics:    mw,
		MetricsHandler: m.Handler(),
	}
	// a nil *storage.Store must not end up inside the interface
	var journal ml.JournalReader
	if store != nil {
		journal = store
		opts.Journal = store
	}

	ms := ml.NewModelServer(service, opts)
	if store != nil {
		ms.AddObserver(store)
	}

	feed := dashboard.NewFeed(journal, c.JournalSize)
	ms.AddObserver(feed)
	if err := feed.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start prediction feed")
	}
	defer feed.Stop()

	dash, err := dashboard.New(ms, journal, feed, c.JournalSize)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build dashboard")
	}
	dash.ShowErrorRate(m.GetErrorRate)
	dash.Register(ms.Router())

	printBanner(ms, service)

	serverErr := make(chan error, 1)
	go func() {
		if err := ms.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	waitForShutdown(ms, m, serverErr)
}

func setupLogging(c cfg.Settings) {
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if c.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// initializeStorage opens the prediction journal if DATA_PATH is configured
func initializeStorage(c cfg.Settings) *storage.Store {
	if c.DataPath == "" {
		return nil
	}
	store, err := storage.New(c.DataPath, c.JournalSize)
	if err != nil {
		log.Warn().Err(err).Msg("storage initialization failed, continuing without prediction journal")
		return nil
	}
	return store
}

func printBanner(ms *ml.ModelServer, service *ml.InferenceService) {
	log.Info().Msg("Starting Flight Delay Prediction API...")
	log.Info().Str("addr", ms.Addr()).Msg("Available endpoints:")
	for _, ep := range []string{
		"  GET  /            - Prediction dashboard",
		"  POST /predict     - Make delay predictions",
		"  GET  /model-info  - Get model information",
		"  GET  /health      - Health check",
		"  GET  /api/predictions - Recent predictions",
		"  GET  /metrics     - Prometheus metrics",
	} {
		log.Info().Msg(ep)
	}

	if service.ModelLoaded() {
		log.Info().Str("model_path", service.ModelPath()).Msg("Model status: loaded")
	} else {
		log.Warn().Str("model_path", service.ModelPath()).Msg("Model status: not available")
	}
}

// waitForShutdown blocks until a signal arrives or the server fails, then
// drains in-flight requests.
func waitForShutdown(ms *ml.ModelServer, m *metrics.Metrics, serverErr <-chan error) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err, ok := <-serverErr:
		if ok && err != nil {
			log.Error().Err(err).Msg("model server failed")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ms.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().
		Float64("prediction_error_rate", m.GetErrorRate()).
		Msg("shutdown complete")
}
