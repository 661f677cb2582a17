package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"flight-delay/internal/ml"
	"flight-delay/internal/storage"
)

func main() {
	var (
		modelPath = flag.String("model", "models/flight_delay_model.json", "Pipeline artifact to inspect (empty to skip)")
		dataPath  = flag.String("data", "", "Journal directory to inspect (empty to skip)")
		since     = flag.Duration("since", 24*time.Hour, "Journal window to summarize")
		limit     = flag.Int("limit", 10, "Recent predictions to print")
	)
	flag.Parse()

	if *modelPath != "" {
		inspectModel(*modelPath)
	}
	if *dataPath != "" {
		inspectJournal(*dataPath, *since, *limit)
	}
}

func inspectModel(path string) {
	fmt.Printf("Inspecting model: %s\n", path)

	pipeline, err := ml.LoadPipeline(path)
	if err != nil {
		log.Fatalf("Failed to load pipeline: %v", err)
	}

	info := ml.Describe(pipeline)
	fmt.Printf("Version: %s, trained at: %s\n", pipeline.Version, pipeline.TrainedAt)
	fmt.Printf("Model type: %s\n", info.ModelType)
	fmt.Printf("Feature count: %d\n", info.FeatureCount)

	if len(info.TopFeatures) == 0 {
		fmt.Println("No feature importances available for this classifier.")
		return
	}
	fmt.Println("\nTop features:")
	for i, f := range info.TopFeatures {
		fmt.Printf("%2d. %-30s %.4f\n", i+1, f.Feature, f.Importance)
	}
}

func inspectJournal(dataPath string, since time.Duration, limit int) {
	fmt.Printf("\nInspecting journal in: %s\n", dataPath)

	// the journal is locked while the server runs; stop it first
	store, err := storage.New(dataPath, 0)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	count, err := store.Count()
	if err != nil {
		log.Fatalf("Failed to count predictions: %v", err)
	}
	fmt.Printf("Journaled predictions: %d\n", count)

	end := time.Now()
	window, err := store.GetPredictions(end.Add(-since), end)
	if err != nil {
		log.Fatalf("Failed to read predictions: %v", err)
	}
	delayed := 0
	for _, ev := range window {
		if ev.Result.Prediction == 1 {
			delayed++
		}
	}
	fmt.Printf("Last %v: %d predictions, %d delayed\n", since, len(window), delayed)

	recent, err := store.Recent(limit)
	if err != nil {
		log.Fatalf("Failed to fetch recent predictions: %v", err)
	}
	fmt.Println("\nRecent predictions:")
	for _, ev := range recent {
		printEvent(ev)
	}
}

func printEvent(ev ml.PredictionEvent) {
	fmt.Printf("%s  %-4s %-2s %-4s month=%-2d %-8s p=%.3f\n",
		ev.Timestamp.Format(time.RFC3339), ev.Source, ev.Input.Carrier, ev.Input.Airport,
		ev.Input.Month, ev.Result.DelayStatus, ev.Result.Probability)
}
