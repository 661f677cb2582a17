package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"flight-delay/internal/client"
	"flight-delay/internal/common"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const usage = `Usage: flightctl [-url URL] [-timeout D] <command> [flags]

Commands:
  predict     Request a delay prediction for one flight
  model-info  Show the loaded model and its top features
  health      Check that the API is up
  recent      List recent predictions
`

func main() {
	var (
		baseURL = flag.String("url", envOrDefault(common.EnvAPIURL, common.DefaultAPIURL), "Base URL of the prediction API")
		timeout = flag.Duration("timeout", 5*time.Second, "Request timeout")
		verbose = flag.Bool("v", false, "Verbose logging")
	)
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	// Setup logging
	level := zerolog.WarnLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	c := client.New(*baseURL, *timeout)
	log.Debug().Str("url", *baseURL).Str("command", flag.Arg(0)).Msg("calling API")

	var (
		out interface{}
		err error
	)
	switch cmd, args := flag.Arg(0), flag.Args()[1:]; cmd {
	case "predict":
		out, err = runPredict(c, args)
	case "model-info":
		out, err = c.ModelInfo()
	case "health":
		out, err = c.Health()
	case "recent":
		out, err = runRecent(c, args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("request failed")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatal().Err(err).Msg("failed to write output")
	}
}

func runPredict(c *client.Client, args []string) (interface{}, error) {
	fs := flag.NewFlagSet("predict", flag.ExitOnError)
	var (
		raw               = fs.String("json", "", "Raw JSON object to send instead of the flags below")
		month             = fs.Int("month", 1, "Month (1-12)")
		carrier           = fs.String("carrier", "AA", "Carrier code")
		airport           = fs.String("airport", "ATL", "Airport code")
		arrFlights        = fs.Float64("arr-flights", 100, "Arriving flights")
		carrierDelay      = fs.Float64("carrier-delay", 0, "Carrier delay minutes")
		weatherDelay      = fs.Float64("weather-delay", 0, "Weather delay minutes")
		nasDelay          = fs.Float64("nas-delay", 0, "NAS delay minutes")
		securityDelay     = fs.Float64("security-delay", 0, "Security delay minutes")
		lateAircraftDelay = fs.Float64("late-aircraft-delay", 0, "Late aircraft delay minutes")
	)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *raw != "" {
		var input map[string]interface{}
		if err := json.Unmarshal([]byte(*raw), &input); err != nil {
			return nil, fmt.Errorf("invalid -json payload: %w", err)
		}
		return c.Predict(input)
	}

	return c.Predict(map[string]interface{}{
		"month":               *month,
		"carrier":             *carrier,
		"airport":             *airport,
		"arr_flights":         *arrFlights,
		"carrier_delay":       *carrierDelay,
		"weather_delay":       *weatherDelay,
		"nas_delay":           *nasDelay,
		"security_delay":      *securityDelay,
		"late_aircraft_delay": *lateAircraftDelay,
	})
}

func runRecent(c *client.Client, args []string) (interface{}, error) {
	fs := flag.NewFlagSet("recent", flag.ExitOnError)
	limit := fs.Int("limit", 0, "Number of predictions to list (server default when 0)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return c.Recent(*limit)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
