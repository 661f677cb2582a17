package common

// Environment variable keys
const (
	EnvConfigFile   = "CONFIG_FILE"
	EnvPort         = "PORT"
	EnvHost         = "HOST"
	EnvModelPath    = "MODEL_PATH"
	EnvDataPath     = "DATA_PATH"
	EnvReadTimeout  = "READ_TIMEOUT"
	EnvWriteTimeout = "WRITE_TIMEOUT"
	EnvEnableCORS   = "ENABLE_CORS"
	EnvJournalSize  = "JOURNAL_SIZE"
	EnvLogLevel     = "LOG_LEVEL"
	EnvLogFormat    = "LOG_FORMAT"
	EnvAPIURL       = "FLIGHTDELAY_URL"
)

// Configuration defaults
const (
	DefaultHost         = "0.0.0.0"
	DefaultPort         = 5000
	DefaultModelPath    = "models/flight_delay_model.json"
	DefaultReadTimeout  = "10s"
	DefaultWriteTimeout = "10s"
	DefaultJournalSize  = 50
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "json"
	DefaultAPIURL       = "http://localhost:5000"
)

// Prediction contract
const (
	// DelayThreshold is the probability above which a flight counts as delayed.
	DelayThreshold = 0.5
	// TopFeatureCount caps the feature importance list in model-info.
	TopFeatureCount = 10

	StatusDelayed = "Delayed"
	StatusOnTime  = "On-Time"
)

// Response messages
const (
	ErrMsgNoData           = "No data provided"
	ErrMsgBodyTooLarge     = "Request body too large"
	ErrMsgModelUnavailable = "Model not available. Please train the model first."
	ErrMsgModelInfo        = "Model not available"
	MsgModelReady          = "Model loaded and ready"
	MsgHealthy             = "Flight Delay Prediction API is running"
	HealthStatusHealthy    = "healthy"
)

// Validation constants
const (
	MinPort        = 1
	MaxPort        = 65535
	MinJournalSize = 1
	MaxJournalSize = 10000
)
