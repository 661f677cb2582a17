package cfg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"flight-delay/internal/common"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Settings struct {
	Host         string
	Port         int
	ModelPath    string
	DataPath     string // journal directory, journal disabled when empty
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	EnableCORS   bool
	JournalSize  int
	LogLevel     string
	LogFormat    string
}

type ConfigFile struct {
	Server struct {
		Host         string `yaml:"host"`
		Port         int    `yaml:"port"`
		ReadTimeout  string `yaml:"readTimeout"`
		WriteTimeout string `yaml:"writeTimeout"`
		EnableCORS   *bool  `yaml:"enableCORS"`
	} `yaml:"server"`

	Model struct {
		Path string `yaml:"path"`
	} `yaml:"model"`

	Storage struct {
		DataPath    string `yaml:"dataPath"`
		JournalSize int    `yaml:"journalSize"`
	} `yaml:"storage"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// Addr returns the listen address.
func (s Settings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func Load() (Settings, error) {
	// A .env file is optional; real environment variables win over it.
	_ = godotenv.Load()

	// Try to load from YAML file first
	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	// Fallback to environment variables
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	readTimeout, err := parseDurationOrDefault(config.Server.ReadTimeout, common.DefaultReadTimeout)
	if err != nil {
		return Settings{}, fmt.Errorf("invalid server.readTimeout: %w", err)
	}
	writeTimeout, err := parseDurationOrDefault(config.Server.WriteTimeout, common.DefaultWriteTimeout)
	if err != nil {
		return Settings{}, fmt.Errorf("invalid server.writeTimeout: %w", err)
	}

	enableCORS := true
	if config.Server.EnableCORS != nil {
		enableCORS = *config.Server.EnableCORS
	}

	// Override with environment variables if they exist
	settings := Settings{
		Host:         getEnvOrDefault(common.EnvHost, stringOr(config.Server.Host, common.DefaultHost)),
		Port:         getIntFromEnvOrConfig(common.EnvPort, config.Server.Port, common.DefaultPort),
		ModelPath:    getEnvOrDefault(common.EnvModelPath, stringOr(config.Model.Path, common.DefaultModelPath)),
		DataPath:     getEnvOrDefault(common.EnvDataPath, config.Storage.DataPath),
		ReadTimeout:  getDurationOrDefault(common.EnvReadTimeout, readTimeout),
		WriteTimeout: getDurationOrDefault(common.EnvWriteTimeout, writeTimeout),
		EnableCORS:   getBoolOrDefault(common.EnvEnableCORS, enableCORS),
		JournalSize:  getIntFromEnvOrConfig(common.EnvJournalSize, config.Storage.JournalSize, common.DefaultJournalSize),
		LogLevel:     getEnvOrDefault(common.EnvLogLevel, stringOr(config.Logging.Level, common.DefaultLogLevel)),
		LogFormat:    getEnvOrDefault(common.EnvLogFormat, stringOr(config.Logging.Format, common.DefaultLogFormat)),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	defaultRead, _ := time.ParseDuration(common.DefaultReadTimeout)
	defaultWrite, _ := time.ParseDuration(common.DefaultWriteTimeout)

	port, err := getIntStrict(common.EnvPort, common.DefaultPort)
	if err != nil {
		return Settings{}, err
	}
	journalSize, err := getIntStrict(common.EnvJournalSize, common.DefaultJournalSize)
	if err != nil {
		return Settings{}, err
	}

	settings := Settings{
		Host:         getEnvOrDefault(common.EnvHost, common.DefaultHost),
		Port:         port,
		ModelPath:    getEnvOrDefault(common.EnvModelPath, common.DefaultModelPath),
		DataPath:     os.Getenv(common.EnvDataPath), // optional
		ReadTimeout:  getDurationOrDefault(common.EnvReadTimeout, defaultRead),
		WriteTimeout: getDurationOrDefault(common.EnvWriteTimeout, defaultWrite),
		EnableCORS:   getBoolOrDefault(common.EnvEnableCORS, true),
		JournalSize:  journalSize,
		LogLevel:     getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
		LogFormat:    getEnvOrDefault(common.EnvLogFormat, common.DefaultLogFormat),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func stringOr(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func parseDurationOrDefault(v, def string) (time.Duration, error) {
	if v == "" {
		v = def
	}
	return time.ParseDuration(v)
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntStrict(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be an integer", key, v)
	}
	return i, nil
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

// validateSettings checks every value the server cannot start without.
func validateSettings(settings *Settings) error {
	if settings.Port < common.MinPort || settings.Port > common.MaxPort {
		return fmt.Errorf("port must be between %d and %d, got %d", common.MinPort, common.MaxPort, settings.Port)
	}
	if settings.ModelPath == "" {
		return fmt.Errorf("model path cannot be empty")
	}

	if settings.ReadTimeout < 100*time.Millisecond || settings.ReadTimeout > 5*time.Minute {
		return fmt.Errorf("read timeout must be between 100ms and 5m, got %v", settings.ReadTimeout)
	}
	if settings.WriteTimeout < 100*time.Millisecond || settings.WriteTimeout > 5*time.Minute {
		return fmt.Errorf("write timeout must be between 100ms and 5m, got %v", settings.WriteTimeout)
	}

	if settings.JournalSize < common.MinJournalSize || settings.JournalSize > common.MaxJournalSize {
		return fmt.Errorf("journal size must be between %d and %d, got %d",
			common.MinJournalSize, common.MaxJournalSize, settings.JournalSize)
	}

	switch strings.ToLower(settings.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log level must be one of debug, info, warn, error, got %q", settings.LogLevel)
	}
	switch settings.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("log format must be json or console, got %q", settings.LogFormat)
	}

	return nil
}
