package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config represents the application configuration
type Config struct {
	Strava   StravaConfig   `json:"strava"`
	Engine   EngineConfig   `json:"engine"`
	Database DatabaseConfig `json:"database"`
	Worker   WorkerConfig   `json:"worker"`
	Server   ServerConfig   `json:"server"`
	Kafka    KafkaConfig    `json:"kafka"`
	Sentry   SentryConfig   `json:"sentry"`
	Logging  LoggingConfig  `json:"logging"`
	Ingest   IngestConfig   `json:"ingest"`
}

// StravaConfig holds Strava API credentials
type StravaConfig struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// EngineConfig controls zone classification
type EngineConfig struct {
	RunTypes    []string `json:"run_types"`
	MinSpeedMPS float64  `json:"min_speed_mps"`
}

// DatabaseConfig locates the SQLite database; empty means ~/.paceload/data.db
type DatabaseConfig struct {
	Path string `json:"path"`
}

// WorkerConfig tunes the recompute worker
type WorkerConfig struct {
	PollInterval Duration `json:"poll_interval"`
	MaxAttempts  int      `json:"max_attempts"`
	BaseDelay    Duration `json:"base_delay"`
	Lease        Duration `json:"lease"`
}

// ServerConfig holds the HTTP listener settings
type ServerConfig struct {
	Address string `json:"address"`
}

// KafkaConfig enables week events when brokers are set
type KafkaConfig struct {
	Brokers []string `json:"brokers"`
	Topic   string   `json:"topic"`
}

// SentryConfig enables error reporting when a DSN is set
type SentryConfig struct {
	DSN         string `json:"dsn"`
	Environment string `json:"environment"`
}

// LoggingConfig selects the log level and handler
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // text or json
}

// IngestConfig tunes sample fetching
type IngestConfig struct {
	MaxRetries     int      `json:"max_retries"`
	InitialBackoff Duration `json:"initial_backoff"`
	WeatherEnabled bool     `json:"weather_enabled"`
	WeatherURL     string   `json:"weather_url,omitempty"`
}

// Duration is a time.Duration written as a Go duration string ("30s").
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	if s == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// ErrNoConfig is returned when the config file doesn't exist
var ErrNoConfig = errors.New("config file not found")

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Engine: EngineConfig{
			RunTypes:    []string{"Run", "TrailRun", "VirtualRun", "Treadmill"},
			MinSpeedMPS: 0.1,
		},
		Worker: WorkerConfig{
			PollInterval: Duration{5 * time.Second},
			MaxAttempts:  5,
			BaseDelay:    Duration{30 * time.Second},
			Lease:        Duration{5 * time.Minute},
		},
		Server: ServerConfig{Address: ":8080"},
		Kafka:  KafkaConfig{Topic: "training_load.week_updated"},
		Sentry: SentryConfig{Environment: "development"},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Ingest: IngestConfig{
			MaxRetries:     3,
			InitialBackoff: Duration{500 * time.Millisecond},
			WeatherEnabled: true,
		},
	}
}

// Load reads the configuration from ~/.paceload/config.json
func Load() (*Config, error) {
	path, err := getConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads the configuration at path, fills defaults for missing values
// and applies PACELOAD_* environment overrides.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNoConfig
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	return &cfg, nil
}

// FromEnv returns the defaults with environment overrides, for running
// without a config file.
func FromEnv() *Config {
	cfg := DefaultConfig()
	cfg.applyEnv()
	return &cfg
}

func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if len(c.Engine.RunTypes) == 0 {
		c.Engine.RunTypes = defaults.Engine.RunTypes
	}
	if c.Engine.MinSpeedMPS == 0 {
		c.Engine.MinSpeedMPS = defaults.Engine.MinSpeedMPS
	}
	if c.Worker.PollInterval.Duration == 0 {
		c.Worker.PollInterval = defaults.Worker.PollInterval
	}
	if c.Worker.MaxAttempts == 0 {
		c.Worker.MaxAttempts = defaults.Worker.MaxAttempts
	}
	if c.Worker.BaseDelay.Duration == 0 {
		c.Worker.BaseDelay = defaults.Worker.BaseDelay
	}
	if c.Worker.Lease.Duration == 0 {
		c.Worker.Lease = defaults.Worker.Lease
	}
	if c.Server.Address == "" {
		c.Server.Address = defaults.Server.Address
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = defaults.Kafka.Topic
	}
	if c.Sentry.Environment == "" {
		c.Sentry.Environment = defaults.Sentry.Environment
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = defaults.Logging.Format
	}
	if c.Ingest.MaxRetries == 0 {
		c.Ingest.MaxRetries = defaults.Ingest.MaxRetries
	}
	if c.Ingest.InitialBackoff.Duration == 0 {
		c.Ingest.InitialBackoff = defaults.Ingest.InitialBackoff
	}
}

func (c *Config) applyEnv() {
	c.Database.Path = getEnv("PACELOAD_DB_PATH", c.Database.Path)
	c.Server.Address = getEnv("PACELOAD_HTTP_ADDRESS", c.Server.Address)
	c.Sentry.DSN = getEnv("PACELOAD_SENTRY_DSN", c.Sentry.DSN)
	c.Logging.Level = getEnv("PACELOAD_LOG_LEVEL", c.Logging.Level)
	c.Worker.MaxAttempts = getIntEnv("PACELOAD_WORKER_MAX_ATTEMPTS", c.Worker.MaxAttempts)
	if brokers := getEnv("PACELOAD_KAFKA_BROKERS", ""); brokers != "" {
		c.Kafka.Brokers = splitAndTrim(brokers)
	}
}

// Save writes the configuration to ~/.paceload/config.json
func Save(cfg *Config) error {
	path, err := getConfigPath()
	if err != nil {
		return err
	}
	return SaveFile(path, cfg)
}

// SaveFile writes the configuration to path
func SaveFile(path string, cfg *Config) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// CreateExample creates an example config file if none exists
func CreateExample() error {
	path, err := getConfigPath()
	if err != nil {
		return err
	}

	// Check if config already exists
	if _, err := os.Stat(path); err == nil {
		return nil // Config exists, don't overwrite
	}

	example := DefaultConfig()
	example.Strava = StravaConfig{
		ClientID:     "YOUR_CLIENT_ID",
		ClientSecret: "YOUR_CLIENT_SECRET",
	}

	return SaveFile(path, &example)
}

// Validate checks the values every command relies on.
func (c *Config) Validate() error {
	if c.Engine.MinSpeedMPS < 0 {
		return fmt.Errorf("engine.min_speed_mps must not be negative, got %v", c.Engine.MinSpeedMPS)
	}
	if c.Worker.MaxAttempts < 1 {
		return fmt.Errorf("worker.max_attempts must be at least 1, got %d", c.Worker.MaxAttempts)
	}
	if c.Worker.PollInterval.Duration < 0 || c.Worker.BaseDelay.Duration < 0 || c.Worker.Lease.Duration < 0 {
		return errors.New("worker durations must not be negative")
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return errors.New("kafka.topic is required when kafka.brokers is set")
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format)
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	return nil
}

// ValidateStrava checks the credentials needed to talk to Strava.
func (c *Config) ValidateStrava() error {
	if c.Strava.ClientID == "" || c.Strava.ClientID == "YOUR_CLIENT_ID" {
		return errors.New("strava.client_id is required - get it from https://www.strava.com/settings/api")
	}
	if c.Strava.ClientSecret == "" || c.Strava.ClientSecret == "YOUR_CLIENT_SECRET" {
		return errors.New("strava.client_secret is required - get it from https://www.strava.com/settings/api")
	}
	return nil
}

// getConfigPath returns the path to the config file
func getConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// GetConfigDir returns the path to the config directory
func GetConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".paceload"), nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
