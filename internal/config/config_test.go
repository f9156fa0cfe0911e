package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Engine.MinSpeedMPS != 0.1 {
		t.Errorf("Engine.MinSpeedMPS = %v, want 0.1", cfg.Engine.MinSpeedMPS)
	}
	if len(cfg.Engine.RunTypes) != 4 {
		t.Errorf("Engine.RunTypes = %v, want 4 types", cfg.Engine.RunTypes)
	}
	if cfg.Worker.MaxAttempts != 5 {
		t.Errorf("Worker.MaxAttempts = %d, want 5", cfg.Worker.MaxAttempts)
	}
	if cfg.Worker.BaseDelay.Duration != 30*time.Second {
		t.Errorf("Worker.BaseDelay = %v, want 30s", cfg.Worker.BaseDelay)
	}
	if cfg.Server.Address != ":8080" {
		t.Errorf("Server.Address = %q, want %q", cfg.Server.Address, ":8080")
	}

	// Strava config should be empty by default
	if cfg.Strava.ClientID != "" {
		t.Errorf("Strava.ClientID should be empty, got %q", cfg.Strava.ClientID)
	}
	if len(cfg.Kafka.Brokers) != 0 {
		t.Errorf("Kafka.Brokers should be empty, got %v", cfg.Kafka.Brokers)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		errContains string
	}{
		{
			name:   "defaults",
			modify: func(*Config) {},
		},
		{
			name:        "negative min speed",
			modify:      func(c *Config) { c.Engine.MinSpeedMPS = -1 },
			errContains: "min_speed_mps",
		},
		{
			name:        "zero attempts",
			modify:      func(c *Config) { c.Worker.MaxAttempts = 0 },
			errContains: "max_attempts",
		},
		{
			name:        "negative lease",
			modify:      func(c *Config) { c.Worker.Lease = Duration{-time.Second} },
			errContains: "durations",
		},
		{
			name: "brokers without topic",
			modify: func(c *Config) {
				c.Kafka.Brokers = []string{"localhost:9092"}
				c.Kafka.Topic = ""
			},
			errContains: "kafka.topic",
		},
		{
			name:        "bad log format",
			modify:      func(c *Config) { c.Logging.Format = "xml" },
			errContains: "logging.format",
		},
		{
			name:        "bad log level",
			modify:      func(c *Config) { c.Logging.Level = "loud" },
			errContains: "logging.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()

			if tt.errContains == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q", tt.errContains)
			}
			if !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("Validate() error = %q, want it to contain %q", err.Error(), tt.errContains)
			}
		})
	}
}

func TestValidateStrava(t *testing.T) {
	tests := []struct {
		name        string
		strava      StravaConfig
		errContains string
	}{
		{"valid", StravaConfig{ClientID: "12345", ClientSecret: "abc123secret"}, ""},
		{"empty client ID", StravaConfig{ClientSecret: "abc123secret"}, "client_id"},
		{"placeholder client ID", StravaConfig{ClientID: "YOUR_CLIENT_ID", ClientSecret: "abc"}, "client_id"},
		{"placeholder secret", StravaConfig{ClientID: "12345", ClientSecret: "YOUR_CLIENT_SECRET"}, "client_secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Strava: tt.strava}
			err := cfg.ValidateStrava()
			if tt.errContains == "" {
				if err != nil {
					t.Errorf("ValidateStrava() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("ValidateStrava() error = %v, want it to contain %q", err, tt.errContains)
			}
		})
	}
}

func TestLoadFileAppliesDefaultsAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	raw := `{
		"strava": {"client_id": "1", "client_secret": "s"},
		"worker": {"poll_interval": "1s"},
		"logging": {"format": "json"}
	}`
	if err := os.WriteFile(path, []byte(raw), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PACELOAD_KAFKA_BROKERS", "a:9092, b:9092,")
	t.Setenv("PACELOAD_DB_PATH", "/tmp/paceload.db")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}

	if cfg.Worker.PollInterval.Duration != time.Second {
		t.Errorf("Worker.PollInterval = %v, want 1s", cfg.Worker.PollInterval)
	}
	if cfg.Worker.Lease.Duration != 5*time.Minute {
		t.Errorf("Worker.Lease = %v, want default 5m", cfg.Worker.Lease)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "info" {
		t.Errorf("Logging = %+v, want json/info", cfg.Logging)
	}
	if got := strings.Join(cfg.Kafka.Brokers, ","); got != "a:9092,b:9092" {
		t.Errorf("Kafka.Brokers = %q, want a:9092,b:9092", got)
	}
	if cfg.Database.Path != "/tmp/paceload.db" {
		t.Errorf("Database.Path = %q, want env override", cfg.Database.Path)
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	if !errors.Is(err, ErrNoConfig) {
		t.Errorf("LoadFile() error = %v, want ErrNoConfig", err)
	}
}

func TestSaveFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := DefaultConfig()
	cfg.Strava.ClientID = "42"

	if err := SaveFile(path, &cfg); err != nil {
		t.Fatalf("SaveFile() error: %v", err)
	}
	got, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if got.Strava.ClientID != "42" || got.Worker.BaseDelay != cfg.Worker.BaseDelay {
		t.Errorf("round trip = %+v", got)
	}
}

func TestDurationJSON(t *testing.T) {
	var d Duration
	if err := json.Unmarshal([]byte(`"90s"`), &d); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if d.Duration != 90*time.Second {
		t.Errorf("Duration = %v, want 1m30s", d.Duration)
	}
	if err := json.Unmarshal([]byte(`30`), &d); err == nil {
		t.Error("Unmarshal() of a number should fail")
	}

	out, err := json.Marshal(Duration{time.Minute})
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `"1m0s"` {
		t.Errorf("Marshal() = %s, want \"1m0s\"", out)
	}
}

func TestInitLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := InitLogger(LoggingConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown", "athlete_id", 7)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message logged at warn level: %s", out)
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &rec); err != nil {
		t.Fatalf("output is not one JSON record: %v: %s", err, out)
	}
	if rec["msg"] != "shown" || rec["athlete_id"] != float64(7) {
		t.Errorf("record = %v", rec)
	}
}
