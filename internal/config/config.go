// Package config loads gamepilot configuration from environment variables
// with sensible defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all gamepilot configuration.
type Config struct {
	Loop     LoopConfig
	Learning LearningConfig
	Storage  StorageConfig
	Server   ServerConfig
	NATS     NATSConfig
	LogLevel string
}

// LoopConfig holds decision-loop timing parameters.
type LoopConfig struct {
	Mode              string
	GameID            string
	CycleInterval     time.Duration
	MinActionInterval time.Duration
	UserCooldown      time.Duration
	RepeatCooldown    time.Duration
	MaxSuggestions    int
	AutosaveInterval  time.Duration
}

// LearningConfig holds RL and meta-learning parameters.
type LearningConfig struct {
	StateSize         int
	ActionSize        int
	ForcedAlgorithm   int // -1 means performance-based selection
	AdaptiveParams    bool
	PersistMetaState  bool
	SampleWithoutRepl bool
	TransferForceNew  bool
}

// StorageConfig holds persistence locations.
type StorageConfig struct {
	ModelDir      string
	MetaStatePath string
	StagedDelete  bool
}

// ServerConfig holds the HTTP API configuration.
type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// NATSConfig holds event publishing configuration.
type NATSConfig struct {
	Enabled bool
	URL     string
	Subject string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Loop: LoopConfig{
			Mode:              getEnvString("MODE", "copilot"),
			GameID:            getEnvString("GAME_ID", "default"),
			CycleInterval:     getEnvDuration("CYCLE_INTERVAL", 2*time.Second),
			MinActionInterval: getEnvDuration("MIN_ACTION_INTERVAL", 500*time.Millisecond),
			UserCooldown:      getEnvDuration("USER_COOLDOWN", 3*time.Second),
			RepeatCooldown:    getEnvDuration("REPEAT_COOLDOWN", 5*time.Second),
			MaxSuggestions:    getEnvInt("MAX_SUGGESTIONS", 5),
			AutosaveInterval:  getEnvDuration("AUTOSAVE_INTERVAL", time.Minute),
		},
		Learning: LearningConfig{
			StateSize:         getEnvInt("STATE_SIZE", 12),
			ActionSize:        getEnvInt("ACTION_SIZE", 9),
			ForcedAlgorithm:   getEnvInt("FORCED_ALGORITHM", -1),
			AdaptiveParams:    getEnvBool("ADAPTIVE_PARAMS", true),
			PersistMetaState:  getEnvBool("PERSIST_META_STATE", false),
			SampleWithoutRepl: getEnvBool("SAMPLE_WITHOUT_REPLACEMENT", false),
			TransferForceNew:  getEnvBool("TRANSFER_FORCE_NEW", false),
		},
		Storage: StorageConfig{
			ModelDir:      getEnvString("MODEL_DIR", "models"),
			MetaStatePath: getEnvString("META_STATE_PATH", "meta_state.json"),
			StagedDelete:  getEnvBool("STAGED_DELETE", false),
		},
		Server: ServerConfig{
			Port:            getEnvInt("PORT", 8080),
			Host:            getEnvString("HOST", "0.0.0.0"),
			ReadTimeout:     getEnvDuration("READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvDuration("WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		NATS: NATSConfig{
			Enabled: getEnvBool("NATS_ENABLED", false),
			URL:     getEnvString("NATS_URL", "nats://localhost:4222"),
			Subject: getEnvString("NATS_SUBJECT", "gamepilot"),
		},
		LogLevel: getEnvString("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Loop.Mode != "auto" && c.Loop.Mode != "copilot" {
		return fmt.Errorf("invalid mode %q (want auto or copilot)", c.Loop.Mode)
	}
	if c.Loop.CycleInterval <= 0 {
		return fmt.Errorf("cycle interval must be positive")
	}
	if c.Learning.StateSize <= 0 || c.Learning.ActionSize <= 0 {
		return fmt.Errorf("state and action sizes must be positive")
	}
	if c.Loop.MaxSuggestions <= 0 {
		return fmt.Errorf("max suggestions must be positive")
	}
	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
