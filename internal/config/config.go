package config

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"budgetpredictor/internal/model"
	"budgetpredictor/internal/repository"
)

// Config holds all configuration for the application
type Config struct {
	PostgreSQL PostgreSQLConfig
	Server     ServerConfig
	Model      ModelConfig
	Predict    PredictConfig
	Logging    LoggingConfig
}

// PostgreSQLConfig holds PostgreSQL database configuration
type PostgreSQLConfig struct {
	DSN                string // full connection string, preferred when set
	Host               string
	Port               int
	User               string
	Password           string
	Database           string
	SSLMode            string
	MaxConnections     int
	MaxIdleConnections int
	Enabled            bool
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Host           string
	GinMode        string
	AllowedOrigins string
}

// ModelConfig holds training and artifact configuration
type ModelConfig struct {
	ArtifactPath    string  `toml:"artifact_path"`
	Samples         int     `toml:"samples"`
	Seed            int64   `toml:"seed"`
	TestRatio       float64 `toml:"test_ratio"`
	NumTrees        int     `toml:"num_trees"`
	MaxDepth        int     `toml:"max_depth"`
	MinSamplesSplit int     `toml:"min_samples_split"`
	MinSamplesLeaf  int     `toml:"min_samples_leaf"`
	MaxFeatures     int     `toml:"max_features"`
}

// PredictConfig holds inference limits
type PredictConfig struct {
	MaxBatchSize int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// trainingFile is the TOML layout accepted by LoadTrainingFile.
type trainingFile struct {
	Model ModelConfig `toml:"model"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (optional)
	_ = godotenv.Load()

	defaults := model.DefaultHyperparameters()
	dsn := getEnv("DATABASE_URL", getEnv("POSTGRESQL_URI", getEnv("PG_DSN", "")))

	cfg := &Config{
		PostgreSQL: PostgreSQLConfig{
			DSN:                dsn,
			Host:               getEnv("PG_HOST", "localhost"),
			Port:               getEnvAsInt("PG_PORT", 5432),
			User:               getEnv("PG_USER", "postgres"),
			Password:           getEnv("PG_PASSWORD", ""),
			Database:           getEnv("PG_DATABASE", "construction_budget"),
			SSLMode:            getEnv("PG_SSLMODE", "disable"),
			MaxConnections:     getEnvAsInt("PG_MAX_CONNECTIONS", 25),
			MaxIdleConnections: getEnvAsInt("PG_MAX_IDLE_CONNECTIONS", 5),
			Enabled:            getEnvAsBool("PG_ENABLED", dsn != "" || os.Getenv("PG_HOST") != ""),
		},
		Server: ServerConfig{
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			GinMode:        getEnv("GIN_MODE", "release"),
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		Model: ModelConfig{
			ArtifactPath:    getEnv("MODEL_PATH", repository.DefaultArtifactPath),
			Samples:         getEnvAsInt("MODEL_SAMPLES", 2000),
			Seed:            int64(getEnvAsInt("MODEL_SEED", int(defaults.Seed))),
			TestRatio:       getEnvAsFloat("MODEL_TEST_RATIO", 0.2),
			NumTrees:        getEnvAsInt("MODEL_NUM_TREES", defaults.NumTrees),
			MaxDepth:        getEnvAsInt("MODEL_MAX_DEPTH", defaults.MaxDepth),
			MinSamplesSplit: getEnvAsInt("MODEL_MIN_SAMPLES_SPLIT", defaults.MinSamplesSplit),
			MinSamplesLeaf:  getEnvAsInt("MODEL_MIN_SAMPLES_LEAF", defaults.MinSamplesLeaf),
			MaxFeatures:     getEnvAsInt("MODEL_MAX_FEATURES", defaults.MaxFeatures),
		},
		Predict: PredictConfig{
			MaxBatchSize: getEnvAsInt("PREDICT_MAX_BATCH_SIZE", 1000),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			Output: getEnv("LOG_OUTPUT", "stdout"),
		},
	}

	if err := cfg.Model.Validate(); err != nil {
		return nil, err
	}
	if cfg.Predict.MaxBatchSize <= 0 {
		return nil, fmt.Errorf("PREDICT_MAX_BATCH_SIZE must be positive, got %d", cfg.Predict.MaxBatchSize)
	}

	return cfg, nil
}

// LoadTrainingFile overlays the [model] table of a TOML file onto mc.
// Keys absent from the file keep their current values; unknown keys are
// an error.
func LoadTrainingFile(path string, mc *ModelConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read training config: %w", err)
	}

	file := trainingFile{Model: *mc}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&file); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			keys := make([]string, 0, len(strict.Errors))
			for _, e := range strict.Errors {
				keys = append(keys, strings.Join(e.Key(), "."))
			}
			return fmt.Errorf("invalid training config %s: unknown keys %s", path, strings.Join(keys, ", "))
		}
		return fmt.Errorf("failed to parse training config %s: %w", path, err)
	}

	if err := file.Model.Validate(); err != nil {
		return err
	}
	*mc = file.Model
	return nil
}

// Validate checks that the model section describes a trainable run.
func (m ModelConfig) Validate() error {
	switch {
	case m.Samples <= 0:
		return fmt.Errorf("model samples must be positive, got %d", m.Samples)
	case m.NumTrees <= 0:
		return fmt.Errorf("model num_trees must be positive, got %d", m.NumTrees)
	case m.TestRatio <= 0 || m.TestRatio >= 1:
		return fmt.Errorf("model test_ratio must be in (0, 1), got %v", m.TestRatio)
	case m.MaxDepth < 0:
		return fmt.Errorf("model max_depth must not be negative, got %d", m.MaxDepth)
	case m.MinSamplesSplit < 2:
		return fmt.Errorf("model min_samples_split must be at least 2, got %d", m.MinSamplesSplit)
	case m.MinSamplesLeaf < 1:
		return fmt.Errorf("model min_samples_leaf must be at least 1, got %d", m.MinSamplesLeaf)
	case m.MaxFeatures < 0 || m.MaxFeatures > model.NumFeatures:
		return fmt.Errorf("model max_features must be in [0, %d], got %d", model.NumFeatures, m.MaxFeatures)
	case strings.TrimSpace(m.ArtifactPath) == "":
		return fmt.Errorf("model artifact path is empty")
	}
	return nil
}

// Hyperparameters returns the forest settings of the model section.
func (m ModelConfig) Hyperparameters() model.Hyperparameters {
	return model.Hyperparameters{
		NumTrees:        m.NumTrees,
		MaxDepth:        m.MaxDepth,
		MinSamplesSplit: m.MinSamplesSplit,
		MinSamplesLeaf:  m.MinSamplesLeaf,
		MaxFeatures:     m.MaxFeatures,
		Seed:            m.Seed,
	}
}

// GetPostgreSQLDSN returns PostgreSQL connection string
func (c *Config) GetPostgreSQLDSN() string {
	if c.PostgreSQL.DSN != "" {
		return c.PostgreSQL.DSN
	}

	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgreSQL.Host,
		c.PostgreSQL.Port,
		c.PostgreSQL.User,
		c.PostgreSQL.Password,
		c.PostgreSQL.Database,
		c.PostgreSQL.SSLMode,
	)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer value for %s, using default %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Warning: Invalid float value for %s, using default %f", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid boolean value for %s, using default %t", key, defaultValue)
		return defaultValue
	}
	return value
}
