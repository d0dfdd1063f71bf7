package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	// Database
	DatabaseURL string

	// Server
	ServerPort string

	// S3-compatible artifact storage
	S3Endpoint string
	S3Bucket   string
	S3Region   string

	// Grading engine
	EngineBaseURL string
	EngineModel   string
	EngineTimeout time.Duration

	// Review routing
	ReviewConfidenceThreshold float64

	// Worker pool
	GradingWorkers  int
	MaxJobAttempts  int
	StuckGradingAge time.Duration
}

// fileConfig mirrors Config for YAML decoding. Durations are strings in
// time.ParseDuration form ("120s", "15m"), matching the env variables.
// Absent keys stay nil so file values only override what they name.
type fileConfig struct {
	DatabaseURL               *string  `yaml:"database_url"`
	ServerPort                *string  `yaml:"server_port"`
	S3Endpoint                *string  `yaml:"s3_endpoint"`
	S3Bucket                  *string  `yaml:"s3_bucket"`
	S3Region                  *string  `yaml:"s3_region"`
	EngineBaseURL             *string  `yaml:"engine_base_url"`
	EngineModel               *string  `yaml:"engine_model"`
	EngineTimeout             *string  `yaml:"engine_timeout"`
	ReviewConfidenceThreshold *float64 `yaml:"review_confidence_threshold"`
	GradingWorkers            *int     `yaml:"grading_workers"`
	MaxJobAttempts            *int     `yaml:"max_job_attempts"`
	StuckGradingAge           *string  `yaml:"stuck_grading_age"`
}

// Load loads configuration from an optional YAML file (AI_GRADER_CONFIG)
// with environment variables taking precedence
func Load() *Config {
	cfg := &Config{
		DatabaseURL:               "postgres://localhost/ai_grader?sslmode=disable",
		ServerPort:                "8080",
		S3Endpoint:                "",
		S3Bucket:                  "ai-grader",
		S3Region:                  "us-east-1",
		EngineBaseURL:             "http://localhost:11434",
		EngineModel:               "llama3.2:3b",
		EngineTimeout:             120 * time.Second,
		ReviewConfidenceThreshold: 0.70,
		GradingWorkers:            4,
		MaxJobAttempts:            3,
		StuckGradingAge:           15 * time.Minute,
	}

	if path := os.Getenv("AI_GRADER_CONFIG"); path != "" {
		loadFile(path, cfg)
	}

	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.ServerPort = getEnv("SERVER_PORT", cfg.ServerPort)
	cfg.S3Endpoint = getEnv("S3_ENDPOINT", cfg.S3Endpoint)
	cfg.S3Bucket = getEnv("S3_BUCKET", cfg.S3Bucket)
	cfg.S3Region = getEnv("S3_REGION", cfg.S3Region)
	cfg.EngineBaseURL = getEnv("ENGINE_BASE_URL", cfg.EngineBaseURL)
	cfg.EngineModel = getEnv("ENGINE_MODEL", cfg.EngineModel)
	cfg.EngineTimeout = getEnvDuration("ENGINE_TIMEOUT", cfg.EngineTimeout)
	cfg.ReviewConfidenceThreshold = getEnvFloat("REVIEW_CONFIDENCE_THRESHOLD", cfg.ReviewConfidenceThreshold)
	cfg.GradingWorkers = getEnvInt("GRADING_WORKERS", cfg.GradingWorkers)
	cfg.MaxJobAttempts = getEnvInt("MAX_JOB_ATTEMPTS", cfg.MaxJobAttempts)
	cfg.StuckGradingAge = getEnvDuration("STUCK_GRADING_AGE", cfg.StuckGradingAge)

	return cfg
}

// loadFile applies the YAML file at path over cfg. A file that cannot be
// read or parsed is a startup error; so is a malformed duration value.
func loadFile(path string, cfg *Config) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("Failed to read config file %s: %v", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		log.Fatalf("Failed to parse config file %s: %v", path, err)
	}

	if fc.DatabaseURL != nil {
		cfg.DatabaseURL = *fc.DatabaseURL
	}
	if fc.ServerPort != nil {
		cfg.ServerPort = *fc.ServerPort
	}
	if fc.S3Endpoint != nil {
		cfg.S3Endpoint = *fc.S3Endpoint
	}
	if fc.S3Bucket != nil {
		cfg.S3Bucket = *fc.S3Bucket
	}
	if fc.S3Region != nil {
		cfg.S3Region = *fc.S3Region
	}
	if fc.EngineBaseURL != nil {
		cfg.EngineBaseURL = *fc.EngineBaseURL
	}
	if fc.EngineModel != nil {
		cfg.EngineModel = *fc.EngineModel
	}
	if fc.EngineTimeout != nil {
		cfg.EngineTimeout = parseFileDuration(path, "engine_timeout", *fc.EngineTimeout)
	}
	if fc.ReviewConfidenceThreshold != nil {
		cfg.ReviewConfidenceThreshold = *fc.ReviewConfidenceThreshold
	}
	if fc.GradingWorkers != nil {
		cfg.GradingWorkers = *fc.GradingWorkers
	}
	if fc.MaxJobAttempts != nil {
		cfg.MaxJobAttempts = *fc.MaxJobAttempts
	}
	if fc.StuckGradingAge != nil {
		cfg.StuckGradingAge = parseFileDuration(path, "stuck_grading_age", *fc.StuckGradingAge)
	}
}

func parseFileDuration(path, key, value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Fatalf("Invalid duration for %s in %s: %q", key, path, value)
	}
	return d
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		log.Printf("Invalid integer for %s: %q, using default", key, value)
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		log.Printf("Invalid float for %s: %q, using default", key, value)
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("Invalid duration for %s: %q, using default", key, value)
	}
	return defaultValue
}
