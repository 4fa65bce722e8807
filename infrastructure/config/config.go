package config

import (
	"fmt"
	"os"
	"strconv"
)

// ExtractionConfig holds the entity extraction service settings
type ExtractionConfig struct {
	// ServiceURL is the HTTP endpoint of the extraction service. Empty
	// selects the deterministic fixture extractor.
	ServiceURL string
	// TimeoutMS bounds one extraction call
	TimeoutMS int
	// MaxRetries is the per-request retry budget
	MaxRetries int
}

// EmbeddingConfig holds the embedding provider settings
type EmbeddingConfig struct {
	// Provider selects the embedder: "openai" or "local"
	Provider string
	// OpenAIAPIKey authenticates against the OpenAI embeddings API
	OpenAIAPIKey string
	// Model names the OpenAI embedding model
	Model string
	// Dimensions is the expected embedding width
	Dimensions int
}

// LedgerConfig holds the capability ledger settings
type LedgerConfig struct {
	// Mode selects the ledger: "static" grants owners access to their own
	// stores, "http" consults an external ledger service.
	Mode string
	// ServiceURL is the HTTP ledger endpoint, required in http mode
	ServiceURL string
	// TimeoutMS bounds one ledger check
	TimeoutMS int
}

// BlobConfig holds the raw-text archive settings
type BlobConfig struct {
	// Endpoint is the S3-compatible server address. Empty selects the
	// in-memory store.
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// RepairConfig holds the index repair sweep settings
type RepairConfig struct {
	// IntervalSeconds is the delay between sweeps
	IntervalSeconds int
	// BatchSize bounds one sweep
	BatchSize int
}

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string
	Environment   string

	// Persistence
	BadgerPath string

	// Authentication
	JWTSecret string
	JWTIssuer string

	// Logging
	LogLevel string

	// Feature flags
	EnableMetrics bool
	EnableTracing bool
	EnableCORS    bool

	// Tracing
	OTLPEndpoint string

	// DynamicConfigPath points at the hot-reloadable tuning file. Empty
	// disables the watcher and uses built-in defaults.
	DynamicConfigPath string

	Extraction ExtractionConfig
	Embedding  EmbeddingConfig
	Ledger     LedgerConfig
	Blob       BlobConfig
	Repair     RepairConfig
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),

		BadgerPath: getEnv("BADGER_PATH", "data/memories"),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTIssuer: getEnv("JWT_ISSUER", "engram"),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		EnableMetrics: getEnvBool("ENABLE_METRICS", true),
		EnableTracing: getEnvBool("ENABLE_TRACING", false),
		EnableCORS:    getEnvBool("ENABLE_CORS", true),

		OTLPEndpoint: getEnv("OTLP_ENDPOINT", "localhost:4317"),

		DynamicConfigPath: getEnv("DYNAMIC_CONFIG_PATH", ""),

		Extraction: ExtractionConfig{
			ServiceURL: getEnv("EXTRACTION_SERVICE_URL", ""),
			TimeoutMS:  getEnvInt("EXTRACTION_TIMEOUT_MS", 10000),
			MaxRetries: getEnvInt("EXTRACTION_MAX_RETRIES", 3),
		},
		Embedding: EmbeddingConfig{
			Provider:     getEnv("EMBEDDING_PROVIDER", "local"),
			OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
			Model:        getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			Dimensions:   getEnvInt("EMBEDDING_DIMENSIONS", 1536),
		},
		Ledger: LedgerConfig{
			Mode:       getEnv("LEDGER_MODE", "static"),
			ServiceURL: getEnv("LEDGER_SERVICE_URL", ""),
			TimeoutMS:  getEnvInt("LEDGER_TIMEOUT_MS", 2000),
		},
		Blob: BlobConfig{
			Endpoint:  getEnv("BLOB_ENDPOINT", ""),
			AccessKey: getEnv("BLOB_ACCESS_KEY", ""),
			SecretKey: getEnv("BLOB_SECRET_KEY", ""),
			Bucket:    getEnv("BLOB_BUCKET", "engram-memories"),
			UseSSL:    getEnvBool("BLOB_USE_SSL", false),
		},
		Repair: RepairConfig{
			IntervalSeconds: getEnvInt("REPAIR_INTERVAL_SECONDS", 60),
			BatchSize:       getEnvInt("REPAIR_BATCH_SIZE", 50),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load is an alias for LoadConfig
func Load() (*Config, error) {
	return LoadConfig()
}

// Validate checks that the required configuration is present
func (c *Config) Validate() error {
	if c.Environment == "production" {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if c.Embedding.Provider == "openai" && c.Embedding.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required with the openai embedding provider")
		}
	}
	if c.Ledger.Mode == "http" && c.Ledger.ServiceURL == "" {
		return fmt.Errorf("LEDGER_SERVICE_URL is required in http ledger mode")
	}
	if c.Blob.Endpoint != "" && (c.Blob.AccessKey == "" || c.Blob.SecretKey == "") {
		return fmt.Errorf("BLOB_ACCESS_KEY and BLOB_SECRET_KEY are required with a blob endpoint")
	}
	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
