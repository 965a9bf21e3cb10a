package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Catalog  CatalogConfig
	LLM      LLMConfig
	Pipeline PipelineConfig
	Ingest   IngestConfig
	Export   ExportConfig
}

// CatalogConfig holds product-catalog database configuration
type CatalogConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration

	FewshotPath string // sqlite file for the few-shot example cache
}

// LLMConfig holds extraction-capability configuration
type LLMConfig struct {
	BaseURL     string
	Model       string
	APIKey      string
	Temperature float32
	Timeout     time.Duration
	MaxAttempts int           // transport-level retries per call
	Backoff     time.Duration // base backoff between transport retries
}

// PipelineConfig holds the reconciliation thresholds.
// Defaults encode tuned behavior; change them only deliberately.
type PipelineConfig struct {
	RetryCeiling     int     // max OCR retry loops per invoice
	FuzzyNameRatio   float64 // dedup fuzzy-match floor
	ProductMatchMin  float64 // vector product-match floor
	ExampleMatchMin  float64 // few-shot example similarity floor
	ApproveBand      float64 // |1-ratio| below this -> APPROVE
	CorrectionCeil   float64 // ratio above this -> RETRY_OCR
	CorrectionFloor  float64 // ratio below this -> RETRY_OCR
	MRPHealthMin     float64 // fraction of items that must carry MRP
	AmountShiftFloor float64 // amount above this with low qty -> decimal shift
	RateShiftFloor   float64 // rate above this -> decimal shift
}

// IngestConfig holds directory-watch configuration
type IngestConfig struct {
	Roots       []string
	InitialScan bool
	Debounce    time.Duration
	Workers     int
	QueueSize   int
	JobTimeout  time.Duration
}

// ExportConfig holds ledger export configuration
type ExportConfig struct {
	Dir string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Catalog: CatalogConfig{
			DSN:             getEnv("CATALOG_DB_URL", ""),
			MaxConns:        getEnvAsInt32("CATALOG_DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt32("CATALOG_DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("CATALOG_DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("CATALOG_DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:     getEnvAsDuration("CATALOG_DB_DIAL_TIMEOUT", 3*time.Second),
			FewshotPath:     getEnv("FEWSHOT_CACHE_PATH", "./fewshot.db"),
		},
		LLM: LLMConfig{
			BaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			Temperature: getEnvAsFloat32("OPENAI_TEMPERATURE", 0.0),
			Timeout:     getEnvAsDuration("OPENAI_TIMEOUT", 90*time.Second),
			MaxAttempts: getEnvAsInt("OPENAI_MAX_ATTEMPTS", 3),
			Backoff:     getEnvAsDuration("OPENAI_BACKOFF", 2*time.Second),
		},
		Pipeline: PipelineConfig{
			RetryCeiling:     getEnvAsInt("PIPELINE_RETRY_CEILING", 2),
			FuzzyNameRatio:   getEnvAsFloat64("PIPELINE_FUZZY_NAME_RATIO", 0.94),
			ProductMatchMin:  getEnvAsFloat64("PIPELINE_PRODUCT_MATCH_MIN", 0.92),
			ExampleMatchMin:  getEnvAsFloat64("PIPELINE_EXAMPLE_MATCH_MIN", 0.80),
			ApproveBand:      getEnvAsFloat64("PIPELINE_APPROVE_BAND", 0.01),
			CorrectionCeil:   getEnvAsFloat64("PIPELINE_CORRECTION_CEIL", 1.30),
			CorrectionFloor:  getEnvAsFloat64("PIPELINE_CORRECTION_FLOOR", 0.70),
			MRPHealthMin:     getEnvAsFloat64("PIPELINE_MRP_HEALTH_MIN", 0.50),
			AmountShiftFloor: getEnvAsFloat64("PIPELINE_AMOUNT_SHIFT_FLOOR", 10000),
			RateShiftFloor:   getEnvAsFloat64("PIPELINE_RATE_SHIFT_FLOOR", 5000),
		},
		Ingest: IngestConfig{
			Roots:       splitList(getEnv("INGEST_ROOTS", "")),
			InitialScan: getEnvAsBool("INGEST_INITIAL_SCAN", true),
			Debounce:    getEnvAsDuration("INGEST_DEBOUNCE", 500*time.Millisecond),
			Workers:     getEnvAsInt("INGEST_WORKERS", 4),
			QueueSize:   getEnvAsInt("INGEST_QUEUE_SIZE", 256),
			JobTimeout:  getEnvAsDuration("INGEST_JOB_TIMEOUT", 5*time.Minute),
		},
		Export: ExportConfig{
			Dir: getEnv("EXPORT_DIR", "./ledger"),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, seg := range strings.Split(s, ",") {
		if seg = strings.TrimSpace(seg); seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

// ValidateConfig validates the loaded configuration
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required", ErrInvalidInput)
	}
	if c.Pipeline.RetryCeiling < 0 {
		return NewAppError("CONFIG_ERROR", "PIPELINE_RETRY_CEILING must be >= 0", ErrInvalidInput)
	}
	if c.Pipeline.CorrectionFloor >= 1 || c.Pipeline.CorrectionCeil <= 1 {
		return NewAppError("CONFIG_ERROR", "correction bands must straddle 1.0", ErrInvalidInput)
	}
	return nil
}
