package common

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Backend    BackendConfig
	Resilience ResilienceConfig
	OCR        OCRConfig
	Patterns   PatternsConfig
	Database   DatabaseConfig
	Storage    StorageConfig
	Queue      QueueConfig
	Log        LogConfig
}

// ServerConfig holds listener configuration
type ServerConfig struct {
	HTTPAddr        string
	GRPCAddr        string
	Environment     string
	ShutdownTimeout time.Duration
	MaxUploadBytes  int64
}

// BackendConfig describes the external action endpoint.
type BackendConfig struct {
	URL           string
	AuthToken     string
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
}

// ResilienceConfig tunes retries and the circuit breaker around backend actions.
type ResilienceConfig struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryAfterCap       time.Duration
	BreakerEnabled      bool
	BreakerMinRequests  uint32
	BreakerFailureRatio float64
	BreakerOpenTimeout  time.Duration
}

// OCRConfig holds local OCR configuration
type OCRConfig struct {
	Tesseract    string
	Pdftotext    string
	Pdftoppm     string
	Lang         string
	DPI          int
	MaxPages     int
	TessdataDir  string
	PDFMode      string // "poppler" | "native"
	EnablePDF    bool
	CaptureWords bool

	// HeicConverter is "magick", "heif-convert" or "sips".
	HeicConverter string
}

type PatternsConfig struct {
	JurisdictionsFile string
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string // "postgres" | "sqlite" | "" (disabled)
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

type StorageConfig struct {
	Type           string // "none" | "local" | "gcs"
	LocalPath      string
	GCSBucket      string
	GCSProjectID   string
	GCSCredentials string
}

type QueueConfig struct {
	Workers int
	Size    int
	Timeout time.Duration
}

type LogConfig struct {
	Format string
	Level  string
}

// LoadConfig loads .env (when present) and then environment variables
func LoadConfig() *Config {
	loadDotEnv()

	return &Config{
		Server: ServerConfig{
			HTTPAddr:        getEnv("HTTP_ADDR", ":8081"),
			GRPCAddr:        getEnv("GRPC_ADDR", ":8080"),
			Environment:     getEnv("ENVIRONMENT", "development"),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
			MaxUploadBytes:  int64(getEnvAsInt("MAX_UPLOAD_BYTES", 20<<20)),
		},
		Backend: BackendConfig{
			URL:           getEnv("BACKEND_URL", ""),
			AuthToken:     getEnv("BACKEND_AUTH_TOKEN", ""),
			Timeout:       getEnvAsDuration("BACKEND_TIMEOUT", 60*time.Second),
			RatePerSecond: getEnvAsFloat64("BACKEND_RATE_PER_SECOND", 5),
			Burst:         getEnvAsInt("BACKEND_BURST", 5),
		},
		Resilience: ResilienceConfig{
			RetryMaxAttempts:    getEnvAsInt("BACKEND_RETRY_MAX_ATTEMPTS", 3),
			RetryInitialBackoff: getEnvAsDuration("BACKEND_RETRY_INITIAL_BACKOFF", 250*time.Millisecond),
			RetryMaxBackoff:     getEnvAsDuration("BACKEND_RETRY_MAX_BACKOFF", 4*time.Second),
			RetryAfterCap:       getEnvAsDuration("BACKEND_RETRY_AFTER_CAP", 10*time.Second),
			BreakerEnabled:      getEnvAsBool("BACKEND_BREAKER_ENABLED", true),
			BreakerMinRequests:  uint32(getEnvAsInt("BACKEND_BREAKER_MIN_REQUESTS", 5)),
			BreakerFailureRatio: getEnvAsFloat64("BACKEND_BREAKER_FAILURE_RATIO", 0.6),
			BreakerOpenTimeout:  getEnvAsDuration("BACKEND_BREAKER_OPEN_TIMEOUT", 45*time.Second),
		},
		OCR: OCRConfig{
			Tesseract:     getEnv("TESSERACT_BIN", "tesseract"),
			Pdftotext:     getEnv("PDFTOTEXT_BIN", "pdftotext"),
			Pdftoppm:      getEnv("PDFTOPPM_BIN", "pdftoppm"),
			Lang:          getEnv("OCR_LANG", "eng"),
			DPI:           getEnvAsInt("OCR_DPI", 300),
			MaxPages:      getEnvAsInt("OCR_MAX_PAGES", 3),
			TessdataDir:   getEnv("TESSDATA_PREFIX", ""),
			PDFMode:       getEnv("OCR_PDF_MODE", "poppler"),
			EnablePDF:     getEnvAsBool("OCR_ENABLE_PDF", true),
			CaptureWords:  getEnvAsBool("OCR_CAPTURE_WORDS", false),
			HeicConverter: getEnv("HEIC_CONVERTER", "magick"),
		},
		Patterns: PatternsConfig{
			JurisdictionsFile: getEnv("PATTERNS_JURISDICTIONS_FILE", ""),
		},
		Database: DatabaseConfig{
			Driver:           getEnv("DB_DRIVER", ""),
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 10),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 1),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Storage: StorageConfig{
			Type:           getEnv("STORAGE_TYPE", "none"),
			LocalPath:      getEnv("STORAGE_LOCAL_PATH", "./storage"),
			GCSBucket:      getEnv("GCS_BUCKET_NAME", ""),
			GCSProjectID:   getEnv("GOOGLE_CLOUD_PROJECT", ""),
			GCSCredentials: getEnv("GCS_CREDENTIALS_PATH", ""),
		},
		Queue: QueueConfig{
			Workers: getEnvAsInt("QUEUE_WORKERS", 2),
			Size:    getEnvAsInt("QUEUE_SIZE", 128),
			Timeout: getEnvAsDuration("QUEUE_TASK_TIMEOUT", time.Minute),
		},
		Log: LogConfig{
			Format: getEnv("LOG_FORMAT", "text"),
			Level:  getEnv("LOG_LEVEL", "info"),
		},
	}
}

// loadDotEnv loads the first .env found at the module root or the working directory.
func loadDotEnv() {
	var paths []string
	if root := findProjectRoot(); root != "" {
		paths = append(paths, filepath.Join(root, ".env"))
	}
	paths = append(paths, ".env")
	for _, p := range paths {
		if err := godotenv.Load(p); err == nil {
			return
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
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

// Validate checks the loaded configuration
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Backend.URL != "" && c.Backend.AuthToken == "" {
		return NewAppError("CONFIG_ERROR", "BACKEND_AUTH_TOKEN is required when BACKEND_URL is set", ErrInvalidInput)
	}
	switch c.Database.Driver {
	case "":
	case "postgres", "sqlite":
		if c.Database.Driver == "postgres" && c.Database.DSN == "" {
			return NewAppError("CONFIG_ERROR", "DB_URL is required for postgres", ErrInvalidInput)
		}
	default:
		return NewAppError("CONFIG_ERROR", "DB_DRIVER must be postgres or sqlite", ErrInvalidInput)
	}
	switch strings.ToLower(c.Storage.Type) {
	case "", "none", "local":
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return NewAppError("CONFIG_ERROR", "GCS_BUCKET_NAME is required for gcs storage", ErrInvalidInput)
		}
	default:
		return NewAppError("CONFIG_ERROR", "STORAGE_TYPE must be none, local or gcs", ErrInvalidInput)
	}
	switch c.OCR.PDFMode {
	case "poppler", "native":
	default:
		return NewAppError("CONFIG_ERROR", "OCR_PDF_MODE must be poppler or native", ErrInvalidInput)
	}
	return nil
}
