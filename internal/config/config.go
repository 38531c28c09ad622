package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Persistence
	SQLitePath string

	// Claude extraction
	UseLLM          bool
	AnthropicAPIKey string
	AnthropicModel  string

	// Worker pool
	WorkerCount         int
	MaxQueueSize        int
	MaxConcurrentLeaves int

	// Upload limits
	MaxUploadBytes int64

	// Skip threshold for scanned or empty documents
	MinMeaningfulLength int

	// OCR fallback
	PdftotextBin  string
	PdftoppmBin   string
	TesseractBin  string
	TesseractLang string
	OCRDPI        int
	OCRMaxPages   int

	// Job state
	JobTTL time.Duration
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("PLANPARSE_API_KEY"),

		SQLitePath: envOr("SQLITE_PATH", "planparse.db"),

		UseLLM:          envBool("USE_LLM", false),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:  envOr("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),

		WorkerCount:         envInt("WORKER_COUNT", 4),
		MaxQueueSize:        envInt("MAX_QUEUE_SIZE", 100),
		MaxConcurrentLeaves: envInt("MAX_CONCURRENT_LEAVES", 5),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		MinMeaningfulLength: envInt("MIN_MEANINGFUL_LENGTH", 500),

		PdftotextBin:  envOr("PDFTOTEXT_BIN", "pdftotext"),
		PdftoppmBin:   envOr("PDFTOPPM_BIN", "pdftoppm"),
		TesseractBin:  envOr("TESSERACT_BIN", "tesseract"),
		TesseractLang: envOr("TESSERACT_LANG", "vie"),
		OCRDPI:        envInt("OCR_DPI", 300),
		OCRMaxPages:   envInt("OCR_MAX_PAGES", 20),

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxConcurrentLeaves <= 0 {
		cfg.MaxConcurrentLeaves = 5
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.MinMeaningfulLength <= 0 {
		cfg.MinMeaningfulLength = 500
	}
	if cfg.OCRDPI <= 0 {
		cfg.OCRDPI = 300
	}
	if cfg.OCRMaxPages <= 0 {
		cfg.OCRMaxPages = 20
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

// Validate checks what the server cannot run without. The Anthropic
// key is deliberately not required: extraction falls back to the
// rule-based strategy when it is absent.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("PLANPARSE_API_KEY is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
