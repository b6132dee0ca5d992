package internal

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Env         string
	Port        int
	LogLevel    string
	DatabaseUrl string

	// Application base URL (used in certificate links)
	BaseURL string

	// Default currency for new appraisals
	DefaultCurrency string

	// Valuation margins, as fractions (0.10 = 10%)
	SafetyMarginPct            decimal.Decimal
	ProfitMarginPct            decimal.Decimal
	MaxAdjustmentPct           decimal.Decimal
	RequireSeniorApproval      bool
	SeniorApprovalThresholdPct decimal.Decimal

	// Pricing provider: "table" or "mock"
	PricingProvider string

	// Storage configuration
	StorageProvider string // "local" or "s3"

	// Local storage (development)
	LocalStoragePath string
	LocalStorageURL  string

	// S3-compatible storage (production)
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3BucketName      string
	S3Region          string
	S3PublicURL       string // Optional custom domain URL

	// Worker configuration
	WorkerEnabled      bool
	WorkerConcurrency  int
	WorkerPollInterval time.Duration
	WorkerJobTimeout   time.Duration

	// Event delivery webhook. Empty means events are only logged.
	EventWebhookURL     string
	EventWebhookTimeout time.Duration

	// Metrics endpoint authentication.
	// If both are empty, /metrics is unprotected (not recommended).
	MetricsUsername string
	MetricsPassword string
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		BaseURL: getEnv("BASE_URL", "http://localhost:8080"),

		DefaultCurrency: getEnv("DEFAULT_CURRENCY", "BRL"),

		// Margin defaults match the standard buying policy
		SafetyMarginPct:            getEnvDecimal("SAFETY_MARGIN_PCT", "0.10"),
		ProfitMarginPct:            getEnvDecimal("PROFIT_MARGIN_PCT", "0.15"),
		MaxAdjustmentPct:           getEnvDecimal("MAX_ADJUSTMENT_PCT", "0.10"),
		RequireSeniorApproval:      getEnvBool("REQUIRE_SENIOR_APPROVAL", true),
		SeniorApprovalThresholdPct: getEnvDecimal("SENIOR_APPROVAL_THRESHOLD_PCT", "0.05"),

		PricingProvider: getEnv("PRICING_PROVIDER", "table"),

		// Storage defaults to local filesystem for development
		StorageProvider:  getEnv("STORAGE_PROVIDER", "local"),
		LocalStoragePath: getEnv("LOCAL_STORAGE_PATH", "./storage"),
		LocalStorageURL:  getEnv("LOCAL_STORAGE_URL", "http://localhost:8080/files"),

		// S3 configuration (production only)
		S3Endpoint:        getEnv("S3_ENDPOINT", ""),
		S3AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		S3BucketName:      getEnv("S3_BUCKET_NAME", ""),
		S3Region:          getEnv("S3_REGION", "auto"),
		S3PublicURL:       getEnv("S3_PUBLIC_URL", ""),

		// Worker defaults
		WorkerEnabled:      getEnvBool("WORKER_ENABLED", true),
		WorkerConcurrency:  getEnvInt("WORKER_CONCURRENCY", 2),
		WorkerPollInterval: getEnvDuration("WORKER_POLL_INTERVAL", 5*time.Second),
		WorkerJobTimeout:   getEnvDuration("WORKER_JOB_TIMEOUT", 2*time.Minute),

		// Event delivery
		EventWebhookURL:     getEnv("EVENT_WEBHOOK_URL", ""),
		EventWebhookTimeout: getEnvDuration("EVENT_WEBHOOK_TIMEOUT", 10*time.Second),

		// Metrics authentication
		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	// Required
	cfg.DatabaseUrl = os.Getenv("DATABASE_URL")
	if cfg.DatabaseUrl == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	// Validate pricing configuration
	if cfg.PricingProvider != "table" && cfg.PricingProvider != "mock" {
		return nil, fmt.Errorf("PRICING_PROVIDER must be either 'table' or 'mock', got: %s", cfg.PricingProvider)
	}

	// Validate storage configuration
	if cfg.StorageProvider == "s3" {
		if cfg.S3AccessKeyID == "" {
			return nil, fmt.Errorf("S3_ACCESS_KEY_ID is required when STORAGE_PROVIDER is 's3'")
		}
		if cfg.S3SecretAccessKey == "" {
			return nil, fmt.Errorf("S3_SECRET_ACCESS_KEY is required when STORAGE_PROVIDER is 's3'")
		}
		if cfg.S3BucketName == "" {
			return nil, fmt.Errorf("S3_BUCKET_NAME is required when STORAGE_PROVIDER is 's3'")
		}
	} else if cfg.StorageProvider != "local" {
		return nil, fmt.Errorf("STORAGE_PROVIDER must be either 'local' or 's3', got: %s", cfg.StorageProvider)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvDecimal(key, fallback string) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return decimal.RequireFromString(fallback)
}
