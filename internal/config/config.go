package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every runtime setting of the server and worker processes.
type Config struct {
	Port         string
	DatabasePath string
	Environment  string
	LogLevel     string

	// Pipeline
	AdmissionCost      int64
	TopKClips          int
	ClipMinSeconds     float64
	ClipMaxSeconds     float64
	AdmissionTimeout   time.Duration
	ExpectedProcessing time.Duration

	// Queue
	MaxAttempts       int
	RetryBaseDelay    time.Duration
	RetryMultiplier   float64
	RetryMaxDelay     time.Duration
	JobLease          time.Duration
	WorkerEnabled     bool
	WorkerConcurrency int
	WorkerPoll        time.Duration

	// Analysis collaborator
	AnalysisURL     string
	AnalysisTimeout time.Duration

	// Redis wake-up channel (optional)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisWakeKey  string

	// Object storage (optional)
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioUseSSL    bool
	MinioRegion    string
	MinioBucket    string
	PresignExpiry  time.Duration

	// Page title lookup for remote URLs through a headless browser (optional)
	WebTitleLookup bool
	BrowserPath    string
	TitleTimeout   time.Duration

	AdminToken string
	HealthAddr string
}

// Load reads .env (when present) and the process environment.
func Load() Config {
	// .env is optional
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() Config {
	return Config{
		Port:         valueOrDefault(os.Getenv("PORT"), "8080"),
		DatabasePath: valueOrDefault(os.Getenv("DATABASE_PATH"), "data/reelclip.db"),
		Environment:  os.Getenv("ENVIRONMENT"),
		LogLevel:     strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL"))),

		AdmissionCost:      int64(parseInt(os.Getenv("ADMISSION_COST"), 10)),
		TopKClips:          parseInt(os.Getenv("TOP_K_CLIPS"), 10),
		ClipMinSeconds:     parseFloat(os.Getenv("CLIP_MIN_SECONDS"), 0),
		ClipMaxSeconds:     parseFloat(os.Getenv("CLIP_MAX_SECONDS"), 0),
		AdmissionTimeout:   parseDuration(os.Getenv("ADMISSION_TIMEOUT"), 5*time.Second),
		ExpectedProcessing: parseDuration(os.Getenv("EXPECTED_PROCESSING"), 3*time.Minute),

		MaxAttempts:       parseInt(os.Getenv("MAX_ATTEMPTS"), 3),
		RetryBaseDelay:    parseDuration(os.Getenv("RETRY_BASE_DELAY"), 2*time.Second),
		RetryMultiplier:   parseFloat(os.Getenv("RETRY_MULTIPLIER"), 2),
		RetryMaxDelay:     parseDuration(os.Getenv("RETRY_MAX_DELAY"), time.Minute),
		JobLease:          parseDuration(os.Getenv("JOB_LEASE"), 10*time.Minute),
		WorkerEnabled:     parseBool(os.Getenv("WORKER_ENABLED"), true),
		WorkerConcurrency: parseInt(os.Getenv("WORKER_CONCURRENCY"), 4),
		WorkerPoll:        parseDuration(os.Getenv("WORKER_POLL_INTERVAL"), time.Second),

		AnalysisURL:     strings.TrimRight(os.Getenv("ANALYSIS_URL"), "/"),
		AnalysisTimeout: parseDuration(os.Getenv("ANALYSIS_TIMEOUT"), 5*time.Minute),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       parseInt(os.Getenv("REDIS_DB"), 0),
		RedisWakeKey:  valueOrDefault(os.Getenv("REDIS_WAKE_KEY"), "reelclip:jobs:wake"),

		MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioUseSSL:    parseBool(os.Getenv("MINIO_USE_SSL"), false),
		MinioRegion:    valueOrDefault(os.Getenv("MINIO_REGION"), "us-east-1"),
		MinioBucket:    valueOrDefault(os.Getenv("MINIO_BUCKET"), "uploads"),
		PresignExpiry:  parseDuration(os.Getenv("PRESIGN_EXPIRY"), 15*time.Minute),

		WebTitleLookup: parseBool(os.Getenv("WEB_TITLE_LOOKUP"), false),
		BrowserPath:    os.Getenv("BROWSER_PATH"),
		TitleTimeout:   parseDuration(os.Getenv("TITLE_LOOKUP_TIMEOUT"), 2*time.Second),

		AdminToken: os.Getenv("ADMIN_TOKEN"),
		HealthAddr: valueOrDefault(os.Getenv("HEALTH_ADDR"), ":9090"),
	}
}

func parseInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func parseFloat(value string, fallback float64) float64 {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseBool(value string, fallback bool) bool {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
