package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/file-intake/internal/core/usecase"
)

const (
	QueueModeMemory = "memory"
	QueueModeNATS   = "nats"

	CatalogSourceLedger = "ledger"
	CatalogSourceYAML   = "yaml"
)

type Config struct {
	APIPort  string
	LogLevel string
	LogFile  string

	APIRateLimitRPS     float64
	APIRateLimitBurst   int
	APIMaxInFlight      int
	APIBackpressureWait time.Duration

	QueueMode      string
	NATSURL        string
	NATSSubject    string
	NATSQueueGroup string

	// PostgresDSN enables the outcome journal when set.
	PostgresDSN string

	BoxBaseURL           string
	BoxClientID          string
	BoxClientSecret      string
	BoxSubjectType       string
	BoxSubjectID         string
	BoxRequestsPerSecond float64
	BoxBurst             int
	BoxTimeout           time.Duration
	MaxFolderDepth       int
	FileLinkBase         string

	LedgerPath    string
	CatalogSource string
	CatalogPath   string
	RulesPath     string

	FFprobePath    string
	FFprobeTimeout time.Duration
	SpoolDir       string
	SpoolMaxAge    time.Duration

	ReportingTimezone string
	ClientFallback    string
	IgnoreListPolicy  string

	MaxRetries        int
	RetryBackoff      time.Duration
	WorkerConcurrency int

	ResilienceRetryMaxAttempts    int
	ResilienceRetryInitialBackoff time.Duration
	ResilienceRetryMaxBackoff     time.Duration
	ResilienceBreakerEnabled      bool
	ResilienceBreakerOpenTimeout  time.Duration

	WorkerMetricsPort string
}

func Load() Config {
	return Config{
		APIPort:  mustEnv("API_PORT", "8080"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),
		LogFile:  mustEnv("LOG_FILE", ""),

		APIRateLimitRPS:     mustEnvFloat("API_RATE_LIMIT_RPS", 20),
		APIRateLimitBurst:   mustEnvInt("API_RATE_LIMIT_BURST", 40),
		APIMaxInFlight:      mustEnvInt("API_MAX_IN_FLIGHT", 64),
		APIBackpressureWait: mustEnvDuration("API_BACKPRESSURE_WAIT", 250*time.Millisecond),

		QueueMode:      strings.ToLower(mustEnv("QUEUE_MODE", QueueModeMemory)),
		NATSURL:        mustEnv("NATS_URL", "nats://localhost:4222"),
		NATSSubject:    mustEnv("NATS_SUBJECT", "intake.files"),
		NATSQueueGroup: mustEnv("NATS_QUEUE_GROUP", "intake-workers"),

		PostgresDSN: mustEnv("POSTGRES_DSN", ""),

		BoxBaseURL:           mustEnv("BOX_BASE_URL", "https://api.box.com"),
		BoxClientID:          mustEnv("BOX_CLIENT_ID", ""),
		BoxClientSecret:      mustEnv("BOX_CLIENT_SECRET", ""),
		BoxSubjectType:       mustEnv("BOX_SUBJECT_TYPE", "enterprise"),
		BoxSubjectID:         mustEnv("BOX_SUBJECT_ID", ""),
		BoxRequestsPerSecond: mustEnvFloat("BOX_REQUESTS_PER_SECOND", 10),
		BoxBurst:             mustEnvInt("BOX_BURST", 10),
		BoxTimeout:           mustEnvDuration("BOX_TIMEOUT", 60*time.Second),
		MaxFolderDepth:       mustEnvInt("MAX_FOLDER_DEPTH", 64),
		FileLinkBase:         mustEnv("FILE_LINK_BASE", "https://app.box.com/file/"),

		LedgerPath:    mustEnv("LEDGER_PATH", "./data/job-log.xlsx"),
		CatalogSource: strings.ToLower(mustEnv("CATALOG_SOURCE", CatalogSourceLedger)),
		CatalogPath:   mustEnv("CATALOG_PATH", ""),
		RulesPath:     mustEnv("RULES_PATH", ""),

		FFprobePath:    mustEnv("FFPROBE_PATH", "ffprobe"),
		FFprobeTimeout: mustEnvDuration("FFPROBE_TIMEOUT", 2*time.Minute),
		SpoolDir:       mustEnv("SPOOL_DIR", ""),
		SpoolMaxAge:    mustEnvDuration("SPOOL_MAX_AGE", time.Hour),

		ReportingTimezone: mustEnv("REPORTING_TIMEZONE", "America/Chicago"),
		ClientFallback:    mustEnv("CLIENT_FALLBACK", "none"),
		IgnoreListPolicy:  mustEnv("IGNORE_LIST_POLICY", "strict"),

		MaxRetries:        mustEnvInt("MAX_RETRIES", usecase.DefaultMaxRetries),
		RetryBackoff:      mustEnvDuration("RETRY_BACKOFF", usecase.DefaultRetryBackoff),
		WorkerConcurrency: mustEnvInt("WORKER_CONCURRENCY", 1),

		ResilienceRetryMaxAttempts:    mustEnvInt("RESILIENCE_RETRY_MAX_ATTEMPTS", 3),
		ResilienceRetryInitialBackoff: mustEnvDuration("RESILIENCE_RETRY_INITIAL_BACKOFF", 200*time.Millisecond),
		ResilienceRetryMaxBackoff:     mustEnvDuration("RESILIENCE_RETRY_MAX_BACKOFF", 2*time.Second),
		ResilienceBreakerEnabled:      mustEnvBool("RESILIENCE_BREAKER_ENABLED", true),
		ResilienceBreakerOpenTimeout:  mustEnvDuration("RESILIENCE_BREAKER_OPEN_TIMEOUT", 30*time.Second),

		WorkerMetricsPort: mustEnv("WORKER_METRICS_PORT", "9090"),
	}
}

func mustEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

// mustEnvDuration accepts Go durations ("10s") and bare seconds ("10").
func mustEnvDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if parsed, err := time.ParseDuration(v); err == nil {
		return parsed
	}
	if seconds, err := strconv.Atoi(v); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}
