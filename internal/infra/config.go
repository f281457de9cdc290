package infra

import (
	"os"
	"strconv"
	"strings"
	"time"

	"videogen/internal/domain"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	StoragePath        string
	GeoIPDBPath        string
	CORSAllowedOrigins []string
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerMin    int

	RunwayAPIKey          string
	RunwayBaseURL         string
	RunwayAPIVersion      string
	RunwayRequestTimeout  time.Duration
	RunwayDownloadTimeout time.Duration

	PollInterval    time.Duration
	PollMaxWait     time.Duration
	PollMaxAttempts int
	FetchRetries    int

	PadColor          string
	ImageFormat       string
	JPEGQuality       int
	MaxImageDimension int
	PayloadSoftLimit  int

	WorkerConcurrency int
	HistoryDBPath     string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		Port:               getEnv("PORT", "8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		StoragePath:        getEnv("STORAGE_PATH", "./storage"),
		GeoIPDBPath:        os.Getenv("GEOIP_DB_PATH"),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 30),

		RunwayAPIKey:          strings.TrimSpace(os.Getenv("RUNWAY_API_KEY")),
		RunwayBaseURL:         strings.TrimRight(getEnv("RUNWAY_BASE_URL", "https://api.dev.runwayml.com"), "/"),
		RunwayAPIVersion:      getEnv("RUNWAY_API_VERSION", "2024-11-06"),
		RunwayRequestTimeout:  time.Second * time.Duration(getEnvInt("RUNWAY_REQUEST_TIMEOUT_SECONDS", 60)),
		RunwayDownloadTimeout: time.Second * time.Duration(getEnvInt("RUNWAY_DOWNLOAD_TIMEOUT_SECONDS", 120)),

		PollInterval:    time.Second * time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 2)),
		PollMaxWait:     time.Second * time.Duration(getEnvInt("POLL_MAX_WAIT_SECONDS", 1200)),
		PollMaxAttempts: getEnvInt("POLL_MAX_ATTEMPTS", 0),
		FetchRetries:    getEnvInt("FETCH_RETRIES", 3),

		PadColor:          getEnv("PAD_COLOR", "#FFFFFF"),
		ImageFormat:       getEnv("IMAGE_FORMAT", "png"),
		JPEGQuality:       getEnvInt("JPEG_QUALITY", 90),
		MaxImageDimension: getEnvInt("MAX_IMAGE_DIMENSION", 1536),
		PayloadSoftLimit:  getEnvInt("PAYLOAD_SOFT_LIMIT_BYTES", 5*1024*1024),

		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 2),
		HistoryDBPath:     getEnv("HISTORY_DB_PATH", "videogen_history.db"),
	}

	if cfg.PollInterval <= 0 {
		return nil, &domain.ConfigError{Key: "POLL_INTERVAL_SECONDS", Reason: "must be positive"}
	}
	if cfg.PollMaxWait <= 0 && cfg.PollMaxAttempts <= 0 {
		return nil, &domain.ConfigError{Key: "POLL_MAX_WAIT_SECONDS", Reason: "a wait budget or POLL_MAX_ATTEMPTS is required"}
	}
	if cfg.FetchRetries < 0 {
		return nil, &domain.ConfigError{Key: "FETCH_RETRIES", Reason: "must not be negative"}
	}
	if cfg.WorkerConcurrency < 1 {
		return nil, &domain.ConfigError{Key: "WORKER_CONCURRENCY", Reason: "must be at least 1"}
	}

	return cfg, nil
}

// RequireDatabase reports a configuration error when DATABASE_URL is unset.
// Only the binaries backed by Postgres call it.
func (c *Config) RequireDatabase() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return &domain.ConfigError{Key: "DATABASE_URL"}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
