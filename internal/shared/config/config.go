package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"mirror-backend/internal/shared/telemetry"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	LogLevel        string
	CORSAllowOrigin []string

	DatabaseURL string
	LeadStore   string
	LeadsFile   string

	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string

	RedisURL   string
	SessionTTL time.Duration

	NarrativeProvider string
	NarrativeModel    string
	NarrativeTimeout  time.Duration
	GoogleAPIKey      string
	OpenAIAPIKey      string
	DefaultLocale     string

	AdminPassword string
	JWTSecret     string
	AdminTokenTTL time.Duration

	LeadQueueURL          string
	WorkerConcurrency     int
	WorkerVisibility      time.Duration
	WorkerShutdownTimeout time.Duration

	AnalysisRatePerMin float64
	AnalysisBurst      int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" && getEnv("LEAD_STORE", "") == "postgres" {
		telemetry.Warn("config.database_url_missing", map[string]any{"env": env})
	}

	return Config{
		Port:                  getEnv("PORT", "8080"),
		Env:                   env,
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		CORSAllowOrigin:       splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		DatabaseURL:           dbURL,
		LeadStore:             normalizeLeadStore(getEnv("LEAD_STORE", ""), dbURL),
		LeadsFile:             getEnv("LEADS_FILE", "./data/leads.jsonl"),
		ObjectStoreType:       normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:         getEnv("LOCAL_STORE_DIR", "./data/photos"),
		AWSRegion:             getEnv("AWS_REGION", ""),
		S3Bucket:              getEnv("S3_BUCKET", ""),
		S3Prefix:              getEnv("S3_PREFIX", "photos/"),
		SSEKMSKeyID:           getEnv("SSE_KMS_KEY_ID", ""),
		RedisURL:              getEnv("REDIS_URL", ""),
		SessionTTL:            getDuration("SESSION_TTL", 2*time.Hour),
		NarrativeProvider:     normalizeProvider(getEnv("NARRATIVE_PROVIDER", "gemini")),
		NarrativeModel:        getEnv("NARRATIVE_MODEL", ""),
		NarrativeTimeout:      getDuration("NARRATIVE_TIMEOUT", 45*time.Second),
		GoogleAPIKey:          getEnv("GOOGLE_API_KEY", ""),
		OpenAIAPIKey:          getEnv("OPENAI_API_KEY", ""),
		DefaultLocale:         getEnv("DEFAULT_LOCALE", "ko"),
		AdminPassword:         getEnv("ADMIN_PASSWORD", ""),
		JWTSecret:             getEnv("JWT_SECRET", ""),
		AdminTokenTTL:         getDuration("ADMIN_TOKEN_TTL", 12*time.Hour),
		LeadQueueURL:          getEnv("LEAD_QUEUE_URL", ""),
		WorkerConcurrency:     getInt("WORKER_CONCURRENCY", 4),
		WorkerVisibility:      getDuration("WORKER_VISIBILITY_TIMEOUT", 2*time.Minute),
		WorkerShutdownTimeout: getDuration("WORKER_SHUTDOWN_TIMEOUT", 25*time.Second),
		AnalysisRatePerMin:    getFloat("ANALYSIS_RATE_PER_MIN", 10),
		AnalysisBurst:         getInt("ANALYSIS_BURST", 5),
	}
}

// IsDevLike reports whether the environment tolerates in-memory fallbacks.
func (c Config) IsDevLike() bool {
	switch c.Env {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		telemetry.Warn("config.invalid_duration", map[string]any{"key": key, "value": raw})
		return def
	}
	return d
}

func getInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		telemetry.Warn("config.invalid_int", map[string]any{"key": key, "value": raw})
		return def
	}
	return v
}

func getFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		telemetry.Warn("config.invalid_float", map[string]any{"key": key, "value": raw})
		return def
	}
	return v
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

func normalizeLeadStore(raw, dbURL string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "postgres", "pg":
		return "postgres"
	case "memory":
		return "memory"
	case "file", "jsonl":
		return "file"
	}
	if strings.TrimSpace(dbURL) != "" {
		return "postgres"
	}
	return "file"
}

func normalizeProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "gemini", "google":
		return "gemini"
	case "openai":
		return "openai"
	default:
		return "none"
	}
}
