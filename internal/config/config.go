package config

import (
	"os"
	"strconv"
	"strings"
)

// Config centralizes runtime settings for the API and the render worker.
type Config struct {
	Port string

	// AuthUsers holds "token:userID:role" triples, comma-separated. Empty
	// enables the unauthenticated development mode.
	AuthUsers string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	StorageDir string

	RendererURL        string
	RendererTimeoutMS  int
	RendererMaxRetries int

	// WorkerPollIntervalMS names the polling cadence so it can be tuned or
	// replaced with an event-driven trigger without touching claim logic.
	WorkerPollIntervalMS  int
	WorkerRenderTimeoutMS int
	WorkerEnabled         bool

	StatusCacheTTLSeconds int

	CORSAllowedOrigins []string

	RateLimitRPS   float64
	RateLimitBurst int
}

func Load() Config {
	return Config{
		Port: getEnv("PORT", "8080"),

		AuthUsers: getEnv("AUTH_USERS", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		StorageDir: getEnv("PDF_STORAGE_DIR", "data/pdfs"),

		RendererURL:        getEnv("RENDERER_URL", ""),
		RendererTimeoutMS:  getEnvInt("RENDERER_TIMEOUT_MS", 30000),
		RendererMaxRetries: getEnvInt("RENDERER_MAX_RETRIES", 2),

		WorkerPollIntervalMS:  getEnvInt("WORKER_POLL_INTERVAL_MS", 1000),
		WorkerRenderTimeoutMS: getEnvInt("WORKER_RENDER_TIMEOUT_MS", 60000),
		WorkerEnabled:         getEnvBool("WORKER_ENABLED", true),

		StatusCacheTTLSeconds: getEnvInt("STATUS_CACHE_TTL_SECONDS", 5),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 40),
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	items := make([]string, 0)
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}
