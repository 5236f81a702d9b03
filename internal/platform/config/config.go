package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process-level configuration for the verification service.
type Server struct {
	Addr        string
	Environment string

	// DatabaseURL enables the postgres-backed session store when set;
	// otherwise the in-memory store is used.
	DatabaseURL string

	Redis RedisConfig

	// ArtifactDir is the root directory for uploaded document/selfie
	// artifacts. Empty means in-memory artifact storage.
	ArtifactDir string

	// AnalyzerLatency is the simulated latency of the sandbox analyzer
	// stubs. Real analyzer deployments ignore it.
	AnalyzerLatency time.Duration

	LiveTokenTTL        time.Duration
	LiveTokenSigningKey string
}

// RedisConfig captures redis client tuning. URL empty means redis is not
// configured and the in-memory live-token store is used.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("IDVERIFY_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	env := os.Getenv("IDVERIFY_ENV")
	if env == "" {
		env = "development"
	}

	signingKey := os.Getenv("LIVE_TOKEN_SIGNING_KEY")
	if signingKey == "" {
		// Development default - must be overridden in production.
		signingKey = "dev-secret-key-change-in-production"
	}

	return Server{
		Addr:                addr,
		Environment:         env,
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		Redis:               redisFromEnv(),
		ArtifactDir:         os.Getenv("ARTIFACT_DIR"),
		AnalyzerLatency:     durationFromEnv("ANALYZER_LATENCY", 50*time.Millisecond),
		LiveTokenTTL:        durationFromEnv("LIVE_TOKEN_TTL", 5*time.Minute),
		LiveTokenSigningKey: signingKey,
	}
}

func redisFromEnv() RedisConfig {
	return RedisConfig{
		URL:          os.Getenv("REDIS_URL"),
		PoolSize:     intFromEnv("REDIS_POOL_SIZE", 10),
		MinIdleConns: intFromEnv("REDIS_MIN_IDLE_CONNS", 2),
		DialTimeout:  durationFromEnv("REDIS_DIAL_TIMEOUT", 5*time.Second),
		ReadTimeout:  durationFromEnv("REDIS_READ_TIMEOUT", 3*time.Second),
		WriteTimeout: durationFromEnv("REDIS_WRITE_TIMEOUT", 3*time.Second),
	}
}

func durationFromEnv(key string, fallback time.Duration) time.Duration {
	if raw := os.Getenv(key); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			return d
		}
	}
	return fallback
}

func intFromEnv(key string, fallback int) int {
	if raw := os.Getenv(key); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
