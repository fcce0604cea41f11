package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP
	HTTPPort string

	// TimescaleDB
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBMaxConns int32

	// Redis (optional; empty RedisAddr disables it)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Batch writer tuning
	BatchQueueSize int
	BatchSize      int
	BatchMaxWait   time.Duration
	BatchRetryMax  int
	BatchBackoff   time.Duration

	// Evaluation lanes
	LaneCount int
	LaneDepth int

	// Streaming
	StreamBuffer int

	// Dwell / zones / rules
	DwellGapTolerance time.Duration
	ZoneRefresh       time.Duration
	RuleRefresh       time.Duration
	RulesFile         string

	// Auth
	AuthCacheTTLSeconds int
	ValidAPIKeys        []string
}

func Load() *Config {
	return &Config{
		HTTPPort:            getEnv("HTTP_PORT", "8001"),
		DBHost:              getEnv("DB_HOST", "localhost"),
		DBPort:              getEnv("DB_PORT", "5432"),
		DBUser:              getEnv("DB_USER", "auv_user"),
		DBPassword:          getEnv("DB_PASSWORD", "auv_password"),
		DBName:              getEnv("DB_NAME", "auv_monitor"),
		DBMaxConns:          int32(getEnvInt("DB_MAX_CONNS", 15)),
		RedisAddr:           getEnvAllowEmpty("REDIS_ADDR", "localhost:6379"),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisDB:             getEnvInt("REDIS_DB", 0),
		BatchQueueSize:      getEnvInt("BATCH_QUEUE_SIZE", 10000),
		BatchSize:           getEnvInt("BATCH_SIZE", 500),
		BatchMaxWait:        getEnvDuration("BATCH_MAX_WAIT_MS", 100) * time.Millisecond,
		BatchRetryMax:       getEnvInt("BATCH_RETRY_MAX", 3),
		BatchBackoff:        getEnvDuration("BATCH_BACKOFF_MS", 250) * time.Millisecond,
		LaneCount:           getEnvInt("LANE_COUNT", 8),
		LaneDepth:           getEnvInt("LANE_DEPTH", 2048),
		StreamBuffer:        getEnvInt("STREAM_BUFFER", 256),
		DwellGapTolerance:   getEnvDuration("DWELL_GAP_TOLERANCE_SEC", 30) * time.Second,
		ZoneRefresh:         getEnvDuration("ZONE_REFRESH_SEC", 60) * time.Second,
		RuleRefresh:         getEnvDuration("RULE_REFRESH_SEC", 60) * time.Second,
		RulesFile:           getEnv("RULES_FILE", ""),
		AuthCacheTTLSeconds: getEnvInt("AUTH_CACHE_TTL_SECONDS", 300),
		ValidAPIKeys:        splitKeys(getEnv("VALID_API_KEYS", "")),
	}
}

func splitKeys(s string) []string {
	var keys []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// getEnvAllowEmpty treats an explicitly empty value as meaningful:
// REDIS_ADDR="" disables redis rather than falling back to the
// default address.
func getEnvAllowEmpty(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
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

func getEnvDuration(key string, fallback int) time.Duration {
	return time.Duration(getEnvInt(key, fallback))
}
