// Package config loads inboxguard's runtime configuration from the
// environment, mirroring the env-var-with-typed-default idiom the worker
// service used for its own config.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable inboxguard reads at startup. Every field is
// optional and defaulted; nothing here is required to boot the server.
type Config struct {
	// Storage layout: parent dir, per-user DBs, system registry, archive root.
	DataRoot     string // parent of users/, system.db, tokens/
	DatabasePath string // overrides <data_root>/system.db when set
	StoragePath  string // overrides <data_root>/users when set
	ArchivePath  string // export root, <archive_root>/user_<user_id>/...

	LogLevel string
	CacheTTL time.Duration // per-user DB handle cache TTL (default 30m)

	// Google OAuth.
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// JWT / sessions.
	JWTSecret   string
	SessionTTL  time.Duration
	TokenEncKey string

	// Redis (session cache, token blacklist, rate limiting, automation state).
	RedisURL string

	// Worker pool sizing.
	WorkerQueueSize int
	WorkerID        int64 // snowflake worker id, 0-1023

	// Provider call deadlines.
	ProviderCallTimeout  time.Duration
	ProviderBatchTimeout time.Duration
	// ProviderBatchMaxSize caps how many message ids ride in a single
	// BatchModify/export chunk, regardless of what a caller requests —
	// the ceiling the executor and the rate limiter's MemoryGuard both
	// enforce.
	ProviderBatchMaxSize int

	// SafetyConfig defaults.
	MaxDeletionsPerHour int
	MaxDeletionsPerDay  int
	RecentAccessDays    int

	// AutomationEngine defaults.
	AutomationEnabled            bool
	TargetEmailsPerMinute        int
	MaxConcurrentOperations      int
	PauseDuringPeakHours         bool
	PeakHoursStart               int // local hour, 0-23, inclusive
	PeakHoursEnd                 int // local hour, 0-23, exclusive
	StorageWarningThreshold      float64
	StorageCriticalThreshold     float64
	PerformanceQueryMsThreshold  float64
	PerformanceCacheHitThreshold float64
	VolumeDailyEmailThreshold    int
	EmergencyPolicyIDs           []string
	VolumeImmediatePolicyIDs     []string

	Environment string
}

// Load reads a .env file if present (ignored if missing — local dev
// convenience only, never required in production) and then builds a Config
// from the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	return &Config{
		DataRoot:     getEnv("DATA_ROOT", "./data"),
		DatabasePath: getEnv("DATABASE_PATH", ""),
		StoragePath:  getEnv("STORAGE_PATH", ""),
		ArchivePath:  getEnv("ARCHIVE_PATH", "./data/archive"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		CacheTTL: time.Duration(getEnvInt("CACHE_TTL_MIN", 30)) * time.Minute,

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", "http://localhost:8080/oauth/callback"),

		JWTSecret:   getEnv("JWT_SECRET", ""),
		SessionTTL:  time.Duration(getEnvInt("SESSION_TTL_HOUR", 24)) * time.Hour,
		TokenEncKey: getEnv("ENCRYPTION_KEY", ""),

		RedisURL: getEnv("REDIS_URL", ""),

		WorkerQueueSize: getEnvInt("WORKER_QUEUE_SIZE", 1000),
		WorkerID:        int64(getEnvInt("WORKER_ID", 0)),

		ProviderCallTimeout:  time.Duration(getEnvInt("PROVIDER_CALL_TIMEOUT_SEC", 30)) * time.Second,
		ProviderBatchTimeout: time.Duration(getEnvInt("PROVIDER_BATCH_TIMEOUT_SEC", 120)) * time.Second,
		ProviderBatchMaxSize: getEnvInt("PROVIDER_BATCH_MAX_SIZE", 50),

		MaxDeletionsPerHour: getEnvInt("MAX_DELETIONS_PER_HOUR", 500),
		MaxDeletionsPerDay:  getEnvInt("MAX_DELETIONS_PER_DAY", 2000),
		RecentAccessDays:    getEnvInt("RECENT_ACCESS_DAYS", 7),

		AutomationEnabled:            getEnvBool("AUTOMATION_ENABLED", false),
		TargetEmailsPerMinute:        getEnvInt("AUTOMATION_TARGET_EMAILS_PER_MINUTE", 20),
		MaxConcurrentOperations:      getEnvInt("AUTOMATION_MAX_CONCURRENT_OPERATIONS", 3),
		PauseDuringPeakHours:         getEnvBool("AUTOMATION_PAUSE_DURING_PEAK_HOURS", true),
		PeakHoursStart:               getEnvInt("AUTOMATION_PEAK_HOURS_START", 9),
		PeakHoursEnd:                 getEnvInt("AUTOMATION_PEAK_HOURS_END", 18),
		StorageWarningThreshold:      getEnvFloat("STORAGE_WARNING_THRESHOLD", 0.80),
		StorageCriticalThreshold:     getEnvFloat("STORAGE_CRITICAL_THRESHOLD", 0.95),
		PerformanceQueryMsThreshold:  getEnvFloat("PERFORMANCE_QUERY_MS_THRESHOLD", 500),
		PerformanceCacheHitThreshold: getEnvFloat("PERFORMANCE_CACHE_HIT_THRESHOLD", 0.5),
		VolumeDailyEmailThreshold:    getEnvInt("VOLUME_DAILY_EMAIL_THRESHOLD", 1000),
		EmergencyPolicyIDs:           getEnvList("AUTOMATION_EMERGENCY_POLICY_IDS"),
		VolumeImmediatePolicyIDs:     getEnvList("AUTOMATION_VOLUME_POLICY_IDS"),

		Environment: getEnv("ENV", "development"),
	}, nil
}

// UsersDir returns the directory holding one sqlite file per user.
func (c *Config) UsersDir() string {
	if c.StoragePath != "" {
		return c.StoragePath
	}
	return c.DataRoot + "/users"
}

// SystemDBPath returns the path to the system registry database.
func (c *Config) SystemDBPath() string {
	if c.DatabasePath != "" {
		return c.DatabasePath
	}
	return c.DataRoot + "/system.db"
}

// TokensDir returns the directory holding encrypted-at-rest OAuth tokens.
func (c *Config) TokensDir() string {
	return c.DataRoot + "/tokens"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated env var into its non-empty parts, or
// returns nil if unset — used for the emergency cleanup policy id list.
func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
