package config

import (
	"os"
	"strconv"
	"time"

	"github.com/actionos/actionos-backend/shared"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	ServerPort      string
	DatabaseURL     string
	AdminToken      string
	CacheTTLHours   string
	LogLevel        string
	DailyTokenLimit string
	AdmissionPolicy string
	CompletionURL   string
	CompletionKey   string
}

// GetCacheTTL returns the cache TTL from environment or default
func (c *Config) GetCacheTTL() time.Duration {
	if c.CacheTTLHours == "" {
		return 24 * time.Hour
	}

	hours, err := strconv.Atoi(c.CacheTTLHours)
	if err != nil {
		logrus.Warnf("Invalid CACHE_TTL_HOURS value: %s, using default 24 hours", c.CacheTTLHours)
		return 24 * time.Hour
	}

	return time.Duration(hours) * time.Hour
}

// GetQuotaConfig resolves the daily token quota settings, falling back to
// defaults on missing or invalid values.
func (c *Config) GetQuotaConfig() shared.QuotaConfig {
	quota := shared.NewDefaultUnifiedConfiguration().Quota

	if c.DailyTokenLimit != "" {
		limit, err := strconv.Atoi(c.DailyTokenLimit)
		if err != nil || limit <= 0 {
			logrus.Warnf("Invalid DAILY_TOKEN_LIMIT value: %s, using default %d", c.DailyTokenLimit, quota.DailyTokenLimit)
		} else {
			quota.DailyTokenLimit = limit
		}
	}

	switch shared.AdmissionPolicy(c.AdmissionPolicy) {
	case shared.AdmissionStrict:
		quota.Policy = shared.AdmissionStrict
	case shared.AdmissionFailOpen, "":
		quota.Policy = shared.AdmissionFailOpen
	default:
		logrus.Warnf("Invalid ADMISSION_POLICY value: %s, using failOpen", c.AdmissionPolicy)
		quota.Policy = shared.AdmissionFailOpen
	}

	return quota
}

func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		logrus.Warn("Error loading .env file, using system environment variables")
	}

	return &Config{
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		AdminToken:      getEnv("ADMIN_TOKEN", ""),
		CacheTTLHours:   getEnv("CACHE_TTL_HOURS", "24"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		DailyTokenLimit: getEnv("DAILY_TOKEN_LIMIT", ""),
		AdmissionPolicy: getEnv("ADMISSION_POLICY", "failOpen"),
		CompletionURL:   getEnv("COMPLETION_API_URL", ""),
		CompletionKey:   getEnv("COMPLETION_API_KEY", ""),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
