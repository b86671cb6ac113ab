package shared

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// UnifiedConfiguration holds all tunable parameters for the backend services
type UnifiedConfiguration struct {
	Gateway  GatewayConfig  `json:"gateway"`
	Database DatabaseConfig `json:"database"`
	Cache    CacheConfig    `json:"cache"`
	Quota    QuotaConfig    `json:"quota"`
	Logging  LoggingConfig  `json:"logging"`
}

// GatewayConfig holds the data access gateway retry/timeout configuration
type GatewayConfig struct {
	MaxRetries int           `json:"max_retries"`
	Timeout    time.Duration `json:"timeout"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	PingTimeout     time.Duration `json:"ping_timeout"`
}

// CacheConfig holds signature cache configuration
type CacheConfig struct {
	DefaultTTL    time.Duration `json:"default_ttl"`
	SweepInterval time.Duration `json:"sweep_interval"`
}

// AdmissionPolicy decides what the quota meter answers when its own usage
// read fails: fail open keeps serving, strict blocks.
type AdmissionPolicy string

const (
	AdmissionFailOpen AdmissionPolicy = "failOpen"
	AdmissionStrict   AdmissionPolicy = "strict"
)

// QuotaConfig holds daily token quota configuration
type QuotaConfig struct {
	DailyTokenLimit int             `json:"daily_token_limit"`
	Policy          AdmissionPolicy `json:"admission_policy"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level       string `json:"level"`
	ServiceName string `json:"service_name"`
}

// NewDefaultUnifiedConfiguration returns production-ready default configuration
func NewDefaultUnifiedConfiguration() *UnifiedConfiguration {
	return &UnifiedConfiguration{
		Gateway: GatewayConfig{
			MaxRetries: 3,
			Timeout:    30 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
			PingTimeout:     5 * time.Second,
		},
		Cache: CacheConfig{
			DefaultTTL:    24 * time.Hour,
			SweepInterval: 12 * time.Hour,
		},
		Quota: QuotaConfig{
			DailyTokenLimit: 50000,
			Policy:          AdmissionFailOpen,
		},
		Logging: LoggingConfig{
			Level:       "info",
			ServiceName: "actionos-backend",
		},
	}
}

// ValidateAndApplyDefaults validates configuration and applies defaults for invalid values
func (c *UnifiedConfiguration) ValidateAndApplyDefaults() {
	logger := logrus.WithField("component", "UnifiedConfiguration")

	if c.Gateway.MaxRetries <= 0 {
		c.Gateway.MaxRetries = 3
		logger.Debug("Applied default Gateway.MaxRetries")
	}

	if c.Gateway.Timeout <= 0 {
		c.Gateway.Timeout = 30 * time.Second
		logger.Debug("Applied default Gateway.Timeout")
	}

	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = 25
		logger.Debug("Applied default Database.MaxOpenConns")
	}

	if c.Database.MaxIdleConns <= 0 {
		c.Database.MaxIdleConns = 5
		logger.Debug("Applied default Database.MaxIdleConns")
	}

	if c.Database.ConnMaxLifetime <= 0 {
		c.Database.ConnMaxLifetime = 5 * time.Minute
		logger.Debug("Applied default Database.ConnMaxLifetime")
	}

	if c.Database.PingTimeout <= 0 {
		c.Database.PingTimeout = 5 * time.Second
		logger.Debug("Applied default Database.PingTimeout")
	}

	if c.Cache.DefaultTTL <= 0 {
		c.Cache.DefaultTTL = 24 * time.Hour
		logger.Debug("Applied default Cache.DefaultTTL")
	}

	if c.Cache.SweepInterval <= 0 {
		c.Cache.SweepInterval = 12 * time.Hour
		logger.Debug("Applied default Cache.SweepInterval")
	}

	if c.Quota.DailyTokenLimit <= 0 {
		c.Quota.DailyTokenLimit = 50000
		logger.Debug("Applied default Quota.DailyTokenLimit")
	}

	if c.Quota.Policy != AdmissionStrict && c.Quota.Policy != AdmissionFailOpen {
		c.Quota.Policy = AdmissionFailOpen
		logger.Debug("Applied default Quota.Policy")
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
		logger.Debug("Applied default Logging.Level")
	}

	if c.Logging.ServiceName == "" {
		c.Logging.ServiceName = "actionos-backend"
		logger.Debug("Applied default Logging.ServiceName")
	}
}

// ToJSON serializes the configuration to JSON
func (c *UnifiedConfiguration) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// LoadFromJSON deserializes configuration from JSON
func (c *UnifiedConfiguration) LoadFromJSON(jsonData []byte) error {
	if err := json.Unmarshal(jsonData, c); err != nil {
		return fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	c.ValidateAndApplyDefaults()
	return nil
}
