// Package config provides configuration management for the portal.
//
// Configuration is loaded from:
// 1. config.yaml file (optional)
// 2. Environment variables (DATABASE_URL, SERVER_PORT, ALLOCATION_LOCK_TIMEOUT, ...)
// 3. Default values
//
// Import Path: bizportal.io/portal/internal/config
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config is the root configuration structure.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Log        LogConfig        `mapstructure:"log"`
	River      RiverConfig      `mapstructure:"river"`
	Security   SecurityConfig   `mapstructure:"security"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Allocation AllocationConfig `mapstructure:"allocation"`
	Export     ExportConfig     `mapstructure:"export"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`

	AllowCredentials bool `mapstructure:"allow_credentials"`
	// UnsafeAllowAllOrigins honours "*" in AllowedOrigins. Credentials are
	// never sent with a wildcard origin.
	UnsafeAllowAllOrigins bool `mapstructure:"unsafe_allow_all_origins"`
}

// DatabaseConfig contains PostgreSQL connection settings.
// The pool is shared by the allocation engine, the audit reader and River.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`

	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`

	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`

	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// DSN returns the PostgreSQL connection string.
// Priority: DATABASE_URL > constructed from individual fields.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, sslmode,
	)
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// RiverConfig contains River Queue settings.
type RiverConfig struct {
	MaxWorkers                  int           `mapstructure:"max_workers"`
	CompletedJobRetentionPeriod time.Duration `mapstructure:"completed_job_retention_period"`
}

// SecurityConfig contains token verification settings. Tokens are issued by
// the portal's auth service; this service only verifies them.
type SecurityConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	JWTIssuer string `mapstructure:"jwt_issuer"`

	// JWTPreviousSecrets are still accepted while the auth service rotates keys.
	JWTPreviousSecrets []string `mapstructure:"jwt_previous_secrets"`
}

// WorkerConfig contains worker pool settings.
type WorkerConfig struct {
	GeneralPoolSize    int `mapstructure:"general_pool_size"`
	AllocationPoolSize int `mapstructure:"allocation_pool_size"`
}

// AllocationConfig tunes the allocation engine and its background jobs.
type AllocationConfig struct {
	// LockTimeout bounds how long a transaction waits on a targeted row lock
	// before the store aborts it with LOCK_TIMEOUT.
	LockTimeout time.Duration `mapstructure:"lock_timeout"`

	// SweepInterval is how often ACTIVE subscriptions without a port are retried.
	// Zero disables the sweep.
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
	SweepBatchSize int           `mapstructure:"sweep_batch_size"`

	// ReportInterval is how often pool occupancy is logged. Zero disables it.
	ReportInterval time.Duration `mapstructure:"report_interval"`
}

// ExportConfig limits the CSV export endpoint.
type ExportConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	Burst             int `mapstructure:"burst"`
	MaxRows           int `mapstructure:"max_rows"`
}

var (
	bootstrapLoggerOnce sync.Once
	bootstrapLogger     *zap.Logger
)

// Load reads configuration from file and environment variables.
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom reads configuration from an explicit file path. An empty path
// searches the default locations.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/bizportal")
	}

	// Maps nested config: allocation.lock_timeout → ALLOCATION_LOCK_TIMEOUT
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.ensureSecrets(); err != nil {
		return nil, fmt.Errorf("ensure secrets: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Validate checks for critical configuration errors.
func (c *Config) Validate() error {
	if len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("security.jwt_secret must be at least 32 characters")
	}
	if c.Allocation.LockTimeout <= 0 {
		return fmt.Errorf("allocation.lock_timeout must be positive")
	}
	if c.Allocation.SweepInterval > 0 && c.Allocation.SweepBatchSize <= 0 {
		return fmt.Errorf("allocation.sweep_batch_size must be positive when the sweep is enabled")
	}
	if c.Worker.AllocationPoolSize <= 0 {
		return fmt.Errorf("worker.allocation_pool_size must be positive")
	}
	if c.Export.RequestsPerMinute <= 0 || c.Export.Burst <= 0 {
		return fmt.Errorf("export.requests_per_minute and export.burst must be positive")
	}
	return nil
}

func (c *Config) ensureSecrets() error {
	if c.Security.JWTSecret != "" {
		return nil
	}
	secret, err := generateSecureRandomHex(32)
	if err != nil {
		return fmt.Errorf("auto-generate jwt secret: %w", err)
	}
	c.Security.JWTSecret = secret
	logBootstrapWarn(
		"auto-generated security.jwt_secret; tokens from the auth service will not verify until SECURITY_JWT_SECRET is set",
		zap.Int("length", len(secret)),
	)
	return nil
}

func logBootstrapWarn(msg string, fields ...zap.Field) {
	bootstrapLoggerOnce.Do(func() {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)

		l, err := cfg.Build()
		if err != nil {
			bootstrapLogger = zap.NewNop()
			return
		}
		bootstrapLogger = l
	})

	bootstrapLogger.Warn(msg, fields...)
}

func generateSecureRandomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("crypto/rand: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.allow_credentials", true)
	v.SetDefault("server.unsafe_allow_all_origins", false)

	// Database
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "portal")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "portal")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 40)
	v.SetDefault("database.min_conns", 4)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "10m")
	v.SetDefault("database.auto_migrate", false)

	// Log
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// River
	v.SetDefault("river.max_workers", 5)
	v.SetDefault("river.completed_job_retention_period", "24h")

	// Security
	v.SetDefault("security.jwt_issuer", "bizportal")
	v.SetDefault("security.jwt_previous_secrets", []string{})

	// Worker pools
	v.SetDefault("worker.general_pool_size", 50)
	v.SetDefault("worker.allocation_pool_size", 8)

	// Allocation
	v.SetDefault("allocation.lock_timeout", "5s")
	v.SetDefault("allocation.sweep_interval", "5m")
	v.SetDefault("allocation.sweep_batch_size", 100)
	v.SetDefault("allocation.report_interval", "15m")

	// Export
	v.SetDefault("export.requests_per_minute", 6)
	v.SetDefault("export.burst", 2)
	v.SetDefault("export.max_rows", 50000)
}
