package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App            AppConfig
	Database       DatabaseConfig
	Redis          RedisConfig
	Log            LogConfig
	HTTP           HTTPConfig
	Allocation     AllocationConfig
	Reservation    ReservationConfig
	Classification ClassificationConfig
	Optimizer      OptimizerConfig
	Idempotency    IdempotencyConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	MaxBodySize    int64
	TrustedProxies []string
}

// AllocationConfig holds allocation pipeline settings
type AllocationConfig struct {
	AllowPartial     bool          // Grant part of a request when capacity is short
	MaxCommitRetries int           // Version-conflict retries before CAPACITY_CONTENTION
	BatchMaxSize     int           // Max requests accepted in one batch call
	RequestTimeout   time.Duration // Per-request processing budget
}

// ReservationConfig holds reservation engine settings
type ReservationConfig struct {
	CeilingRatio      float64       // Max fraction of on-hand stock reservations may hold
	DefaultExpiration time.Duration // Expiry applied when the caller does not set one
	SweepInterval     time.Duration // How often to release expired holds
	SweepBatchSize    int
}

// ClassificationConfig holds classifier settings
type ClassificationConfig struct {
	SweepInterval time.Duration // How often to re-score all customers
	VolumeWeight  float64
	MarginWeight  float64
	RiskWeight    float64
	VolumeScale   float64
	MarginScale   float64
}

// OptimizerConfig holds optimization round settings
type OptimizerConfig struct {
	MaxExactCandidates int           // Larger rounds use the greedy strategy
	TimeBudget         time.Duration // Per-round budget for the exact strategy
}

// IdempotencyConfig holds commit idempotency settings
type IdempotencyConfig struct {
	TTL time.Duration
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with ALLOC_ prefix (e.g., ALLOC_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("ALLOC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			MaxBodySize:    v.GetInt64("http.max_body_size"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),
		},
		Allocation: AllocationConfig{
			AllowPartial:     v.GetBool("allocation.allow_partial"),
			MaxCommitRetries: v.GetInt("allocation.max_commit_retries"),
			BatchMaxSize:     v.GetInt("allocation.batch_max_size"),
			RequestTimeout:   v.GetDuration("allocation.request_timeout"),
		},
		Reservation: ReservationConfig{
			CeilingRatio:      v.GetFloat64("reservation.ceiling_ratio"),
			DefaultExpiration: v.GetDuration("reservation.default_expiration"),
			SweepInterval:     v.GetDuration("reservation.sweep_interval"),
			SweepBatchSize:    v.GetInt("reservation.sweep_batch_size"),
		},
		Classification: ClassificationConfig{
			SweepInterval: v.GetDuration("classification.sweep_interval"),
			VolumeWeight:  v.GetFloat64("classification.volume_weight"),
			MarginWeight:  v.GetFloat64("classification.margin_weight"),
			RiskWeight:    v.GetFloat64("classification.risk_weight"),
			VolumeScale:   v.GetFloat64("classification.volume_scale"),
			MarginScale:   v.GetFloat64("classification.margin_scale"),
		},
		Optimizer: OptimizerConfig{
			MaxExactCandidates: v.GetInt("optimizer.max_exact_candidates"),
			TimeBudget:         v.GetDuration("optimizer.time_budget"),
		},
		Idempotency: IdempotencyConfig{
			TTL: v.GetDuration("idempotency.ttl"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "allocation-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "allocation"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 10 << 20 // 10MB
	}
	if cfg.Allocation.MaxCommitRetries == 0 {
		cfg.Allocation.MaxCommitRetries = 3
	}
	if cfg.Allocation.BatchMaxSize == 0 {
		cfg.Allocation.BatchMaxSize = 500
	}
	if cfg.Allocation.RequestTimeout == 0 {
		cfg.Allocation.RequestTimeout = 10 * time.Second
	}
	if cfg.Reservation.CeilingRatio == 0 {
		cfg.Reservation.CeilingRatio = 0.5
	}
	if cfg.Reservation.DefaultExpiration == 0 {
		cfg.Reservation.DefaultExpiration = 24 * time.Hour
	}
	if cfg.Reservation.SweepInterval == 0 {
		cfg.Reservation.SweepInterval = time.Minute
	}
	if cfg.Reservation.SweepBatchSize == 0 {
		cfg.Reservation.SweepBatchSize = 100
	}
	if cfg.Classification.SweepInterval == 0 {
		cfg.Classification.SweepInterval = time.Hour
	}
	if cfg.Classification.VolumeWeight == 0 {
		cfg.Classification.VolumeWeight = 0.4
	}
	if cfg.Classification.MarginWeight == 0 {
		cfg.Classification.MarginWeight = 0.4
	}
	if cfg.Classification.RiskWeight == 0 {
		cfg.Classification.RiskWeight = 0.2
	}
	if cfg.Classification.VolumeScale == 0 {
		cfg.Classification.VolumeScale = 10000
	}
	if cfg.Classification.MarginScale == 0 {
		cfg.Classification.MarginScale = 500000
	}
	if cfg.Optimizer.MaxExactCandidates == 0 {
		cfg.Optimizer.MaxExactCandidates = 200
	}
	if cfg.Optimizer.TimeBudget == 0 {
		cfg.Optimizer.TimeBudget = 500 * time.Millisecond
	}
	if cfg.Idempotency.TTL == 0 {
		cfg.Idempotency.TTL = 24 * time.Hour
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.Reservation.CeilingRatio <= 0 || c.Reservation.CeilingRatio > 1 {
		return fmt.Errorf("reservation.ceiling_ratio must be in (0, 1], got %f", c.Reservation.CeilingRatio)
	}
	if c.Allocation.MaxCommitRetries < 1 {
		return fmt.Errorf("allocation.max_commit_retries must be at least 1")
	}
	weightSum := c.Classification.VolumeWeight + c.Classification.MarginWeight + c.Classification.RiskWeight
	if weightSum < 0.99 || weightSum > 1.01 {
		return fmt.Errorf("classification weights must sum to 1, got %f", weightSum)
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the host:port address for Redis
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
